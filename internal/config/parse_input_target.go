package config

import (
	"fmt"

	"cuelang.org/go/cue"
)

// parseInputSection extracts input.* fields. input.root is required.
func parseInputSection(v cue.Value) (Input, error) {
	var in Input
	root, err := requireString(v, "input.root")
	if err != nil {
		return in, err
	}
	in.Root = root
	if ep, ok := lookupString(v, "input.entrypoint"); ok && ep != "" {
		in.Entrypoint = ep
		in.HasEntrypoint = true
	}
	if b, ok := lookupBool(v, "input.noGitignore"); ok {
		in.NoGitignore = b
		in.HasNoGitignore = true
	}
	if in.Exclude, in.HasExclude, err = lookupStrings(v, "input.exclude"); err != nil {
		return in, err
	}
	return in, nil
}

// parseTargetSection extracts target.* fields. host and output are required.
func parseTargetSection(v cue.Value) (Target, error) {
	var t Target
	var err error
	if t.Host, err = requireString(v, "target.host"); err != nil {
		return t, err
	}
	if t.Output, err = requireString(v, "target.output"); err != nil {
		return t, err
	}
	if t.Options, t.HasOptions, err = lookupStrings(v, "target.options"); err != nil {
		return t, err
	}
	t.Slash = "/"
	if s, ok := lookupString(v, "target.slash"); ok {
		if s != "/" && s != `\` {
			return t, fmt.Errorf("invalid value for target.slash: %q (expected \"/\" or \"\\\\\")", s)
		}
		t.Slash = s
		t.HasSlash = true
	}
	return t, nil
}

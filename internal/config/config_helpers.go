package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// compileCUE loads and compiles a CUE file at the given path.
func compileCUE(path string) (cue.Value, error) {
	if filepath.Ext(path) != ".cue" {
		return cue.Value{}, errors.New("unsupported config format: expected .cue")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("failed to read config: %w", err)
	}
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("invalid config: %v", err)
	}
	return v, nil
}

func lookupString(v cue.Value, path string) (string, bool) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() || f.Kind() != cue.StringKind {
		return "", false
	}
	var s string
	if err := f.Decode(&s); err != nil {
		return "", false
	}
	return s, true
}

func lookupBool(v cue.Value, path string) (bool, bool) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() || f.Kind() != cue.BoolKind {
		return false, false
	}
	var b bool
	if err := f.Decode(&b); err != nil {
		return false, false
	}
	return b, true
}

func lookupInt(v cue.Value, path string) (int, bool) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() || f.Kind() != cue.IntKind {
		return 0, false
	}
	var n int
	if err := f.Decode(&n); err != nil {
		return 0, false
	}
	return n, true
}

// lookupStrings decodes a list of strings. A present field of the wrong
// shape is an error rather than silently ignored.
func lookupStrings(v cue.Value, path string) ([]string, bool, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return nil, false, nil
	}
	if f.Kind() != cue.ListKind {
		return nil, false, fmt.Errorf("invalid type for field: %s (expected list of strings)", path)
	}
	var out []string
	if err := f.Decode(&out); err != nil {
		return nil, false, fmt.Errorf("invalid value for %s: %v", path, err)
	}
	return out, true, nil
}

// requireString is lookupString for fields the job cannot run without.
func requireString(v cue.Value, path string) (string, error) {
	f := v.LookupPath(cue.ParsePath(path))
	if !f.Exists() {
		return "", fmt.Errorf("missing required field: %s", path)
	}
	s, ok := lookupString(v, path)
	if !ok {
		return "", fmt.Errorf("invalid type for field: %s (expected string)", path)
	}
	if s == "" {
		return "", fmt.Errorf("invalid value for %s: %w", path, errEmpty)
	}
	return s, nil
}

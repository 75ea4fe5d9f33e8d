package config

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
)

const (
	DefaultCompileTimeoutMs  = 60000
	DefaultClassifyTimeoutMs = 2000
)

// DefaultCodeExtensions are compiled when compiler.extensions is absent.
var DefaultCodeExtensions = []string{".js"}

// parseCompilerSection extracts optional compiler.* fields.
func parseCompilerSection(v cue.Value) (Compiler, error) {
	c := Compiler{TimeoutMs: DefaultCompileTimeoutMs, Extensions: append([]string(nil), DefaultCodeExtensions...)}
	var err error
	if b, ok := lookupBool(v, "compiler.enabled"); ok {
		c.Enabled = b
		c.HasEnabled = true
	}
	if p, ok := lookupString(v, "compiler.program"); ok {
		c.Program = p
		c.HasProgram = true
	}
	if c.Args, c.HasArgs, err = lookupStrings(v, "compiler.args"); err != nil {
		return c, err
	}
	if n, ok := lookupInt(v, "compiler.timeoutMs"); ok {
		if n <= 0 {
			return c, fmt.Errorf("invalid value for compiler.timeoutMs: %d (must be > 0)", n)
		}
		c.TimeoutMs = n
		c.HasTimeout = true
	}
	exts, ok, err := lookupStrings(v, "compiler.extensions")
	if err != nil {
		return c, err
	}
	if ok {
		for i, e := range exts {
			if e != "" && !strings.HasPrefix(e, ".") {
				exts[i] = "." + e
			}
		}
		c.Extensions = exts
		c.HasExtensions = true
	}
	return c, nil
}

// parseClassifySection extracts optional classify.* fields.
func parseClassifySection(v cue.Value) (Classify, error) {
	c := Classify{TimeoutMs: DefaultClassifyTimeoutMs}
	if s, ok := lookupString(v, "classify.inline"); ok {
		c.Inline = s
		c.HasInline = true
	}
	if n, ok := lookupInt(v, "classify.timeoutMs"); ok {
		if n <= 0 {
			return c, fmt.Errorf("invalid value for classify.timeoutMs: %d (must be > 0)", n)
		}
		c.TimeoutMs = n
		c.HasTimeoutMs = true
	}
	return c, nil
}

// parseManifestSection extracts optional manifest.out.
func parseManifestSection(v cue.Value) Manifest {
	var m Manifest
	if s, ok := lookupString(v, "manifest.out"); ok && s != "" {
		m.Out = s
		m.HasOut = true
	}
	return m
}

// parseWorkersSection extracts optional workers count.
func parseWorkersSection(v cue.Value) (Workers, error) {
	var w Workers
	if n, ok := lookupInt(v, "workers"); ok {
		if n < 1 {
			return w, fmt.Errorf("invalid value for workers: %d (must be >= 1)", n)
		}
		w.Count = n
		w.HasCount = true
	}
	return w, nil
}

// Package buildinfo exposes version metadata for the CLI and for the prelude
// bootstrap. Values can be overridden at build time via -ldflags; values set
// in the cli package are honored as fallbacks.
package buildinfo

import (
	"strings"

	"github.com/flarebyte/sealpack/cli"
)

var (
	// Version is the semantic version or custom string. Defaults to cli.Version or "dev".
	Version = "dev"
	// Commit is the VCS commit hash (optional).
	Commit = ""
	// Date is the build time in RFC3339 or similar (optional). Falls back to cli.Date.
	Date = ""
	// BuiltBy is an optional builder identifier (optional).
	BuiltBy = ""
)

// Resolved returns the bare version string, falling back to cli.Version and
// then "dev".
func Resolved() string {
	if Version != "" {
		return Version
	}
	if cli.Version != "" {
		return cli.Version
	}
	return "dev"
}

// Summary returns a concise single-line version string.
func Summary() string {
	v := Resolved()

	d := Date
	if d == "" {
		d = cli.Date
	}

	parts := make([]string, 0, 2)
	if Commit != "" {
		c := Commit
		if len(c) > 7 {
			c = c[:7]
		}
		parts = append(parts, "commit="+c)
	}
	if d != "" {
		parts = append(parts, "date="+d)
	}
	if len(parts) > 0 {
		v += " (" + strings.Join(parts, ", ") + ")"
	}
	return v
}

// Package cli holds version values that external build scripts set with
// -ldflags, e.g.:
//
//	-ldflags "-X 'github.com/flarebyte/sealpack/cli.Version=1.2.3' -X 'github.com/flarebyte/sealpack/cli.Date=2026-02-09'"
package cli

var (
	Version string
	Date    string
)

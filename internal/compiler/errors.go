package compiler

import (
	"fmt"
	"strings"
)

// Kind classifies a compile failure.
type Kind int

const (
	KindSpawn Kind = iota + 1
	KindFailed
	KindCacheNotProduced
	KindBrokenPipe
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindSpawn:
		return "spawn"
	case KindFailed:
		return "failed"
	case KindCacheNotProduced:
		return "cache-not-produced"
	case KindBrokenPipe:
		return "broken-pipe"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error reports a failed bytecode compile together with the target that was
// asked to produce it.
type Error struct {
	Kind   Kind
	Target Target
	Code   int
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindSpawn:
		msg = fmt.Sprintf("program %s start failed", e.Target.BinaryPath)
	case KindFailed:
		msg = fmt.Sprintf("%s failed with code %d", e.Target.BinaryPath, e.Code)
	case KindCacheNotProduced:
		msg = fmt.Sprintf("%s did not produce cached data", e.Target.BinaryPath)
	case KindBrokenPipe:
		msg = fmt.Sprintf("was not able to compile for %s", e.Target)
	case KindTimeout:
		msg = fmt.Sprintf("%s timed out", e.Target.BinaryPath)
	default:
		msg = "compile failed"
	}
	if e.Err != nil && e.Kind != KindFailed {
		msg += ": " + e.Err.Error()
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += " (" + s + ")"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode is the process status the CLI uses for compile failures.
func (e *Error) ExitCode() int { return 4 }

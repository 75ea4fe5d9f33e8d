package producer

import (
	"fmt"

	"github.com/flarebyte/sealpack/internal/packer"
)

// IOKind says which side of the copy failed.
type IOKind int

const (
	HostRead IOKind = iota
	Write
	SegmentRead
)

func (k IOKind) String() string {
	switch k {
	case HostRead:
		return "read host"
	case Write:
		return "write output"
	case SegmentRead:
		return "read segment"
	default:
		return fmt.Sprintf("io(%d)", int(k))
	}
}

// IOError is a read or write failure while assembling the container.
type IOError struct {
	Kind IOKind
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err) }

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) ExitCode() int { return 5 }

// InvariantError means the offset table came out inconsistent. It points at
// a bug, not at bad input.
type InvariantError struct {
	Snapshot string
	Store    packer.StoreKind
	Reason   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("container invariant broken at %s (%s): %s", e.Snapshot, e.Store, e.Reason)
}

func (e *InvariantError) ExitCode() int { return 70 }

package packer

import (
	"errors"
	"fmt"
)

var (
	ErrMissingStat        = errors.New("missing stat")
	ErrInvalidRecordShape = errors.New("invalid record shape")
)

// RecordError reports a record set that breaks the collector contract. It is
// always fatal.
type RecordError struct {
	Err    error // ErrMissingStat or ErrInvalidRecordShape
	File   string
	Store  StoreKind
	Reason string
}

func (e *RecordError) Error() string {
	if errors.Is(e.Err, ErrMissingStat) {
		return fmt.Sprintf("%v: %s", e.Err, e.File)
	}
	msg := fmt.Sprintf("%v: %s (%s)", e.Err, e.File, e.Store)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *RecordError) Unwrap() error { return e.Err }

func (e *RecordError) ExitCode() int { return 3 }

func missingStat(file string) error {
	return &RecordError{Err: ErrMissingStat, File: file, Store: StoreStat}
}

func invalidShape(file string, store StoreKind, reason string) error {
	return &RecordError{Err: ErrInvalidRecordShape, File: file, Store: store, Reason: reason}
}

// StatError reports a file that could not be stat'ed for a STAT record.
type StatError struct {
	Path string
	Err  error
}

func (e *StatError) Error() string { return fmt.Sprintf("stat %s: %v", e.Path, e.Err) }

func (e *StatError) Unwrap() error { return e.Err }

func (e *StatError) ExitCode() int { return 5 }

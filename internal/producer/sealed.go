package producer

import (
	"fmt"
	"os"
	"strings"

	"github.com/flarebyte/sealpack/internal/format"
	"github.com/flarebyte/sealpack/internal/packer"
)

// Sealed is a container opened for reading.
type Sealed struct {
	f          *os.File
	Container  *format.Container
	VFS        VFS
	Entrypoint string
}

// Open reads the boxes of a sealed executable and decodes its offset table.
func Open(path string) (*Sealed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := openFile(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func openFile(f *os.File) (*Sealed, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	c, err := format.ReadContainer(f, fi.Size())
	if err != nil {
		return nil, err
	}
	script, err := Unwrap(c.Prelude)
	if err != nil {
		return nil, err
	}
	table, entry, err := packer.ParseRendered(script)
	if err != nil {
		return nil, err
	}
	vfs, err := ParseVFS(table)
	if err != nil {
		return nil, err
	}
	if err := vfs.Check(c.PayloadLength); err != nil {
		return nil, err
	}
	return &Sealed{f: f, Container: c, VFS: vfs, Entrypoint: entry}, nil
}

// Unwrap strips the function scaffold around a prelude body.
func Unwrap(body []byte) (string, error) {
	s := string(body)
	if !strings.HasPrefix(s, wrapHead) || !strings.HasSuffix(s, wrapTail) {
		return "", fmt.Errorf("prelude: unexpected wrapper")
	}
	return s[len(wrapHead) : len(s)-len(wrapTail)], nil
}

// Read returns the bytes stored for snapshot under store.
func (s *Sealed) Read(snapshot string, store packer.StoreKind) ([]byte, error) {
	r, ok := s.VFS[snapshot][store]
	if !ok {
		return nil, fmt.Errorf("%s has no %s entry", snapshot, store)
	}
	return s.Container.Slice(s.f, r.Offset, r.Length)
}

func (s *Sealed) Close() error { return s.f.Close() }

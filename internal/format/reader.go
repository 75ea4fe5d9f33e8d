package format

import (
	"errors"
	"fmt"
	"io"
)

// ErrNoContainer is returned when no options box is found at any aligned
// offset of the file.
var ErrNoContainer = errors.New("no container found")

// Container describes the boxes found in a sealed executable.
type Container struct {
	// HostSize is the host region up to the options box, padding included.
	HostSize      int64
	Options       []string
	PayloadOffset int64
	PayloadLength int64
	PreludeOffset int64
	Prelude       []byte
}

// ReadContainer locates the boxes appended to a host binary. The options box
// is searched at every Boundary-aligned offset; the rest follows from the
// fixed layout.
func ReadContainer(r io.ReaderAt, size int64) (*Container, error) {
	optOff, err := findBox(r, size, KindOptions)
	if err != nil {
		return nil, err
	}
	c := &Container{HostSize: optOff}

	optHdr, err := readHeaderAt(r, optOff, KindOptions)
	if err != nil {
		return nil, err
	}
	body, err := readBody(r, optOff+HeaderSize, int64(optHdr.Length), size)
	if err != nil {
		return nil, fmt.Errorf("options body: %w", err)
	}
	if c.Options, err = DecodeOptions(body); err != nil {
		return nil, err
	}

	payHdrOff := optOff + Aligned(HeaderSize+int64(optHdr.Length))
	payHdr, err := readHeaderAt(r, payHdrOff, KindPayload)
	if err != nil {
		return nil, err
	}
	c.PayloadOffset = payHdrOff + HeaderSize
	c.PayloadLength = int64(payHdr.Length)
	if c.PayloadOffset+c.PayloadLength > size {
		return nil, fmt.Errorf("payload exceeds file: %d+%d > %d", c.PayloadOffset, c.PayloadLength, size)
	}

	c.PreludeOffset = c.PayloadOffset + Aligned(c.PayloadLength)
	preHdr, err := readHeaderAt(r, c.PreludeOffset, KindPrelude)
	if err != nil {
		return nil, err
	}
	if c.Prelude, err = readBody(r, c.PreludeOffset+HeaderSize, int64(preHdr.Length), size); err != nil {
		return nil, fmt.Errorf("prelude body: %w", err)
	}
	return c, nil
}

// Slice returns the payload bytes of [offset, offset+length).
func (c *Container) Slice(r io.ReaderAt, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > c.PayloadLength {
		return nil, fmt.Errorf("range [%d,%d) outside payload of %d bytes", offset, offset+length, c.PayloadLength)
	}
	return readBody(r, c.PayloadOffset+offset, length, c.PayloadOffset+c.PayloadLength)
}

func findBox(r io.ReaderAt, size int64, k Kind) (int64, error) {
	buf := make([]byte, HeaderSize)
	for off := int64(0); off+HeaderSize <= size; off += Boundary {
		if _, err := r.ReadAt(buf, off); err != nil {
			return 0, err
		}
		if hasSentinel(buf, k) {
			return off, nil
		}
	}
	return 0, ErrNoContainer
}

func readHeaderAt(r io.ReaderAt, off int64, k Kind) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := r.ReadAt(buf, off); err != nil {
		return Header{}, fmt.Errorf("%s header at %d: %w", k, off, err)
	}
	return parseHeader(buf, k)
}

func readBody(r io.ReaderAt, off, n, size int64) ([]byte, error) {
	if off+n > size {
		return nil, fmt.Errorf("body [%d,%d) exceeds file of %d bytes", off, off+n, size)
	}
	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	if _, err := r.ReadAt(buf, off); err != nil {
		return nil, err
	}
	return buf, nil
}

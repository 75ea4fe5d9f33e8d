package format

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

var zeros [Boundary]byte

// Header prefixes a box body.
type Header struct {
	Kind   Kind
	Length uint32
}

// Bytes encodes the header.
func (h Header) Bytes() ([]byte, error) {
	s, ok := SentinelFor(h.Kind)
	if !ok {
		return nil, fmt.Errorf("unknown box kind: %s", h.Kind)
	}
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], s[0])
	binary.LittleEndian.PutUint32(buf[4:], s[1])
	binary.LittleEndian.PutUint32(buf[8:], s[2])
	binary.LittleEndian.PutUint32(buf[12:], h.Length)
	return buf, nil
}

func (h Header) Write(w io.Writer) error {
	b, err := h.Bytes()
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// ReadHeader reads a header and checks that its sentinel matches want.
func ReadHeader(r io.Reader, want Kind) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, err
	}
	return parseHeader(buf, want)
}

func parseHeader(buf []byte, want Kind) (Header, error) {
	if !hasSentinel(buf, want) {
		return Header{}, fmt.Errorf("bad %s box sentinel: % x", want, buf[:12])
	}
	return Header{Kind: want, Length: binary.LittleEndian.Uint32(buf[12:])}, nil
}

func hasSentinel(buf []byte, k Kind) bool {
	s, ok := SentinelFor(k)
	if !ok || len(buf) < 12 {
		return false
	}
	return binary.LittleEndian.Uint32(buf[0:]) == s[0] &&
		binary.LittleEndian.Uint32(buf[4:]) == s[1] &&
		binary.LittleEndian.Uint32(buf[8:]) == s[2]
}

// WritePadding writes the zero bytes that align size to Boundary and returns
// how many were written.
func WritePadding(w io.Writer, size int64) (int64, error) {
	n := Padding(size)
	if n == 0 {
		return 0, nil
	}
	_, err := w.Write(zeros[:n])
	return n, err
}

// WriteBox writes header, body and alignment padding, and returns the total
// number of bytes written.
func WriteBox(w io.Writer, k Kind, body []byte) (int64, error) {
	if int64(len(body)) > int64(^uint32(0)) {
		return 0, fmt.Errorf("%s box too large: %d bytes", k, len(body))
	}
	if err := (Header{Kind: k, Length: uint32(len(body))}).Write(w); err != nil {
		return 0, err
	}
	if _, err := w.Write(body); err != nil {
		return 0, err
	}
	size := int64(HeaderSize + len(body))
	pad, err := WritePadding(w, size)
	if err != nil {
		return 0, err
	}
	return size + pad, nil
}

// EncodeOptions builds the options box body: each option followed by a zero
// byte, then one more zero byte ending the list.
func EncodeOptions(options []string) []byte {
	var buf bytes.Buffer
	for _, o := range options {
		buf.WriteString(o)
		buf.WriteByte(0)
	}
	buf.WriteByte(0)
	return buf.Bytes()
}

// DecodeOptions reverses EncodeOptions.
func DecodeOptions(body []byte) ([]string, error) {
	if len(body) == 0 || body[len(body)-1] != 0 {
		return nil, fmt.Errorf("options body is not terminated")
	}
	out := []string{}
	rest := body[:len(body)-1]
	for len(rest) > 0 {
		i := bytes.IndexByte(rest, 0)
		if i < 0 {
			return nil, fmt.Errorf("option %d is not terminated", len(out))
		}
		out = append(out, string(rest[:i]))
		rest = rest[i+1:]
	}
	return out, nil
}

package packer

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
)

// Segment is one streamable unit of the payload. It is read either from the
// real file at File or from Buffer.
type Segment struct {
	Snapshot string
	Store    StoreKind
	File     string
	Buffer   []byte
	// Compile marks CODE whose bytes are source and must go through the
	// bytecode compiler before they are streamed.
	Compile bool
}

// FromFile reports whether the segment streams a real file.
func (s Segment) FromFile() bool { return s.File != "" }

// Open returns the segment's bytes as a one-shot stream.
func (s Segment) Open() (io.ReadCloser, error) {
	if s.FromFile() {
		return os.Open(s.File)
	}
	return io.NopCloser(bytes.NewReader(s.Buffer)), nil
}

// makeSegment turns one validated store body into a segment.
func makeSegment(file, snap string, store StoreKind, body Body, stats *statCache) (Segment, error) {
	seg := Segment{Snapshot: snap, Store: store}
	switch b := body.(type) {
	case Directly:
		if store == StoreStat {
			st, ok := stats.get(file)
			if !ok {
				return Segment{}, &StatError{Path: file, Err: os.ErrNotExist}
			}
			return encodeSegment(seg, st)
		}
		seg.File = file
	case Buffer:
		seg.Buffer = []byte(b)
	case Text:
		seg.Buffer = []byte(b)
	case Bytecode:
		seg.Buffer = []byte(b)
		return seg, nil
	case Links:
		if b == nil {
			b = Links{}
		}
		return encodeSegment(seg, []string(b))
	case StatSnapshot:
		return encodeSegment(seg, b)
	default:
		return Segment{}, invalidShape(file, store, describeBody(body))
	}
	seg.Compile = store == StoreCode
	return seg, nil
}

func encodeSegment(seg Segment, v any) (Segment, error) {
	b, err := marshalJSON(v)
	if err != nil {
		return Segment{}, err
	}
	seg.Buffer = b
	return seg, nil
}

// marshalJSON encodes v compactly without HTML escaping and without the
// encoder's trailing newline.
func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

package producer

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/flarebyte/sealpack/internal/packer"
)

// Range locates one segment relative to the start of the payload.
type Range struct {
	Offset int64
	Length int64
}

// End is the offset one past the last byte.
func (r Range) End() int64 { return r.Offset + r.Length }

// MarshalJSON writes the [offset, length] pair the loader reads.
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int64{r.Offset, r.Length})
}

func (r *Range) UnmarshalJSON(b []byte) error {
	var pair [2]int64
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	r.Offset, r.Length = pair[0], pair[1]
	return nil
}

// VFS is the offset table: snapshot path, then store, then range.
type VFS map[string]map[packer.StoreKind]Range

// Entry is one flattened row of a VFS.
type Entry struct {
	Snapshot string
	Store    packer.StoreKind
	Range    Range
}

func (v VFS) add(snapshot string, store packer.StoreKind, r Range) error {
	stores, ok := v[snapshot]
	if !ok {
		stores = map[packer.StoreKind]Range{}
		v[snapshot] = stores
	}
	if _, dup := stores[store]; dup {
		return &InvariantError{Snapshot: snapshot, Store: store, Reason: "recorded twice"}
	}
	stores[store] = r
	return nil
}

// Entries lists the table sorted by snapshot path, then store.
func (v VFS) Entries() []Entry {
	var out []Entry
	for snap, stores := range v {
		for store, r := range stores {
			out = append(out, Entry{Snapshot: snap, Store: store, Range: r})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Snapshot != out[j].Snapshot {
			return out[i].Snapshot < out[j].Snapshot
		}
		return out[i].Store < out[j].Store
	})
	return out
}

// Check verifies every range lies inside a payload of payloadLength bytes and
// that no two non-empty ranges overlap.
func (v VFS) Check(payloadLength int64) error {
	entries := v.Entries()
	for _, e := range entries {
		if e.Range.Offset < 0 || e.Range.Length < 0 || e.Range.End() > payloadLength {
			return &InvariantError{Snapshot: e.Snapshot, Store: e.Store,
				Reason: fmt.Sprintf("range [%d,%d) outside payload of %d bytes", e.Range.Offset, e.Range.End(), payloadLength)}
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Range.Offset < entries[j].Range.Offset })
	var prev *Entry
	for i := range entries {
		e := &entries[i]
		if e.Range.Length == 0 {
			continue
		}
		if prev != nil && e.Range.Offset < prev.Range.End() {
			return &InvariantError{Snapshot: e.Snapshot, Store: e.Store,
				Reason: fmt.Sprintf("overlaps %s (%s)", prev.Snapshot, prev.Store)}
		}
		prev = e
	}
	return nil
}

// MarshalJSON emits the compact table with sorted keys.
func (v VFS) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]map[packer.StoreKind]Range(v))
}

// ParseVFS decodes a table written by MarshalJSON.
func ParseVFS(b []byte) (VFS, error) {
	var m map[string]map[packer.StoreKind]Range
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse offset table: %w", err)
	}
	if m == nil {
		m = map[string]map[packer.StoreKind]Range{}
	}
	return VFS(m), nil
}

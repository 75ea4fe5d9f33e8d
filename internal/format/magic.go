// Package format holds the binary layout of a sealed executable: the box
// kinds, their sentinel words, header encoding and alignment rules. Every
// write site and the container reader go through this package so the layout
// lives in one place.
package format

import "fmt"

// Boundary is the alignment every box is padded to.
const Boundary = 4096

// HeaderSize is the size of a box header: three sentinel words and a length.
const HeaderSize = 16

// Kind identifies a box in the container.
type Kind int

const (
	KindOptions Kind = iota
	KindPayload
	KindPrelude
)

func (k Kind) String() string {
	switch k {
	case KindOptions:
		return "options"
	case KindPayload:
		return "payload"
	case KindPrelude:
		return "prelude"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinel is the three little-endian words that open a box header.
type Sentinel [3]uint32

var sentinels = map[Kind]Sentinel{
	KindOptions: {0x4818c4df, 0x7ac30670, 0x56558a76},
	KindPayload: {0x75148eba, 0x6fbda9b4, 0x2e20c08d},
	KindPrelude: {0x26e0c928, 0x41f32b66, 0x3ea13ccf},
}

// SentinelFor returns the sentinel words of k.
func SentinelFor(k Kind) (Sentinel, bool) {
	s, ok := sentinels[k]
	return s, ok
}

// Padding returns the number of zero bytes needed after size bytes to reach
// the next Boundary.
func Padding(size int64) int64 {
	return (Boundary - size%Boundary) % Boundary
}

// Aligned rounds size up to the next Boundary.
func Aligned(size int64) int64 {
	return size + Padding(size)
}

package packer

import "fmt"

// StoreKind says what a record contributes for its file. The numeric values
// are the keys the loader expects in the VFS table.
type StoreKind int

const (
	StoreCode StoreKind = iota
	StoreContent
	StoreLinks
	StoreStat
)

// storeOrder is the order segments of one file are emitted in.
var storeOrder = [...]StoreKind{StoreCode, StoreContent, StoreLinks, StoreStat}

// Stores returns the store kinds in emission order.
func Stores() []StoreKind { return storeOrder[:] }

func (s StoreKind) String() string {
	switch s {
	case StoreCode:
		return "code"
	case StoreContent:
		return "content"
	case StoreLinks:
		return "links"
	case StoreStat:
		return "stat"
	default:
		return fmt.Sprintf("store(%d)", int(s))
	}
}

// Valid reports whether s is one of the four known kinds.
func (s StoreKind) Valid() bool { return s >= StoreCode && s <= StoreStat }

// Body is the payload of a record. The set of implementations is closed.
type Body interface{ body() }

// Directly asks the packer to read or stat the real file itself.
type Directly struct{}

// Buffer is in-memory file bytes.
type Buffer []byte

// Text is file text, stored as UTF-8.
type Text string

// Links is a directory listing in the order it should be served.
type Links []string

// Bytecode is CODE that is already compiled and must not be compiled again.
type Bytecode []byte

func (Directly) body()     {}
func (Buffer) body()       {}
func (Text) body()         {}
func (Links) body()        {}
func (Bytecode) body()     {}
func (StatSnapshot) body() {}

// FileRecord is one contribution of the collector for one file.
type FileRecord struct {
	Path       string
	Store      StoreKind
	Body       Body
	Discard    bool
	Entrypoint bool
}

// NormalizedRecord holds every store of one file after merging.
type NormalizedRecord map[StoreKind]Body

// normalizedFile keeps the path next to its stores so files stay in
// first-seen order.
type normalizedFile struct {
	path   string
	stores NormalizedRecord
}

// bodyAllowed reports whether body is a valid shape for store.
func bodyAllowed(store StoreKind, body Body) bool {
	switch store {
	case StoreCode:
		switch body.(type) {
		case Directly, Buffer, Text, Bytecode:
			return true
		}
	case StoreContent:
		switch body.(type) {
		case Directly, Buffer, Text:
			return true
		}
	case StoreLinks:
		_, ok := body.(Links)
		return ok
	case StoreStat:
		switch body.(type) {
		case Directly, StatSnapshot:
			return true
		}
	}
	return false
}

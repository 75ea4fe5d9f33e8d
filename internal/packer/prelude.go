package packer

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

//go:embed prelude/bootstrap.js
var bootstrapText string

//go:embed prelude/common.js
var commonText string

const (
	versionPlaceholder = "%VERSION%"
	vfsPlaceholder     = "%VIRTUAL_FILESYSTEM%"

	preludeHead   = "(function (REQUIRE_COMMON, VIRTUAL_FILESYSTEM, DEFAULT_ENTRYPOINT) {\n"
	preludeCommon = "\n})(function (exports) {\n"
	preludeVFS    = "\n},\n"
	preludeEntry  = "\n,\n"
	preludeTail   = "\n)"
)

// Template is the bootstrap and runtime helper text a prelude is built from.
// It is immutable once loaded.
type Template struct {
	bootstrap string
	common    string
}

// LoadTemplate returns the built-in template with version substituted into
// the bootstrap.
func LoadTemplate(version string) (*Template, error) {
	if !strings.Contains(bootstrapText, versionPlaceholder) {
		return nil, errors.New("prelude: bootstrap has no version placeholder")
	}
	if strings.Contains(bootstrapText, vfsPlaceholder) || strings.Contains(commonText, vfsPlaceholder) {
		return nil, errors.New("prelude: helper text must not contain the table placeholder")
	}
	return NewTemplate(strings.ReplaceAll(bootstrapText, versionPlaceholder, version), commonText), nil
}

// NewTemplate builds a template from explicit bootstrap and helper text.
func NewTemplate(bootstrap, common string) *Template {
	return &Template{bootstrap: bootstrap, common: common}
}

// Prelude fills the entrypoint literal and leaves the VFS table open.
func (t *Template) Prelude(entrypoint string) Prelude {
	ep := "undefined"
	if entrypoint != "" {
		b, _ := marshalJSON(entrypoint)
		ep = string(b)
	}
	return Prelude{
		head:  preludeHead + t.bootstrap + preludeCommon + t.common + preludeVFS,
		tail:  preludeEntry + ep + preludeTail,
		entry: entrypoint,
	}
}

// PreludeContext is what the producer knows once the payload is written.
type PreludeContext struct {
	VFS []byte
}

// Prelude is a prelude template with the entrypoint filled in. The VFS table
// goes between head and tail.
type Prelude struct {
	head  string
	tail  string
	entry string
}

// Entrypoint is the snapshot path the prelude starts, empty when none.
func (p Prelude) Entrypoint() string { return p.entry }

// IsZero reports whether p was never built from a Template.
func (p Prelude) IsZero() bool { return p.head == "" && p.tail == "" }

// String shows the prelude with the VFS placeholder in place.
func (p Prelude) String() string { return p.head + vfsPlaceholder + p.tail }

// Render returns the final prelude script.
func (p Prelude) Render(ctx PreludeContext) (string, error) {
	if p.IsZero() {
		return "", errors.New("prelude: empty template")
	}
	if !json.Valid(ctx.VFS) {
		return "", errors.New("prelude: virtual file system is not valid JSON")
	}
	if strings.ContainsAny(string(ctx.VFS), "\n\r") {
		return "", errors.New("prelude: virtual file system must be compact JSON")
	}
	return p.head + string(ctx.VFS) + p.tail, nil
}

// ParseRendered extracts the VFS JSON and entrypoint from a rendered
// prelude. The entrypoint is empty when the prelude has none.
func ParseRendered(text string) (vfs []byte, entrypoint string, err error) {
	if !strings.HasSuffix(text, preludeTail) {
		return nil, "", fmt.Errorf("prelude: missing tail")
	}
	body := strings.TrimSuffix(text, preludeTail)
	i := strings.LastIndex(body, preludeEntry)
	if i < 0 {
		return nil, "", fmt.Errorf("prelude: missing entrypoint separator")
	}
	ep := body[i+len(preludeEntry):]
	body = body[:i]
	j := strings.LastIndex(body, preludeVFS)
	if j < 0 {
		return nil, "", fmt.Errorf("prelude: missing virtual file system separator")
	}
	vfs = []byte(body[j+len(preludeVFS):])
	if ep != "undefined" {
		if err := json.Unmarshal([]byte(ep), &entrypoint); err != nil {
			return nil, "", fmt.Errorf("prelude: bad entrypoint literal: %v", err)
		}
	}
	return vfs, entrypoint, nil
}

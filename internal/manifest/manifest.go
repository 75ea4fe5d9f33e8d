// Package manifest writes a canonical YAML description of a produced
// container: where each region starts and what the offset table holds.
package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/flarebyte/sealpack/internal/producer"
)

// Manifest is the build record of one container.
type Manifest struct {
	Output        string
	Host          string
	Entrypoint    string
	Options       []string
	HostSize      int64
	PayloadOffset int64
	PayloadLength int64
	PreludeOffset int64
	Size          int64
	Entries       []producer.Entry
}

// FromReport builds a manifest from a producer report.
func FromReport(output, host string, options []string, rep *producer.Report) Manifest {
	return Manifest{
		Output:        output,
		Host:          host,
		Entrypoint:    rep.Entrypoint,
		Options:       append([]string(nil), options...),
		HostSize:      rep.HostSize,
		PayloadOffset: rep.PayloadOffset,
		PayloadLength: rep.PayloadLength,
		PreludeOffset: rep.PreludeOffset,
		Size:          rep.Size,
		Entries:       rep.VFS.Entries(),
	}
}

// Marshal returns canonical YAML bytes for m. Keys appear in a fixed order
// and entries are sorted, so equal containers give equal manifests.
func Marshal(m Manifest) ([]byte, error) {
	top := &yaml.Node{Kind: yaml.MappingNode}
	add := func(k string, v *yaml.Node) { top.Content = append(top.Content, scalarNode(k), v) }
	add("output", strNode(m.Output))
	add("host", strNode(m.Host))
	if m.Entrypoint != "" {
		add("entrypoint", strNode(m.Entrypoint))
	}
	opts := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, o := range m.Options {
		opts.Content = append(opts.Content, strNode(o))
	}
	add("options", opts)

	layout := &yaml.Node{Kind: yaml.MappingNode}
	for _, kv := range []struct {
		k string
		v int64
	}{
		{"hostSize", m.HostSize},
		{"payloadOffset", m.PayloadOffset},
		{"payloadLength", m.PayloadLength},
		{"preludeOffset", m.PreludeOffset},
		{"size", m.Size},
	} {
		layout.Content = append(layout.Content, scalarNode(kv.k), intNode(kv.v))
	}
	add("layout", layout)
	add("vfs", entriesNode(m.Entries))

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(top); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	out = append(out, '\n')
	return out, nil
}

// Write writes the manifest to path, creating parent directories.
func Write(path string, m Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// entriesNode groups sorted entries by snapshot path.
func entriesNode(entries []producer.Entry) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	var cur *yaml.Node
	last := ""
	for i, e := range entries {
		if i == 0 || e.Snapshot != last {
			cur = &yaml.Node{Kind: yaml.MappingNode}
			n.Content = append(n.Content, strNode(e.Snapshot), cur)
			last = e.Snapshot
		}
		rng := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		rng.Content = append(rng.Content, intNode(e.Range.Offset), intNode(e.Range.Length))
		cur.Content = append(cur.Content, scalarNode(e.Store.String()), rng)
	}
	return n
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func strNode(v string) *yaml.Node {
	n := &yaml.Node{}
	_ = n.Encode(v)
	return n
}

func intNode(v int64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(v, 10)}
}

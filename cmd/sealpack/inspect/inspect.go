package inspect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/armon/go-radix"
	"github.com/spf13/cobra"

	"github.com/flarebyte/sealpack/internal/packer"
	"github.com/flarebyte/sealpack/internal/producer"
)

var (
	flagPrefix string
	flagPretty bool
)

// Cmd implements `sealpack inspect`.
var Cmd = &cobra.Command{
	Use:           "inspect FILE",
	Short:         "Print the layout and offset table of a sealed executable",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := producer.Open(args[0])
		if err != nil {
			return err
		}
		defer s.Close()
		return render(cmd.OutOrStdout(), summarize(s, flagPrefix), flagPretty)
	},
}

type entry struct {
	Snapshot string `json:"snapshot"`
	Store    string `json:"store"`
	Offset   int64  `json:"offset"`
	Length   int64  `json:"length"`
}

type summary struct {
	HostSize      int64    `json:"hostSize"`
	Options       []string `json:"options"`
	Entrypoint    string   `json:"entrypoint,omitempty"`
	PayloadOffset int64    `json:"payloadOffset"`
	PayloadLength int64    `json:"payloadLength"`
	PreludeOffset int64    `json:"preludeOffset"`
	Files         int      `json:"files"`
	Entries       []entry  `json:"entries"`
}

// summarize lists the table entries whose snapshot path starts with prefix,
// in path order.
func summarize(s *producer.Sealed, prefix string) summary {
	tree := radix.New()
	for snap, stores := range s.VFS {
		tree.Insert(snap, stores)
	}
	out := summary{
		HostSize:      s.Container.HostSize,
		Options:       s.Container.Options,
		Entrypoint:    s.Entrypoint,
		PayloadOffset: s.Container.PayloadOffset,
		PayloadLength: s.Container.PayloadLength,
		PreludeOffset: s.Container.PreludeOffset,
		Entries:       []entry{},
	}
	tree.WalkPrefix(prefix, func(snap string, v interface{}) bool {
		out.Files++
		stores := v.(map[packer.StoreKind]producer.Range)
		for _, k := range packer.Stores() {
			r, ok := stores[k]
			if !ok {
				continue
			}
			out.Entries = append(out.Entries, entry{Snapshot: snap, Store: k.String(), Offset: r.Offset, Length: r.Length})
		}
		return false
	})
	return out
}

func render(w io.Writer, v summary, pretty bool) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, buf.String())
	return err
}

func init() {
	Cmd.Flags().StringVar(&flagPrefix, "prefix", "", "Only list snapshot paths starting with this prefix")
	Cmd.Flags().BoolVar(&flagPretty, "pretty", false, "Indent the JSON output")
}

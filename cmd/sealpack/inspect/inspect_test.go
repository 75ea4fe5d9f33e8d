package inspect

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/flarebyte/sealpack/internal/packer"
	"github.com/flarebyte/sealpack/internal/producer"
)

func sealed(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	host := filepath.Join(dir, "host")
	if err := os.WriteFile(host, []byte("HOST"), 0o755); err != nil {
		t.Fatalf("write host: %v", err)
	}
	out := filepath.Join(dir, "app.bin")
	_, err := producer.Produce(context.Background(), producer.Job{
		HostBinaryPath: host,
		OutputPath:     out,
		Options:        []string{"--expose", "foo"},
		Prelude:        packer.NewTemplate("B", "C").Prelude("/snapshot/app/index.js"),
		Segments: []packer.Segment{
			{Snapshot: "/snapshot/app/index.js", Store: packer.StoreContent, Buffer: []byte("console.log(1)")},
			{Snapshot: "/snapshot/app/index.js", Store: packer.StoreStat, Buffer: []byte(`{"size":14}`)},
			{Snapshot: "/snapshot/lib/x.js", Store: packer.StoreContent, Buffer: []byte("x")},
		},
	})
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	return out
}

func TestSummarize_Prefix(t *testing.T) {
	s, err := producer.Open(sealed(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	all := summarize(s, "")
	if all.Files != 2 || len(all.Entries) != 3 {
		t.Fatalf("unexpected summary: %+v", all)
	}
	if all.Entries[0].Store != "content" || all.Entries[1].Store != "stat" {
		t.Fatalf("entries not in store order: %+v", all.Entries)
	}
	if all.HostSize != 4096 {
		t.Fatalf("host size: %d", all.HostSize)
	}

	lib := summarize(s, "/snapshot/lib")
	if lib.Files != 1 || lib.Entries[0].Snapshot != "/snapshot/lib/x.js" {
		t.Fatalf("prefix filter: %+v", lib)
	}
}

func TestRender_JSON(t *testing.T) {
	s, err := producer.Open(sealed(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	var buf bytes.Buffer
	if err := render(&buf, summarize(s, ""), true); err != nil {
		t.Fatalf("render: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if got["entrypoint"] != "/snapshot/app/index.js" {
		t.Fatalf("entrypoint: %v", got["entrypoint"])
	}
}

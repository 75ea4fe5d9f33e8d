package stage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/flarebyte/sealpack/internal/testutil"
)

type fakeCompiler struct{ calls int }

func (c *fakeCompiler) Compile(_ context.Context, source []byte) ([]byte, error) {
	c.calls++
	return append([]byte("BC:"), source...), nil
}

func writeFile(t *testing.T, p, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
}

// writeApp copies the fixture application into a workspace dir and returns
// it. The app lives in <dir>/app, the host binary in <dir>/host.
func writeApp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	app := filepath.Join(dir, "app")
	if err := testutil.CopyTree(filepath.Join("testdata", "app"), app); err != nil {
		t.Fatalf("copy fixture: %v", err)
	}
	// Written here so the fixture's own ignore rules stay out of the repo.
	writeFile(t, filepath.Join(app, "logs", "debug.log"), "noise\n")
	writeFile(t, filepath.Join(app, ".gitignore"), "logs/\n")
	writeFile(t, filepath.Join(dir, "host"), strings.Repeat("H", 5000))
	return dir
}

// writeJob writes job.cue into dir with extra appended inside the top-level
// struct.
func writeJob(t *testing.T, dir, extra string) string {
	t.Helper()
	p := filepath.Join(dir, "job.cue")
	body := `{
  configVersion: "1"
  action: "pack"
  input: { root: "app", entrypoint: "index.js" }
  target: { host: "host", output: "out/app.bin", options: ["--expose-gc"] }
` + extra + `
}
`
	writeFile(t, p, body)
	if err := os.MkdirAll(filepath.Join(dir, "out"), 0o755); err != nil {
		t.Fatalf("mkdir out: %v", err)
	}
	return p
}

func validated(t *testing.T, cfg string) Envelope {
	t.Helper()
	out, err := Run(context.Background(), "validate-config", Envelope{Meta: &Meta{ConfigPath: cfg, Version: "test"}}, testDeps())
	if err != nil {
		t.Fatalf("validate-config: %v", err)
	}
	return out
}

func testDeps() Deps { return Deps{Logger: zerolog.Nop()} }

func mustRead(t *testing.T, p string) []byte {
	t.Helper()
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	return b
}

package stage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/flarebyte/sealpack/internal/packer"
	"github.com/flarebyte/sealpack/internal/producer"
)

func runPack(t *testing.T, cfg string, deps Deps) Envelope {
	t.Helper()
	out, err := RunStages(context.Background(), Envelope{Meta: &Meta{ConfigPath: cfg, Version: "test"}}, PackStages, deps)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	return out
}

func TestPipeline_PackProducesReadableContainer(t *testing.T) {
	dir := writeApp(t)
	cfg := writeJob(t, dir, `
  compiler: { enabled: true }
  manifest: { out: "out/app.manifest.yaml" }
`)
	fc := &fakeCompiler{}
	deps := testDeps()
	deps.Compiler = fc
	out := runPack(t, cfg, deps)

	if fc.calls != 2 {
		t.Fatalf("expected 2 compiled files, got %d", fc.calls)
	}
	bin := filepath.Join(dir, "out", "app.bin")
	s, err := producer.Open(bin)
	if err != nil {
		t.Fatalf("open container: %v", err)
	}
	defer s.Close()

	if got := strings.Join(s.Container.Options, " "); got != "--expose-gc" {
		t.Fatalf("options: %q", got)
	}
	root := filepath.Join(dir, "app")
	entry := packer.Snapshotify(filepath.Join(root, "index.js"), "/")
	if s.Entrypoint != entry {
		t.Fatalf("entrypoint: got %q want %q", s.Entrypoint, entry)
	}
	code, err := s.Read(entry, packer.StoreCode)
	if err != nil {
		t.Fatalf("read code: %v", err)
	}
	if string(code) != "BC:require('./lib/util');\n" {
		t.Fatalf("code: %q", code)
	}
	pkg, err := s.Read(packer.Snapshotify(filepath.Join(root, "package.json"), "/"), packer.StoreContent)
	if err != nil || string(pkg) != `{"name":"app"}` {
		t.Fatalf("package.json: %q %v", pkg, err)
	}
	links, err := s.Read(packer.Snapshotify(root, "/"), packer.StoreLinks)
	if err != nil || string(links) != `[".gitignore","README.md","index.js","lib","package.json"]` {
		t.Fatalf("links: %s %v", links, err)
	}
	if _, ok := s.VFS[packer.Snapshotify(filepath.Join(root, "logs", "debug.log"), "/")]; ok {
		t.Fatalf("ignored file packed")
	}

	if out.ManifestPath != filepath.Join(dir, "out", "app.manifest.yaml") {
		t.Fatalf("manifest path: %q", out.ManifestPath)
	}
	m := string(mustRead(t, out.ManifestPath))
	if !strings.Contains(m, "entrypoint: "+entry) {
		t.Fatalf("manifest missing entrypoint:\n%s", m)
	}
}

func TestPipeline_MissingStatLeavesNoOutput(t *testing.T) {
	dir := writeApp(t)
	cfg := writeJob(t, dir, "")
	in := discovered(t, cfg)
	var kept []packer.FileRecord
	for _, r := range in.Records {
		if strings.HasSuffix(r.Path, "package.json") && r.Store == packer.StoreStat {
			continue
		}
		kept = append(kept, r)
	}
	in.Records = kept
	_, err := RunStages(context.Background(), in, []string{packStage, produceStage}, testDeps())
	if err == nil || !strings.Contains(err.Error(), "missing stat") {
		t.Fatalf("expected missing stat, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "app.bin")); !os.IsNotExist(err) {
		t.Fatalf("output should not exist: %v", err)
	}
}

func TestPipeline_DeterministicManifest(t *testing.T) {
	dir := writeApp(t)
	cfg := writeJob(t, dir, `
  manifest: { out: "out/app.manifest.yaml" }
`)
	first := runPack(t, cfg, testDeps())
	a := string(mustRead(t, first.ManifestPath))
	second := runPack(t, cfg, testDeps())
	b := string(mustRead(t, second.ManifestPath))
	if a != b {
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(a),
			B:        difflib.SplitLines(b),
			FromFile: "first",
			ToFile:   "second",
			Context:  3,
		})
		t.Fatalf("manifest changed between runs:\n%s", diff)
	}
}

func TestRun_UnknownStage(t *testing.T) {
	_, err := Run(context.Background(), "nope", Envelope{}, testDeps())
	if err == nil || err.Error() != "unknown stage: nope" {
		t.Fatalf("unexpected: %v", err)
	}
}

func TestValidateConfig_MissingPath(t *testing.T) {
	_, err := Run(context.Background(), "validate-config", Envelope{}, testDeps())
	if _, ok := err.(ErrMissingConfigPath); !ok {
		t.Fatalf("expected ErrMissingConfigPath, got %v", err)
	}
}

func TestValidateConfig_OutputOverride(t *testing.T) {
	dir := writeApp(t)
	cfg := writeJob(t, dir, "")
	override := filepath.Join(dir, "elsewhere.bin")
	out, err := Run(context.Background(), "validate-config",
		Envelope{Meta: &Meta{ConfigPath: cfg, OutputOverride: override}}, testDeps())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if out.Meta.Job.Target.Output != override {
		t.Fatalf("override ignored: %q", out.Meta.Job.Target.Output)
	}
}

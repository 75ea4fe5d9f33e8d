package producer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flarebyte/sealpack/internal/compiler"
	"github.com/flarebyte/sealpack/internal/format"
	"github.com/flarebyte/sealpack/internal/packer"
)

type fakeCompiler struct {
	calls int
	err   error
}

func (c *fakeCompiler) Compile(_ context.Context, source []byte) ([]byte, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return append([]byte("BC:"), source...), nil
}

func writeHost(t *testing.T, dir string, size int) string {
	t.Helper()
	b := make([]byte, size)
	for i := range b {
		b[i] = byte(i * 7)
	}
	p := filepath.Join(dir, "host")
	require.NoError(t, os.WriteFile(p, b, 0o755))
	return p
}

func stat(size int64) packer.StatSnapshot {
	return packer.StatSnapshot{Mode: 0o100644, Nlink: 1, Size: size, Mtime: 1, Atime: 1, Ctime: 1, Birthtime: 1, IsFileValue: true}
}

func dirStat() packer.StatSnapshot {
	return packer.StatSnapshot{Mode: 0o40755, Nlink: 2, Mtime: 1, Atime: 1, Ctime: 1, Birthtime: 1, IsDirectoryValue: true}
}

func packRecords(t *testing.T, records []packer.FileRecord) *packer.Result {
	t.Helper()
	tpl, err := packer.LoadTemplate("test")
	require.NoError(t, err)
	res, err := packer.Pack(context.Background(), records, packer.Options{Template: tpl})
	require.NoError(t, err)
	return res
}

func TestProduce_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	host := writeHost(t, dir, 5000)
	asset := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(asset, []byte("\x89PNG fake"), 0o644))

	res := packRecords(t, []packer.FileRecord{
		{Path: "/app", Store: packer.StoreLinks, Body: packer.Links{"index.js", "logo.png"}},
		{Path: "/app", Store: packer.StoreStat, Body: dirStat()},
		{Path: "/app/index.js", Store: packer.StoreContent, Body: packer.Text("console.log(1)"), Entrypoint: true},
		{Path: "/app/index.js", Store: packer.StoreStat, Body: stat(14)},
		{Path: asset, Store: packer.StoreContent, Body: packer.Directly{}},
		{Path: asset, Store: packer.StoreStat, Body: stat(9)},
	})
	out := filepath.Join(dir, "app.bin")
	rep, err := Produce(context.Background(), Job{
		HostBinaryPath: host,
		OutputPath:     out,
		Options:        []string{"--expose", "foo"},
		Prelude:        res.Prelude,
		Segments:       res.Segments,
	})
	require.NoError(t, err)

	assert.EqualValues(t, 5000, rep.HostSize)
	assert.EqualValues(t, 8192+4096+format.HeaderSize, rep.PayloadOffset)
	assert.Equal(t, "/snapshot/app/index.js", rep.Entrypoint)

	fi, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, rep.Size, fi.Size())
	assert.Equal(t, os.FileMode(0o755), fi.Mode().Perm())

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	hostBytes, err := os.ReadFile(host)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, hostBytes))

	s, err := Open(out)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, []string{"--expose", "foo"}, s.Container.Options)
	assert.Equal(t, rep.PayloadLength, s.Container.PayloadLength)
	assert.Equal(t, rep.PreludeOffset, s.Container.PreludeOffset)
	assert.Equal(t, rep.VFS, s.VFS)
	assert.Equal(t, "/snapshot/app/index.js", s.Entrypoint)

	for _, seg := range res.Segments {
		got, err := s.Read(seg.Snapshot, seg.Store)
		require.NoError(t, err)
		want := seg.Buffer
		if seg.FromFile() {
			want, err = os.ReadFile(seg.File)
			require.NoError(t, err)
		}
		assert.Equal(t, want, got, "%s %s", seg.Snapshot, seg.Store)
	}
	require.NoError(t, rep.VFS.Check(rep.PayloadLength))

	idx := rep.VFS["/snapshot/app/index.js"]
	assert.Len(t, idx, 2)
}

func TestProduce_PayloadPadding(t *testing.T) {
	cases := map[string]struct {
		size int
		pad  int64
	}{
		"aligned": {4096, 0},
		"one":     {1, 4095},
		"empty":   {0, 0},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			host := writeHost(t, dir, 10)
			segs := []packer.Segment{{Snapshot: "/snapshot/x", Store: packer.StoreContent, Buffer: make([]byte, c.size)}}
			rep, err := Produce(context.Background(), Job{
				HostBinaryPath: host,
				OutputPath:     filepath.Join(dir, "out"),
				Prelude:        packer.NewTemplate("B", "C").Prelude(""),
				Segments:       segs,
			})
			require.NoError(t, err)
			assert.EqualValues(t, c.size, rep.PayloadLength)
			assert.Equal(t, rep.PayloadOffset+int64(c.size)+c.pad, rep.PreludeOffset)
			assert.Zero(t, (rep.Size-rep.PreludeOffset)%format.Boundary)
		})
	}
}

func TestProduce_Idempotent(t *testing.T) {
	dir := t.TempDir()
	host := writeHost(t, dir, 3000)
	res := packRecords(t, []packer.FileRecord{
		{Path: "/a.js", Store: packer.StoreContent, Body: packer.Text("a")},
		{Path: "/a.js", Store: packer.StoreStat, Body: stat(1)},
		{Path: "/b.js", Store: packer.StoreCode, Body: packer.Text("b")},
		{Path: "/b.js", Store: packer.StoreStat, Body: stat(1)},
	})
	var outs [][]byte
	for _, name := range []string{"one", "two"} {
		out := filepath.Join(dir, name)
		_, err := Produce(context.Background(), Job{
			HostBinaryPath: host,
			OutputPath:     out,
			Prelude:        res.Prelude,
			Segments:       res.Segments,
			Compiler:       &fakeCompiler{},
		})
		require.NoError(t, err)
		b, err := os.ReadFile(out)
		require.NoError(t, err)
		outs = append(outs, b)
	}
	assert.True(t, bytes.Equal(outs[0], outs[1]))
}

func TestProduce_CompilesCode(t *testing.T) {
	dir := t.TempDir()
	host := writeHost(t, dir, 1)
	src := filepath.Join(dir, "m.js")
	require.NoError(t, os.WriteFile(src, []byte("exports.x=1"), 0o644))
	segs := []packer.Segment{
		{Snapshot: "/snapshot/m.js", Store: packer.StoreCode, File: src, Compile: true},
		{Snapshot: "/snapshot/n.js", Store: packer.StoreCode, Buffer: []byte("pre"), Compile: false},
	}
	fc := &fakeCompiler{}
	out := filepath.Join(dir, "out")
	_, err := Produce(context.Background(), Job{
		HostBinaryPath: host,
		OutputPath:     out,
		Prelude:        packer.NewTemplate("B", "C").Prelude(""),
		Segments:       segs,
		Compiler:       fc,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fc.calls)

	s, err := Open(out)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Read("/snapshot/m.js", packer.StoreCode)
	require.NoError(t, err)
	assert.Equal(t, "BC:exports.x=1", string(got))
	got, err = s.Read("/snapshot/n.js", packer.StoreCode)
	require.NoError(t, err)
	assert.Equal(t, "pre", string(got))
}

func TestProduce_CompileErrorLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	host := writeHost(t, dir, 1)
	out := filepath.Join(dir, "out")
	fc := &fakeCompiler{err: &compiler.Error{Kind: compiler.KindFailed, Code: 1}}
	_, err := Produce(context.Background(), Job{
		HostBinaryPath: host,
		OutputPath:     out,
		Prelude:        packer.NewTemplate("B", "C").Prelude(""),
		Segments:       []packer.Segment{{Snapshot: "/snapshot/a", Store: packer.StoreCode, Buffer: []byte("x"), Compile: true}},
		Compiler:       fc,
	})
	require.Error(t, err)
	var ce *compiler.Error
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 4, ce.ExitCode())
	assertOnlyInputs(t, dir, "host")
}

func TestProduce_NoCompilerForCode(t *testing.T) {
	dir := t.TempDir()
	host := writeHost(t, dir, 1)
	_, err := Produce(context.Background(), Job{
		HostBinaryPath: host,
		OutputPath:     filepath.Join(dir, "out"),
		Prelude:        packer.NewTemplate("B", "C").Prelude(""),
		Segments:       []packer.Segment{{Snapshot: "/snapshot/a", Store: packer.StoreCode, Buffer: []byte("x"), Compile: true}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no compiler")
	assertOnlyInputs(t, dir, "host")
}

func TestProduce_MissingSegmentFile(t *testing.T) {
	dir := t.TempDir()
	host := writeHost(t, dir, 1)
	missing := filepath.Join(dir, "gone.txt")
	_, err := Produce(context.Background(), Job{
		HostBinaryPath: host,
		OutputPath:     filepath.Join(dir, "out"),
		Prelude:        packer.NewTemplate("B", "C").Prelude(""),
		Segments:       []packer.Segment{{Snapshot: "/snapshot/gone.txt", Store: packer.StoreContent, File: missing}},
	})
	var ioe *IOError
	require.True(t, errors.As(err, &ioe), "got %v", err)
	assert.Equal(t, SegmentRead, ioe.Kind)
	assert.Equal(t, missing, ioe.Path)
	assert.Equal(t, 5, ioe.ExitCode())
	assertOnlyInputs(t, dir, "host")
}

func TestProduce_MissingHost(t *testing.T) {
	dir := t.TempDir()
	_, err := Produce(context.Background(), Job{
		HostBinaryPath: filepath.Join(dir, "nohost"),
		OutputPath:     filepath.Join(dir, "out"),
		Prelude:        packer.NewTemplate("B", "C").Prelude(""),
	})
	var ioe *IOError
	require.True(t, errors.As(err, &ioe))
	assert.Equal(t, HostRead, ioe.Kind)
	assertOnlyInputs(t, dir)
}

func TestProduce_DuplicateSegment(t *testing.T) {
	dir := t.TempDir()
	host := writeHost(t, dir, 1)
	seg := packer.Segment{Snapshot: "/snapshot/a", Store: packer.StoreContent, Buffer: []byte("x")}
	_, err := Produce(context.Background(), Job{
		HostBinaryPath: host,
		OutputPath:     filepath.Join(dir, "out"),
		Prelude:        packer.NewTemplate("B", "C").Prelude(""),
		Segments:       []packer.Segment{seg, seg},
	})
	var ie *InvariantError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 70, ie.ExitCode())
	assertOnlyInputs(t, dir, "host")
}

func TestProduce_CanceledContext(t *testing.T) {
	dir := t.TempDir()
	host := writeHost(t, dir, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Produce(ctx, Job{
		HostBinaryPath: host,
		OutputPath:     filepath.Join(dir, "out"),
		Prelude:        packer.NewTemplate("B", "C").Prelude(""),
		Segments:       []packer.Segment{{Snapshot: "/snapshot/a", Store: packer.StoreContent, Buffer: []byte("x")}},
	})
	require.ErrorIs(t, err, context.Canceled)
	assertOnlyInputs(t, dir, "host")
}

func TestUnwrap(t *testing.T) {
	s, err := Unwrap([]byte(wrapHead + "X" + wrapTail))
	require.NoError(t, err)
	assert.Equal(t, "X", s)
	_, err = Unwrap([]byte("X"))
	require.Error(t, err)
}

func assertOnlyInputs(t *testing.T, dir string, names ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var got []string
	for _, e := range entries {
		got = append(got, e.Name())
	}
	assert.ElementsMatch(t, names, got)
}

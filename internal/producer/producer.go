// Package producer assembles a sealed executable: the host binary followed by
// the options, payload and prelude boxes.
package producer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/flarebyte/sealpack/internal/compiler"
	"github.com/flarebyte/sealpack/internal/format"
	"github.com/flarebyte/sealpack/internal/packer"
)

const (
	wrapHead = "(function(process, require, console, EXECPATH_FD, PAYLOAD_BASE) {\n"
	wrapTail = "\n})"

	writeBufferSize = 1 << 20
)

// Job is one container to produce.
type Job struct {
	HostBinaryPath string
	OutputPath     string
	Options        []string
	Prelude        packer.Prelude
	Segments       []packer.Segment
	// Compiler is required only when a segment has Compile set.
	Compiler compiler.Compiler
	Logger   zerolog.Logger
}

// Report describes the container that was written. Offsets are absolute
// positions in the output file, except VFS ranges which are relative to
// PayloadOffset.
type Report struct {
	VFS           VFS
	Entrypoint    string
	HostSize      int64
	PayloadOffset int64
	PayloadLength int64
	PreludeOffset int64
	Size          int64
}

// Produce writes the container to a temp file next to OutputPath and renames
// it into place once complete. Nothing is left at OutputPath on failure.
func Produce(ctx context.Context, job Job) (*Report, error) {
	if job.HostBinaryPath == "" || job.OutputPath == "" {
		return nil, errors.New("host and output paths are required")
	}
	if job.Prelude.IsZero() {
		return nil, errors.New("no prelude")
	}
	log := job.Logger

	host, err := os.Open(job.HostBinaryPath)
	if err != nil {
		return nil, &IOError{Kind: HostRead, Path: job.HostBinaryPath, Err: err}
	}
	defer host.Close()

	tmp := filepath.Join(filepath.Dir(job.OutputPath),
		"."+filepath.Base(job.OutputPath)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, &IOError{Kind: Write, Path: tmp, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	bw := bufio.NewWriterSize(f, writeBufferSize)
	w := &meter{w: bw}
	rep, payloadHeaderAt, err := assemble(ctx, job, host, w)
	if err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, &IOError{Kind: Write, Path: tmp, Err: err}
	}
	hdr, err := format.Header{Kind: format.KindPayload, Length: uint32(rep.PayloadLength)}.Bytes()
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteAt(hdr, payloadHeaderAt); err != nil {
		return nil, &IOError{Kind: Write, Path: tmp, Err: err}
	}
	if err := f.Sync(); err != nil {
		return nil, &IOError{Kind: Write, Path: tmp, Err: err}
	}
	if err := f.Close(); err != nil {
		return nil, &IOError{Kind: Write, Path: tmp, Err: err}
	}
	if err := os.Chmod(tmp, 0o755); err != nil {
		return nil, &IOError{Kind: Write, Path: tmp, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, job.OutputPath); err != nil {
		return nil, &IOError{Kind: Write, Path: job.OutputPath, Err: err}
	}
	committed = true

	log.Info().
		Str("output", job.OutputPath).
		Int64("size", rep.Size).
		Int64("payload", rep.PayloadLength).
		Int("entries", len(rep.VFS)).
		Msg("container written")
	return rep, nil
}

// assemble streams every region in order and returns the report together with
// the position of the payload header, whose length is patched afterwards.
func assemble(ctx context.Context, job Job, host io.Reader, w *meter) (*Report, int64, error) {
	rep := &Report{VFS: VFS{}}
	out := job.OutputPath

	tap := &readTap{r: host}
	n, err := io.Copy(w, tap)
	if err != nil {
		if tap.err != nil {
			return nil, 0, &IOError{Kind: HostRead, Path: job.HostBinaryPath, Err: err}
		}
		return nil, 0, &IOError{Kind: Write, Path: out, Err: err}
	}
	rep.HostSize = n
	if _, err := format.WritePadding(w, n); err != nil {
		return nil, 0, &IOError{Kind: Write, Path: out, Err: err}
	}

	if _, err := format.WriteBox(w, format.KindOptions, format.EncodeOptions(job.Options)); err != nil {
		return nil, 0, &IOError{Kind: Write, Path: out, Err: err}
	}

	payloadHeaderAt := w.n
	if err := (format.Header{Kind: format.KindPayload}).Write(w); err != nil {
		return nil, 0, &IOError{Kind: Write, Path: out, Err: err}
	}
	rep.PayloadOffset = w.n

	for _, seg := range job.Segments {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		start := w.n - rep.PayloadOffset
		if err := streamSegment(ctx, job, seg, w); err != nil {
			return nil, 0, err
		}
		r := Range{Offset: start, Length: w.n - rep.PayloadOffset - start}
		if err := rep.VFS.add(seg.Snapshot, seg.Store, r); err != nil {
			return nil, 0, err
		}
		job.Logger.Debug().
			Str("snapshot", seg.Snapshot).
			Stringer("store", seg.Store).
			Int64("offset", r.Offset).
			Int64("length", r.Length).
			Msg("segment")
	}
	rep.PayloadLength = w.n - rep.PayloadOffset
	if rep.PayloadLength > int64(^uint32(0)) {
		return nil, 0, fmt.Errorf("payload of %d bytes does not fit the header", rep.PayloadLength)
	}
	if err := rep.VFS.Check(rep.PayloadLength); err != nil {
		return nil, 0, err
	}
	if _, err := format.WritePadding(w, rep.PayloadLength); err != nil {
		return nil, 0, &IOError{Kind: Write, Path: out, Err: err}
	}

	table, err := rep.VFS.MarshalJSON()
	if err != nil {
		return nil, 0, err
	}
	script, err := job.Prelude.Render(packer.PreludeContext{VFS: table})
	if err != nil {
		return nil, 0, err
	}
	rep.PreludeOffset = w.n
	if _, err := format.WriteBox(w, format.KindPrelude, []byte(wrapHead+script+wrapTail)); err != nil {
		return nil, 0, &IOError{Kind: Write, Path: out, Err: err}
	}
	rep.Size = w.n
	rep.Entrypoint = job.Prelude.Entrypoint()
	return rep, payloadHeaderAt, nil
}

// streamSegment copies one segment into w, compiling it first when needed.
func streamSegment(ctx context.Context, job Job, seg packer.Segment, w io.Writer) error {
	src := seg.File
	if src == "" {
		src = seg.Snapshot
	}
	rc, err := seg.Open()
	if err != nil {
		return &IOError{Kind: SegmentRead, Path: src, Err: err}
	}
	defer rc.Close()

	if seg.Compile {
		if job.Compiler == nil {
			return fmt.Errorf("%s needs compiling but no compiler is configured", seg.Snapshot)
		}
		source, err := io.ReadAll(rc)
		if err != nil {
			return &IOError{Kind: SegmentRead, Path: src, Err: err}
		}
		code, err := job.Compiler.Compile(ctx, source)
		if err != nil {
			return fmt.Errorf("compile %s: %w", seg.Snapshot, err)
		}
		if _, err := w.Write(code); err != nil {
			return &IOError{Kind: Write, Path: job.OutputPath, Err: err}
		}
		return nil
	}

	tap := &readTap{r: rc}
	if _, err := io.Copy(w, tap); err != nil {
		if tap.err != nil {
			return &IOError{Kind: SegmentRead, Path: src, Err: err}
		}
		return &IOError{Kind: Write, Path: job.OutputPath, Err: err}
	}
	return nil
}

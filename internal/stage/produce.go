package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/flarebyte/sealpack/internal/compiler"
	"github.com/flarebyte/sealpack/internal/config"
	"github.com/flarebyte/sealpack/internal/producer"
)

const produceStage = "produce"

func produceRunner(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	job, err := in.job()
	if err != nil {
		return Envelope{}, err
	}
	if in.Pack == nil {
		return Envelope{}, errors.New("produce: nothing packed: run pack first")
	}
	comp := deps.Compiler
	if comp == nil && job.Compiler.Enabled {
		comp = newProcessCompiler(job, deps.Logger)
	}
	rep, err := producer.Produce(ctx, producer.Job{
		HostBinaryPath: job.Target.Host,
		OutputPath:     job.Target.Output,
		Options:        job.Target.Options,
		Prelude:        in.Pack.Prelude,
		Segments:       in.Pack.Segments,
		Compiler:       comp,
		Logger:         deps.Logger,
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("%s: %w", produceStage, err)
	}
	out := in
	out.Report = rep
	return out, nil
}

// newProcessCompiler runs compiler.program, or the host binary itself when no
// program is set.
func newProcessCompiler(job *config.Job, log zerolog.Logger) *compiler.Process {
	bin := job.Compiler.Program
	if bin == "" {
		bin = job.Target.Host
	}
	return compiler.NewProcess(
		compiler.Target{BinaryPath: bin, Options: job.Compiler.Args},
		compiler.WithTimeout(time.Duration(job.Compiler.TimeoutMs)*time.Millisecond),
		compiler.WithLogger(log),
	)
}

func init() { Register(produceStage, produceRunner) }

package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/flarebyte/sealpack/internal/manifest"
)

const writeManifestStage = "write-manifest"

func writeManifestRunner(_ context.Context, in Envelope, deps Deps) (Envelope, error) {
	job, err := in.job()
	if err != nil {
		return Envelope{}, err
	}
	if !job.Manifest.HasOut {
		return in, nil
	}
	if in.Report == nil {
		return Envelope{}, errors.New("write-manifest: nothing produced: run produce first")
	}
	m := manifest.FromReport(job.Target.Output, job.Target.Host, job.Target.Options, in.Report)
	if err := manifest.Write(job.Manifest.Out, m); err != nil {
		return Envelope{}, fmt.Errorf("%s: %w", writeManifestStage, err)
	}
	deps.Logger.Debug().Str("path", job.Manifest.Out).Msg("manifest written")
	out := in
	out.ManifestPath = job.Manifest.Out
	return out, nil
}

func init() { Register(writeManifestStage, writeManifestRunner) }

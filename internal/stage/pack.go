package stage

import (
	"context"
	"fmt"

	"github.com/flarebyte/sealpack/internal/packer"
)

const packStage = "pack"

func packRunner(ctx context.Context, in Envelope, deps Deps) (Envelope, error) {
	job, err := in.job()
	if err != nil {
		return Envelope{}, err
	}
	version := in.Meta.Version
	if version == "" {
		version = "dev"
	}
	tpl, err := packer.LoadTemplate(version)
	if err != nil {
		return Envelope{}, fmt.Errorf("%s: %w", packStage, err)
	}
	res, err := packer.Pack(ctx, in.Records, packer.Options{
		Slash:    job.Target.Slash,
		Template: tpl,
		Workers:  job.Workers.Count,
		Logger:   deps.Logger,
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("%s: %w", packStage, err)
	}
	out := in
	out.Pack = res
	return out, nil
}

func init() { Register(packStage, packRunner) }

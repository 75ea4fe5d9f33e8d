package stage

import (
	"context"
	"path/filepath"

	"github.com/flarebyte/sealpack/internal/config"
)

// ValidateConfig is the stage implementation for "validate-config".
func ValidateConfig(_ context.Context, in Envelope, deps Deps) (Envelope, error) {
	if in.Meta == nil || in.Meta.ConfigPath == "" {
		return Envelope{}, ErrMissingConfigPath{}
	}
	job, err := config.ParseJob(in.Meta.ConfigPath)
	if err != nil {
		return Envelope{}, err
	}
	if in.Meta.OutputOverride != "" {
		out, err := filepath.Abs(in.Meta.OutputOverride)
		if err != nil {
			return Envelope{}, err
		}
		job.Target.Output = out
	}
	out := in
	meta := *in.Meta
	meta.Job = &job
	out.Meta = &meta
	deps.Logger.Debug().
		Str("root", job.Input.Root).
		Str("host", job.Target.Host).
		Str("output", job.Target.Output).
		Bool("compile", job.Compiler.Enabled).
		Msg("config loaded")
	return out, nil
}

type ErrMissingConfigPath struct{}

func (ErrMissingConfigPath) Error() string { return "missing required meta.configPath" }

func init() { Register("validate-config", ValidateConfig) }

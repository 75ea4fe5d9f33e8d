package stage

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/flarebyte/sealpack/internal/compiler"
)

// Deps carries what stages need from the outside.
type Deps struct {
	Logger zerolog.Logger
	// Compiler overrides the one built from the config, mainly for tests.
	Compiler compiler.Compiler
}

// Runner executes a stage.
type Runner func(ctx context.Context, in Envelope, deps Deps) (Envelope, error)

var registry = map[string]Runner{}

// Register adds a stage runner.
func Register(name string, r Runner) {
	registry[name] = r
}

// Run executes a registered stage by name.
func Run(ctx context.Context, name string, in Envelope, deps Deps) (Envelope, error) {
	r, ok := registry[name]
	if !ok {
		return Envelope{}, ErrUnknown{name: name}
	}
	deps.Logger.Debug().Str("stage", name).Msg("stage start")
	return r(ctx, in, deps)
}

// ErrUnknown is returned when a stage is not found.
type ErrUnknown struct{ name string }

func (e ErrUnknown) Error() string { return "unknown stage: " + e.name }

package stage

import (
	"github.com/flarebyte/sealpack/internal/config"
	"github.com/flarebyte/sealpack/internal/packer"
	"github.com/flarebyte/sealpack/internal/producer"
)

// Meta holds the settings the stages share.
type Meta struct {
	ConfigPath string
	// OutputOverride replaces target.output when set.
	OutputOverride string
	// Version is substituted into the prelude bootstrap.
	Version string
	Job     *config.Job
}

// Envelope is passed from stage to stage. Each stage fills in its part.
type Envelope struct {
	Records []packer.FileRecord
	Meta    *Meta
	Pack    *packer.Result
	Report  *producer.Report
	// ManifestPath is set once a manifest was written.
	ManifestPath string
}

func (e Envelope) job() (*config.Job, error) {
	if e.Meta == nil || e.Meta.Job == nil {
		return nil, ErrNoJob{}
	}
	return e.Meta.Job, nil
}

// ErrNoJob is returned by stages that run before validate-config.
type ErrNoJob struct{}

func (ErrNoJob) Error() string { return "no validated config: run validate-config first" }

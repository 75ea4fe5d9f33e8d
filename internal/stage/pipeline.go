package stage

import "context"

// PackStages is the fixed pipeline behind `sealpack pack`.
var PackStages = []string{
	"validate-config",
	discoverStage,
	classifyStage,
	packStage,
	produceStage,
	writeManifestStage,
}

// RunStages executes the named stages in order.
func RunStages(ctx context.Context, in Envelope, stages []string, deps Deps) (Envelope, error) {
	out := in
	var err error
	for _, name := range stages {
		out, err = Run(ctx, name, out, deps)
		if err != nil {
			return Envelope{}, err
		}
	}
	return out, nil
}

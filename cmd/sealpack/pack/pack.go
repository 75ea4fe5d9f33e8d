package pack

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/flarebyte/sealpack/internal/buildinfo"
	"github.com/flarebyte/sealpack/internal/stage"
)

var (
	cfgPath    string
	outputPath string
	verbose    bool
)

// Cmd represents the `sealpack pack` command.
var Cmd = &cobra.Command{
	Use:           "pack",
	Short:         "Pack an application into a sealed executable as described by a config",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfgPath == "" {
			return fmt.Errorf("missing required flag: --config")
		}
		log := newLogger(cmd.ErrOrStderr(), verbose)
		in := stage.Envelope{Meta: &stage.Meta{
			ConfigPath:     cfgPath,
			OutputOverride: outputPath,
			Version:        buildinfo.Resolved(),
		}}
		out, err := stage.RunStages(cmd.Context(), in, stage.PackStages, stage.Deps{Logger: log})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), out.Meta.Job.Target.Output)
		return err
	},
}

// newLogger writes human-readable lines to w. Debug output needs --verbose.
func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: !isTerminal(w)}
	return zerolog.New(cw).Level(level).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func init() {
	Cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to config file (.cue)")
	Cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Override target.output")
	Cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every packed file and segment")
}

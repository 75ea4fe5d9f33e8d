package root

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flarebyte/sealpack/cmd/sealpack/inspect"
	"github.com/flarebyte/sealpack/cmd/sealpack/pack"
	"github.com/flarebyte/sealpack/cmd/sealpack/version"
)

// NewRootCmd creates the root command for sealpack.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sealpack",
		Short: "Seal an application tree into a single executable built on a host runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(version.VersionCmd)
	cmd.AddCommand(pack.Cmd)
	cmd.AddCommand(inspect.Cmd)

	return cmd
}

// Execute runs the root command with provided args.
func Execute(args []string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cmd.ExecuteContext(ctx)
}

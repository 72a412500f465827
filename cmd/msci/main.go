package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/msci/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: stop already called
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "msci",
		Short:         "Serve word frequency statistics of Wikipedia articles",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if configPath != "" {
				ctx = config.WithPath(ctx, configPath)
			}
			return run(ctx)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file (overrides MSCI_CONFIG)")
	return cmd
}

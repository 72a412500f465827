package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/msci/internal/probe"
	"github.com/okian/msci/pkg/logger"
	"github.com/spf13/cobra"
)

// Default configuration constants.
const (
	defaultRequests = 100
	defaultWorkers  = 2 // multiplier for runtime.NumCPU()
	defaultTimeout  = 2 * time.Minute
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: stop already called
	}
}

func newRootCmd() *cobra.Command {
	cfg := &probe.Config{}
	var (
		percentile int
		logFormat  string
	)
	cmd := &cobra.Command{
		Use:          "probe",
		Short:        "Fire concurrent word-frequency requests at a running msci server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithFormat(logFormat)); err != nil {
				return err
			}
			if cmd.Flags().Changed("percentile") {
				cfg.Percentile = &percentile
			}
			_, err := probe.Run(cmd.Context(), cfg)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:8000", "base URL of the service")
	f.StringSliceVarP(&cfg.Articles, "article", "a", []string{"Go_(programming_language)"}, "articles to request, round-robin")
	f.IntVarP(&cfg.Depth, "depth", "d", 0, "crawl depth")
	f.IntVarP(&cfg.Requests, "requests", "n", defaultRequests, "total number of requests")
	f.IntVarP(&cfg.Workers, "workers", "w", runtime.NumCPU()*defaultWorkers, "concurrent requests")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "per-request timeout")
	f.BoolVar(&cfg.Keywords, "keywords", false, "use POST /keywords instead of GET /word-frequency")
	f.StringSliceVar(&cfg.IgnoreList, "ignore", nil, "words to drop (with --keywords)")
	f.IntVar(&percentile, "percentile", 0, "keep words below this count percentile (with --keywords)")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log every request")
	f.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	return cmd
}

// Command etl geocodes a tab-separated export of UFO sighting reports and
// loads the records into a sink.
//
// Usage:
//
//	etl run --input ufo_awesome.tsv --sink postgres --resume-offset 20365
//	etl validate --input ufo_awesome.tsv --rejects-path rejects.tsv
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/ufo-sightings-etl/internal/config"
	"github.com/couchcryptid/ufo-sightings-etl/internal/observability"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "etl",
	Short:         "Geocode UFO sighting reports and load them into a database",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}
		cfg = c
		logger = observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
		return nil
	},
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(runCmd, validateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		l := logger
		if l == nil {
			l = slog.Default()
		}
		l.Error("etl failed", "error", err)
		os.Exit(1)
	}
}

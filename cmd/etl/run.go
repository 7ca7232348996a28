package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/ufo-sightings-etl/internal/adapter/http"
	"github.com/couchcryptid/ufo-sightings-etl/internal/adapter/tsv"
	"github.com/couchcryptid/ufo-sightings-etl/internal/checkpoint"
	"github.com/couchcryptid/ufo-sightings-etl/internal/config"
	"github.com/couchcryptid/ufo-sightings-etl/internal/domain"
	"github.com/couchcryptid/ufo-sightings-etl/internal/observability"
	"github.com/couchcryptid/ufo-sightings-etl/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Parse, geocode and load every row from the resume offset on",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runETL(cmd.Context(), cfg, logger)
	},
}

func runETL(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.ValidateRun(); err != nil {
		return err
	}

	metrics := observability.NewMetrics()

	providers, err := buildProviders(cfg, metrics, logger)
	if err != nil {
		return err
	}
	resolver := domain.NewResolver(logger, providers...)
	logger.Info("geocoding chain configured", "providers", resolver.Providers())

	s, err := openSink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("sink close error", "error", err)
		}
	}()

	reader, err := tsv.Open(cfg.Input, cfg.InputEncoding)
	if err != nil {
		return err
	}
	defer reader.Close() //nolint:errcheck

	opts, cleanup, err := pipelineOptions(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	p := pipeline.New(reader, pipeline.ParserFunc(domain.ParseRow), resolver, s, logger, metrics, opts...)

	if cfg.MetricsAddr != "" {
		srv := httpadapter.NewServer(cfg.MetricsAddr, readiness{pipeline: p, sink: s}, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	stats, err := p.Run(ctx)
	if err == nil {
		return nil
	}

	var loadErr *pipeline.LoadError
	switch {
	case errors.As(err, &loadErr):
		logger.Error("sink write failed; rerun with the resume offset",
			"resume_offset", loadErr.ResumeOffset(), "error", loadErr.Err)
	case errors.Is(err, context.Canceled):
		logger.Warn("run interrupted; rerun with the resume offset", "resume_offset", stats.NextOffset)
	}
	return err
}

// pipelineOptions resolves the starting offset and opens the checkpoint and
// rejects files. cleanup closes whatever was opened.
func pipelineOptions(cfg *config.Config, logger *slog.Logger) ([]pipeline.Option, func(), error) {
	cleanup := func() {}
	offset := cfg.ResumeOffset
	opts := []pipeline.Option{pipeline.WithInputName(cfg.Input)}

	if cfg.CheckpointPath != "" {
		cp := checkpoint.NewFile(cfg.CheckpointPath, nil)
		if cfg.ResumeFromCheckpoint {
			state, err := cp.Load()
			if err != nil {
				return nil, cleanup, err
			}
			if state.Input != "" && state.Input != cfg.Input {
				return nil, cleanup, eris.Errorf("checkpoint %s was written for input %q, not %q",
					cp.Path(), state.Input, cfg.Input)
			}
			if state.NextOffset > 0 {
				if cfg.ResumeOffset > 0 && cfg.ResumeOffset != state.NextOffset {
					logger.Warn("checkpoint offset overrides resume offset",
						"resume_offset", cfg.ResumeOffset, "checkpoint_offset", state.NextOffset)
				}
				offset = state.NextOffset
			}
			logger.Info("resuming from checkpoint",
				"path", cp.Path(), "next_offset", state.NextOffset, "updated_at", state.UpdatedAt)
		}
		opts = append(opts, pipeline.WithCheckpoint(cp, cfg.CheckpointEvery))
	}

	if cfg.RejectsPath != "" {
		rw, err := tsv.CreateRejectFile(cfg.RejectsPath)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() {
			if err := rw.Close(); err != nil {
				logger.Error("rejects file close error", "error", err)
			}
		}
		opts = append(opts, pipeline.WithRejects(rw))
	}

	return append(opts, pipeline.WithResumeOffset(offset)), cleanup, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// readiness is ready once the run has started and the sink, when it can
// be probed, answers.
type readiness struct {
	pipeline *pipeline.Pipeline
	sink     any
}

func (r readiness) CheckReadiness(ctx context.Context) error {
	if err := r.pipeline.CheckReadiness(ctx); err != nil {
		return err
	}
	if p, ok := r.sink.(pinger); ok {
		return eris.Wrap(p.Ping(ctx), "sink unreachable")
	}
	return nil
}

package main

import (
	"context"
	"log/slog"

	"github.com/rotisserie/eris"

	"github.com/couchcryptid/ufo-sightings-etl/internal/adapter/census"
	"github.com/couchcryptid/ufo-sightings-etl/internal/adapter/google"
	kafkaadapter "github.com/couchcryptid/ufo-sightings-etl/internal/adapter/kafka"
	"github.com/couchcryptid/ufo-sightings-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/ufo-sightings-etl/internal/adapter/postgres"
	"github.com/couchcryptid/ufo-sightings-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/ufo-sightings-etl/internal/config"
	"github.com/couchcryptid/ufo-sightings-etl/internal/domain"
	"github.com/couchcryptid/ufo-sightings-etl/internal/observability"
	"github.com/couchcryptid/ufo-sightings-etl/internal/pipeline"
)

// sink is a pipeline.Loader that owns a connection.
type sink interface {
	pipeline.Loader
	Close() error
}

// buildProviders creates the geocoding chain in the configured order.
func buildProviders(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) ([]domain.Provider, error) {
	providers := make([]domain.Provider, 0, len(cfg.GeocodeProviders))
	for _, name := range cfg.GeocodeProviders {
		switch name {
		case config.ProviderGoogle:
			providers = append(providers, google.NewClient(cfg.GoogleAPIKey, cfg.GoogleTimeout, cfg.GoogleQPS, metrics))
		case config.ProviderMapbox:
			providers = append(providers, mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, cfg.MapboxQPS, metrics, logger))
		case config.ProviderCensus:
			providers = append(providers, census.NewClient(cfg.CensusTimeout, cfg.CensusQPS, metrics))
		default:
			return nil, eris.Errorf("unknown geocode provider %q", name)
		}
	}
	return providers, nil
}

// openSink connects the configured record sink.
func openSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sink, error) {
	switch cfg.Sink {
	case config.SinkPostgres:
		return postgres.Connect(ctx, cfg.DatabaseURL)
	case config.SinkSQLite:
		return sqlite.Open(cfg.SQLitePath)
	case config.SinkKafka:
		return kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger), nil
	default:
		return nil, eris.Errorf("unknown sink %q", cfg.Sink)
	}
}

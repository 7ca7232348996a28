package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Sink names.
const (
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
	SinkKafka    = "kafka"
)

// Provider names accepted in geocode_providers.
const (
	ProviderGoogle = "google"
	ProviderMapbox = "mapbox"
	ProviderCensus = "census"
)

// Input encodings.
const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin1"
)

// Config holds all job settings, populated from flags and environment variables.
type Config struct {
	Input                string
	InputEncoding        string
	ResumeOffset         int
	ResumeFromCheckpoint bool

	Sink         string
	DatabaseURL  string
	SQLitePath   string
	KafkaBrokers []string
	KafkaTopic   string

	// Geocoding providers, in fallback order.
	GeocodeProviders []string
	GoogleAPIKey     string
	GoogleQPS        float64
	GoogleTimeout    time.Duration
	MapboxToken      string
	MapboxQPS        float64
	MapboxTimeout    time.Duration
	CensusQPS        float64
	CensusTimeout    time.Duration

	CheckpointPath  string
	CheckpointEvery int
	RejectsPath     string

	MetricsAddr     string
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
}

var defaults = map[string]any{
	"input_encoding":    EncodingUTF8,
	"resume_offset":     0,
	"sink":              SinkPostgres,
	"sqlite_path":       "sightings.db",
	"kafka_brokers":     "localhost:9092",
	"kafka_topic":       "ufo-sightings",
	"geocode_providers": "google,mapbox",
	"google_qps":        10.0,
	"google_timeout":    "5s",
	"mapbox_qps":        10.0,
	"mapbox_timeout":    "5s",
	"census_qps":        5.0,
	"census_timeout":    "10s",
	"checkpoint_every":  1000,
	"shutdown_timeout":  "10s",
	"log_level":         "info",
	"log_format":        "json",
}

// RegisterFlags defines the command-line flags that override environment
// variables. Flag names are the configuration keys with dashes.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("input", "i", "", "path to the tab-separated sightings file")
	fs.String("input-encoding", EncodingUTF8, "input encoding: utf-8 or latin1")
	fs.Int("resume-offset", 0, "first input row (1-based) to process; earlier rows are skipped")
	fs.Bool("resume-from-checkpoint", false, "take the resume offset from the checkpoint file")
	fs.String("sink", SinkPostgres, "record sink: postgres, sqlite or kafka")
	fs.String("geocode-providers", "google,mapbox", "comma-separated geocoding fallback chain")
	fs.String("checkpoint-path", "", "checkpoint file; empty disables checkpointing")
	fs.String("rejects-path", "", "write rejected rows to this TSV file")
	fs.String("metrics-addr", "", "serve /metrics, /healthz and /progress on this address")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("log-format", "json", "log format: json or text")
}

// Load reads configuration from flags and environment variables, applying
// defaults where unset. Flags win over environment. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
		})
		if bindErr != nil {
			return nil, eris.Wrap(bindErr, "config: bind flags")
		}
	}

	cfg := &Config{
		Input:                strings.TrimSpace(v.GetString("input")),
		InputEncoding:        strings.ToLower(strings.TrimSpace(v.GetString("input_encoding"))),
		ResumeFromCheckpoint: v.GetBool("resume_from_checkpoint"),
		Sink:                 strings.ToLower(strings.TrimSpace(v.GetString("sink"))),
		DatabaseURL:          v.GetString("database_url"),
		SQLitePath:           v.GetString("sqlite_path"),
		KafkaBrokers:         splitList(v.GetString("kafka_brokers")),
		KafkaTopic:           v.GetString("kafka_topic"),
		GeocodeProviders:     splitList(strings.ToLower(v.GetString("geocode_providers"))),
		GoogleAPIKey:         v.GetString("google_api_key"),
		MapboxToken:          v.GetString("mapbox_token"),
		CheckpointPath:       v.GetString("checkpoint_path"),
		RejectsPath:          v.GetString("rejects_path"),
		MetricsAddr:          v.GetString("metrics_addr"),
		LogLevel:             v.GetString("log_level"),
		LogFormat:            v.GetString("log_format"),
	}

	var err error
	if cfg.ResumeOffset, err = parseInt(v, "resume_offset"); err != nil {
		return nil, err
	}
	if cfg.CheckpointEvery, err = parseInt(v, "checkpoint_every"); err != nil {
		return nil, err
	}
	if cfg.GoogleTimeout, err = parseDuration(v, "google_timeout"); err != nil {
		return nil, err
	}
	if cfg.MapboxTimeout, err = parseDuration(v, "mapbox_timeout"); err != nil {
		return nil, err
	}
	if cfg.CensusTimeout, err = parseDuration(v, "census_timeout"); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parseDuration(v, "shutdown_timeout"); err != nil {
		return nil, err
	}
	if cfg.GoogleQPS, err = parseRate(v, "google_qps"); err != nil {
		return nil, err
	}
	if cfg.MapboxQPS, err = parseRate(v, "mapbox_qps"); err != nil {
		return nil, err
	}
	if cfg.CensusQPS, err = parseRate(v, "census_qps"); err != nil {
		return nil, err
	}

	if cfg.Input == "" {
		return nil, eris.New("INPUT is required")
	}
	switch cfg.InputEncoding {
	case EncodingUTF8, "utf8":
		cfg.InputEncoding = EncodingUTF8
	case EncodingLatin1, "iso-8859-1":
		cfg.InputEncoding = EncodingLatin1
	default:
		return nil, eris.Errorf("invalid INPUT_ENCODING %q: want utf-8 or latin1", cfg.InputEncoding)
	}
	if cfg.ResumeOffset < 0 {
		return nil, eris.New("RESUME_OFFSET must be >= 0")
	}
	if cfg.CheckpointEvery <= 0 {
		return nil, eris.New("CHECKPOINT_EVERY must be > 0")
	}
	if cfg.ResumeFromCheckpoint && cfg.CheckpointPath == "" {
		return nil, eris.New("RESUME_FROM_CHECKPOINT requires CHECKPOINT_PATH")
	}

	return cfg, nil
}

// ValidateRun checks the settings that only a full run needs: a usable sink
// and a credentialed provider chain. Dry-run validation skips it.
func (c *Config) ValidateRun() error {
	switch c.Sink {
	case SinkPostgres:
		if c.DatabaseURL == "" {
			return eris.New("DATABASE_URL is required for the postgres sink")
		}
	case SinkSQLite:
		if c.SQLitePath == "" {
			return eris.New("SQLITE_PATH is required for the sqlite sink")
		}
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return eris.New("KAFKA_BROKERS is required for the kafka sink")
		}
		if c.KafkaTopic == "" {
			return eris.New("KAFKA_TOPIC is required for the kafka sink")
		}
	default:
		return eris.Errorf("invalid SINK %q: want postgres, sqlite or kafka", c.Sink)
	}

	if len(c.GeocodeProviders) == 0 {
		return eris.New("GEOCODE_PROVIDERS is empty")
	}
	seen := make(map[string]bool, len(c.GeocodeProviders))
	for _, p := range c.GeocodeProviders {
		if seen[p] {
			return eris.Errorf("GEOCODE_PROVIDERS lists %q twice", p)
		}
		seen[p] = true

		switch p {
		case ProviderGoogle:
			if c.GoogleAPIKey == "" {
				return eris.New("GOOGLE_API_KEY is required when google is a geocode provider")
			}
		case ProviderMapbox:
			if c.MapboxToken == "" {
				return eris.New("MAPBOX_TOKEN is required when mapbox is a geocode provider")
			}
		case ProviderCensus:
		default:
			return eris.Errorf("unknown geocode provider %q in GEOCODE_PROVIDERS", p)
		}
	}
	return nil
}

func parseInt(v *viper.Viper, key string) (int, error) {
	s := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, eris.Errorf("invalid %s %q: must be an integer", strings.ToUpper(key), s)
	}
	return n, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	s := strings.TrimSpace(v.GetString(key))
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, eris.Errorf("invalid %s %q: must be a positive duration", strings.ToUpper(key), s)
	}
	return d, nil
}

func parseRate(v *viper.Viper, key string) (float64, error) {
	s := strings.TrimSpace(v.GetString(key))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, eris.Errorf("invalid %s %q: must be a positive number", strings.ToUpper(key), s)
	}
	return f, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

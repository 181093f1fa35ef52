// Package config loads service configuration from the environment.
// A local .env file is honored in development; real deployments set the
// variables directly.
package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	PostgresDSN string `env:"POSTGRES_DSN,required,notEmpty"`

	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Scoring  ScoringConfig  `envPrefix:"SCORING_"`
	Metadata MetadataConfig `envPrefix:"METADATA_"`

	// Workers is the number of concurrent analysis workers.
	Workers int `env:"WORKERS" envDefault:"4"`

	// ReaperInterval controls how often stale queue entries are requeued.
	ReaperInterval time.Duration `env:"REAPER_INTERVAL" envDefault:"30s"`
	ReaperBatch    int64         `env:"REAPER_BATCH" envDefault:"100"`
}

type RedisConfig struct {
	Addr          string `env:"ADDR,required,notEmpty"`
	QueueKey      string `env:"QUEUE_KEY" envDefault:"analyses:queue"`
	ProcessingKey string `env:"PROCESSING_KEY" envDefault:"analyses:processing"`
}

type ScoringConfig struct {
	BaseURL string `env:"BASE_URL,required,notEmpty"`
	APIKey  string `env:"API_KEY"`

	// Timeout bounds a single scoring call. Without it a hung upstream
	// would leave jobs in processing forever.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"90s"`
}

type MetadataConfig struct {
	// BaseURL of the metadata enrichment service. Empty disables enrichment.
	BaseURL string        `env:"BASE_URL"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// Load reads configuration from the environment, after loading an optional
// .env file, and applies guardrails to the parsed values.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// Sanitize clamps configuration values to sane ranges.
func (c *Config) Sanitize() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.ReaperInterval <= 0 {
		c.ReaperInterval = 30 * time.Second
	}
	if c.ReaperBatch <= 0 {
		c.ReaperBatch = 100
	}
	if c.Scoring.Timeout <= 0 {
		c.Scoring.Timeout = 90 * time.Second
	}
	if c.Metadata.Timeout <= 0 {
		c.Metadata.Timeout = 10 * time.Second
	}
}

var dsnPasswordRe = regexp.MustCompile(`://([^:/?#]+):([^@/]+)@`)

// RedactDSN masks the password in a connection string for logging.
func RedactDSN(dsn string) string {
	return dsnPasswordRe.ReplaceAllString(dsn, `://$1:****@`)
}

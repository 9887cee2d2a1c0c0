package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"5800"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// Database settings
	Database DatabaseConfig

	// Embedding sidecar
	Embeddings EmbeddingsConfig

	// Script generation model
	LLM LLMConfig

	// Text-to-speech renderer
	TTS TTSConfig

	// Broadcast time mapping and NTP monitoring
	Time TimeConfig

	// Segment materialization
	Scheduler SchedulerConfig

	// Queue worker fleet
	Worker WorkerConfig

	// Rendered audio storage
	Assets AssetsConfig

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	// URL takes precedence over the discrete POSTGRES_* settings when set.
	URL          string        `env:"DATABASE_URL"`
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"radioforge"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"radioforge"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// AssetsConfig holds content-addressed audio storage settings
type AssetsConfig struct {
	// Dir is the root of the on-disk asset store
	Dir string `env:"ASSETS_DIR" envDefault:"./data/assets"`

	// DurationTolerance allowed around the slot duration at mastering
	DurationTolerance time.Duration `env:"ASSET_DURATION_TOLERANCE" envDefault:"5s"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// EmbeddingsConfig holds embedding sidecar configuration
type EmbeddingsConfig struct {
	// BaseURL of the embedding HTTP service; empty disables embeddings
	// and retrieval runs lexical-only.
	BaseURL string `env:"EMBEDDINGS_URL" envDefault:""`

	// Model name recorded on every stored embedding
	Model string `env:"EMBEDDING_MODEL" envDefault:"bge-m3"`

	// Dimension of stored vectors; anything else fails indexing
	Dimension int `env:"EMBEDDING_DIMENSION" envDefault:"1024"`

	// Timeout for a single embed call (embedding calls are short)
	Timeout time.Duration `env:"EMBEDDINGS_TIMEOUT" envDefault:"15s"`

	// RequestsPerMinute caps outbound embed calls
	RequestsPerMinute int `env:"EMBEDDINGS_REQUESTS_PER_MINUTE" envDefault:"300"`
}

// IsEnabled returns true if the embedding sidecar is configured
func (e *EmbeddingsConfig) IsEnabled() bool {
	return e.BaseURL != ""
}

// LLMConfig holds script generation configuration
type LLMConfig struct {
	BaseURL string `env:"LLM_URL" envDefault:""`
	Model   string `env:"LLM_MODEL" envDefault:"script-writer-large"`

	// Temperature recorded in generation metrics
	Temperature float64 `env:"LLM_TEMPERATURE" envDefault:"0.8"`

	// Timeout for a completion (LLM calls are long)
	Timeout time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`

	RequestsPerMinute int `env:"LLM_REQUESTS_PER_MINUTE" envDefault:"60"`
}

// IsEnabled returns true if a script generation backend is configured
func (l *LLMConfig) IsEnabled() bool {
	return l.BaseURL != ""
}

// TTSConfig holds text-to-speech renderer configuration
type TTSConfig struct {
	BaseURL string  `env:"TTS_URL" envDefault:""`
	Model   string  `env:"TTS_MODEL" envDefault:"voicecraft-48k"`
	Speed   float64 `env:"TTS_SPEED" envDefault:"1.0"`

	// Timeout for a synthesis call (TTS calls are long)
	Timeout time.Duration `env:"TTS_TIMEOUT" envDefault:"180s"`

	UseCache bool `env:"TTS_USE_CACHE" envDefault:"true"`
}

// IsEnabled returns true if a TTS backend is configured
func (t *TTSConfig) IsEnabled() bool {
	return t.BaseURL != ""
}

// TimeConfig holds the real-to-broadcast time mapping and NTP monitoring knobs
type TimeConfig struct {
	// YearOffset shifts display/context time into the station's future
	// calendar. Job timing always uses real time.
	YearOffset int `env:"FUTURE_YEAR_OFFSET" envDefault:"500"`

	// NTPServer is sampled periodically for clock skew
	NTPServer string `env:"NTP_SERVER" envDefault:"pool.ntp.org"`

	// NTPInterval between skew samples; zero disables sampling
	NTPInterval time.Duration `env:"NTP_SAMPLE_INTERVAL" envDefault:"5m"`

	// MaxSkew beyond which the time service reports unhealthy
	MaxSkew time.Duration `env:"NTP_MAX_SKEW" envDefault:"250ms"`
}

// SchedulerConfig holds segment materialization settings
type SchedulerConfig struct {
	Enabled bool `env:"SCHEDULER_ENABLED" envDefault:"true"`

	// Horizon of hours ahead to keep materialized
	Horizon time.Duration `env:"SCHEDULER_HORIZON" envDefault:"24h"`

	// TickInterval between materialization passes
	TickInterval time.Duration `env:"SCHEDULER_TICK_INTERVAL" envDefault:"15m"`

	// LeadTime before air at which segment_make jobs become due
	LeadTime time.Duration `env:"SCHEDULER_LEAD_TIME" envDefault:"30m"`

	// SegmentMaxRetries applied to every materialized segment
	SegmentMaxRetries int `env:"SEGMENT_MAX_RETRIES" envDefault:"3"`
}

// WorkerConfig holds queue worker fleet settings
type WorkerConfig struct {
	// Concurrency caps in-flight jobs per worker instance
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"4"`

	// PollInterval between claim attempts when the queue is empty
	PollInterval time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"2s"`

	// LeaseSeconds granted per claim; renewal runs at a third of this
	LeaseSeconds int `env:"WORKER_LEASE_SECONDS" envDefault:"120"`

	// HeartbeatInterval between health_checks rows
	HeartbeatInterval time.Duration `env:"WORKER_HEARTBEAT_INTERVAL" envDefault:"30s"`

	// DrainTimeout bounds how long in-flight jobs may run at shutdown
	DrainTimeout time.Duration `env:"WORKER_DRAIN_TIMEOUT" envDefault:"30s"`

	// JanitorInterval between expired-lease sweeps
	JanitorInterval time.Duration `env:"QUEUE_JANITOR_INTERVAL" envDefault:"30s"`

	// PoisonThreshold consecutive failures of one job type before that
	// type is paused for PoisonCooldown
	PoisonThreshold int           `env:"WORKER_POISON_THRESHOLD" envDefault:"5"`
	PoisonCooldown  time.Duration `env:"WORKER_POISON_COOLDOWN" envDefault:"5m"`
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Package config loads, defaults and validates the holidaybot configuration.
// Values come from defaults, then config.yaml, then HOLIDAYBOT_* environment
// variables (e.g. HOLIDAYBOT_TELEGRAM_TOKEN).
package config

import (
	"time"
)

// Config holds the complete application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Holidays  HolidaysConfig  `mapstructure:"holidays"`
	Images    ImagesConfig    `mapstructure:"images"`
	Card      CardConfig      `mapstructure:"card"`
	Queries   QueriesConfig   `mapstructure:"queries"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig defines the data store. A DSN starting with postgres:// or
// postgresql:// selects PostgreSQL, anything else is treated as a SQLite path.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn" validate:"required"`
}

// TelegramConfig defines bot credentials and user-facing texts.
type TelegramConfig struct {
	Token    string         `mapstructure:"token" validate:"required"`
	Messages MessagesConfig `mapstructure:"messages"`
}

// MessagesConfig holds the texts the bot sends.
type MessagesConfig struct {
	Welcome         string `mapstructure:"welcome"          validate:"required"`
	Disabled        string `mapstructure:"disabled"         validate:"required"`
	AlreadyDisabled string `mapstructure:"already_disabled" validate:"required"`
	Wait            string `mapstructure:"wait"             validate:"required"`
	GeneralError    string `mapstructure:"general_error"    validate:"required"`
}

// HTTPConfig defines the HTTP API listener.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"min=1s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
}

// HolidaysConfig defines the holiday lookup provider.
type HolidaysConfig struct {
	BaseURL     string        `mapstructure:"base_url"     validate:"required,url"`
	BannedParts []string      `mapstructure:"banned_parts"`
	Timeout     time.Duration `mapstructure:"timeout"      validate:"min=1s,max=2m"`
	MemoSize    int           `mapstructure:"memo_size"    validate:"min=1"`
	MemoTTL     time.Duration `mapstructure:"memo_ttl"     validate:"min=1m"`
	MinYear     int           `mapstructure:"min_year"     validate:"min=1900"`
}

// ImagesConfig defines the image source provider and the on-disk image pool.
type ImagesConfig struct {
	Provider      string        `mapstructure:"provider"        validate:"required,oneof=search gemini openai"`
	CacheDir      string        `mapstructure:"cache_dir"       validate:"required"`
	QueryFill     int           `mapstructure:"query_fill"      validate:"min=1,max=50"`
	PrewarmFill   int           `mapstructure:"prewarm_fill"    validate:"min=1,max=100"`
	Timeout       time.Duration `mapstructure:"timeout"         validate:"min=1s,max=10m"`
	RatePerMinute int           `mapstructure:"rate_per_minute" validate:"min=1"`

	Search SearchConfig `mapstructure:"search"`
	Gemini GeminiConfig `mapstructure:"gemini"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// SearchConfig configures the Google Custom Search image provider.
type SearchConfig struct {
	Endpoint string `mapstructure:"endpoint" validate:"required,url"`
	APIKey   string `mapstructure:"api_key"`
	EngineID string `mapstructure:"engine_id"`
}

// GeminiConfig configures the Imagen provider.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model" validate:"required"`
}

// OpenAIConfig configures the DALL-E provider.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	Model   string `mapstructure:"model"    validate:"required"`
	Size    string `mapstructure:"size"     validate:"required"`
}

// CardConfig defines greeting card assets.
type CardConfig struct {
	StickersDir string `mapstructure:"stickers_dir" validate:"required"`
	FontPath    string `mapstructure:"font_path"`
}

// QueriesConfig defines the image query pipeline.
type QueriesConfig struct {
	ArtifactsDir   string        `mapstructure:"artifacts_dir"   validate:"required"`
	MaxRetries     int           `mapstructure:"max_retries"     validate:"min=1,max=20"`
	Workers        int           `mapstructure:"workers"         validate:"min=1,max=64"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" validate:"min=1s,max=30m"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"   validate:"min=0,max=10m"`
}

// SchedulerConfig defines daily deliveries and maintenance tasks.
type SchedulerConfig struct {
	Timezone    string                `mapstructure:"timezone"     validate:"required"`
	WindowStart int                   `mapstructure:"window_start" validate:"min=0,max=23"`
	WindowEnd   int                   `mapstructure:"window_end"   validate:"min=1,max=24,gtfield=WindowStart"`
	RetryDelay  time.Duration         `mapstructure:"retry_delay"  validate:"min=1s"`
	RunTimeout  time.Duration         `mapstructure:"run_timeout"  validate:"min=1s"`
	Tasks       map[string]TaskConfig `mapstructure:"tasks"        validate:"dive"`
}

// TaskConfig defines one cron-driven maintenance task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// Location resolves the scheduler time zone. Load has already validated it.
func (c SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

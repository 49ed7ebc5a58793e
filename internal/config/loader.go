package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/edgard/holidaybot/internal/errs"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "HOLIDAYBOT"

// Load loads and validates configuration from:
// 1. Default values
// 2. the YAML file at path (optional; a missing file is not an error)
// 3. HOLIDAYBOT_* environment variables
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, errs.NewConfigError(fmt.Sprintf("failed to read config file %s", path), err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.NewConfigError("failed to parse config", err)
	}

	// Single-string env values ("a, b") arrive as one element; split them here.
	cfg.Holidays.BannedParts = normalizeBannedParts(cfg.Holidays.BannedParts)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate runs struct validation plus the checks tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errs.NewConfigError("invalid configuration", err)
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return errs.NewConfigError("invalid scheduler timezone", err)
	}

	switch c.Images.Provider {
	case "search":
		if c.Images.Search.APIKey == "" || c.Images.Search.EngineID == "" {
			return errs.NewConfigError("images.search.api_key and images.search.engine_id are required for the search provider", nil)
		}
	case "gemini":
		if c.Images.Gemini.APIKey == "" {
			return errs.NewConfigError("images.gemini.api_key is required for the gemini provider", nil)
		}
	case "openai":
		if c.Images.OpenAI.APIKey == "" {
			return errs.NewConfigError("images.openai.api_key is required for the openai provider", nil)
		}
	}

	return nil
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func normalizeBannedParts(parts []string) []string {
	var out []string
	for _, p := range parts {
		for _, s := range strings.Split(p, ",") {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// setDefaults sets default values for optional configuration parameters.
// Every key needs a default so that AutomaticEnv can override it on Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.json", false)

	v.SetDefault("database.dsn", DefaultDatabaseDSN)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.messages.welcome", DefaultMessages.Welcome)
	v.SetDefault("telegram.messages.disabled", DefaultMessages.Disabled)
	v.SetDefault("telegram.messages.already_disabled", DefaultMessages.AlreadyDisabled)
	v.SetDefault("telegram.messages.wait", DefaultMessages.Wait)
	v.SetDefault("telegram.messages.general_error", DefaultMessages.GeneralError)

	v.SetDefault("http.addr", DefaultHTTPAddr)
	v.SetDefault("http.read_timeout", DefaultHTTPReadTimeout)
	v.SetDefault("http.write_timeout", DefaultHTTPWriteTimeout)
	v.SetDefault("http.shutdown_timeout", DefaultHTTPShutdownTimeout)

	v.SetDefault("holidays.base_url", DefaultHolidaysBaseURL)
	v.SetDefault("holidays.banned_parts", []string{})
	v.SetDefault("holidays.timeout", DefaultHolidaysTimeout)
	v.SetDefault("holidays.memo_size", DefaultHolidaysMemoSize)
	v.SetDefault("holidays.memo_ttl", DefaultHolidaysMemoTTL)
	v.SetDefault("holidays.min_year", DefaultHolidaysMinYear)

	v.SetDefault("images.provider", DefaultImagesProvider)
	v.SetDefault("images.cache_dir", DefaultImagesCacheDir)
	v.SetDefault("images.query_fill", DefaultImagesQueryFill)
	v.SetDefault("images.prewarm_fill", DefaultImagesPrewarmFill)
	v.SetDefault("images.timeout", DefaultImagesTimeout)
	v.SetDefault("images.rate_per_minute", DefaultImagesRatePerMinute)
	v.SetDefault("images.search.endpoint", DefaultSearchEndpoint)
	v.SetDefault("images.search.api_key", "")
	v.SetDefault("images.search.engine_id", "")
	v.SetDefault("images.gemini.api_key", "")
	v.SetDefault("images.gemini.model", DefaultGeminiModel)
	v.SetDefault("images.openai.api_key", "")
	v.SetDefault("images.openai.base_url", DefaultOpenAIBaseURL)
	v.SetDefault("images.openai.model", DefaultOpenAIModel)
	v.SetDefault("images.openai.size", DefaultOpenAISize)

	v.SetDefault("card.stickers_dir", DefaultCardStickersDir)
	v.SetDefault("card.font_path", "")

	v.SetDefault("queries.artifacts_dir", DefaultQueriesArtifactsDir)
	v.SetDefault("queries.max_retries", DefaultQueriesMaxRetries)
	v.SetDefault("queries.workers", DefaultQueriesWorkers)
	v.SetDefault("queries.attempt_timeout", DefaultQueriesAttemptTimeout)
	v.SetDefault("queries.retry_backoff", DefaultQueriesRetryBackoff)

	v.SetDefault("scheduler.timezone", DefaultSchedulerTimezone)
	v.SetDefault("scheduler.window_start", DefaultSchedulerWindowStart)
	v.SetDefault("scheduler.window_end", DefaultSchedulerWindowEnd)
	v.SetDefault("scheduler.retry_delay", DefaultSchedulerRetryDelay)
	v.SetDefault("scheduler.run_timeout", DefaultSchedulerRunTimeout)
	for name, task := range DefaultTasks {
		v.SetDefault("scheduler.tasks."+name+".enabled", task.Enabled)
		v.SetDefault("scheduler.tasks."+name+".schedule", task.Schedule)
	}
}

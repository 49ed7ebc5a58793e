package imagesource

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgard/holidaybot/internal/config"
)

// New builds the configured provider wrapped in a rate limiter.
func New(ctx context.Context, cfg config.ImagesConfig, logger *slog.Logger) (Source, error) {
	var src Source
	switch cfg.Provider {
	case "search":
		src = NewSearch(SearchConfig{
			Endpoint: cfg.Search.Endpoint,
			APIKey:   cfg.Search.APIKey,
			EngineID: cfg.Search.EngineID,
			Timeout:  cfg.Timeout,
		}, logger)
	case "gemini":
		g, err := NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
		if err != nil {
			return nil, err
		}
		src = g
	case "openai":
		src = NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.OpenAI.Size, logger)
	default:
		return nil, fmt.Errorf("unknown image provider %q", cfg.Provider)
	}
	return NewThrottled(src, cfg.RatePerMinute, cfg.Timeout), nil
}

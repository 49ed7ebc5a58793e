package imagesource

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/edgard/holidaybot/internal/errs"
)

// OpenAI generates images with the OpenAI images endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	size   string
	log    *slog.Logger
}

// NewOpenAI creates a DALL-E backed source. baseURL allows OpenAI-compatible gateways.
func NewOpenAI(apiKey, baseURL, model, size string, logger *slog.Logger) *OpenAI {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		size:   size,
		log:    logger.With("component", "image_openai"),
	}
}

// Images requests one image per call, as dall-e-3 only accepts n=1.
func (o *OpenAI) Images(ctx context.Context, query string, count int) ([]Image, error) {
	images := make([]Image, 0, count)
	for calls := 0; len(images) < count && calls < 2*count; calls++ {
		resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
			Prompt:         fmt.Sprintf(promptTemplate, query),
			Model:          o.model,
			N:              1,
			Size:           o.size,
			ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		})
		if err != nil {
			if len(images) > 0 {
				o.log.WarnContext(ctx, "Image generation stopped early", "collected", len(images), "error", err)
				break
			}
			return nil, errs.NewProviderError("image generation failed", err)
		}
		if len(resp.Data) == 0 {
			break
		}
		for _, d := range resp.Data {
			data, err := base64.StdEncoding.DecodeString(d.B64JSON)
			if err != nil {
				o.log.WarnContext(ctx, "Discarding malformed image payload", "error", err)
				continue
			}
			img, err := Inspect(data)
			if err != nil {
				o.log.WarnContext(ctx, "Discarding undecodable generated image", "error", err)
				continue
			}
			images = append(images, img)
		}
	}
	return images, nil
}

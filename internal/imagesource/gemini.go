package imagesource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/holidaybot/internal/errs"
)

const promptTemplate = "A festive, colorful postcard illustration for the holiday \"%s\". No text, no letters."

// Gemini generates images with an Imagen model through the Gemini API.
type Gemini struct {
	client     *genai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
	log        *slog.Logger
}

// NewGemini creates a generative image source.
func NewGemini(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	log := logger.With("component", "image_gemini")
	log.Info("Gemini image client initialized", "model", model)
	return &Gemini{
		client:     gi,
		model:      model,
		maxRetries: 2,
		retryDelay: 2 * time.Second,
		log:        log,
	}, nil
}

// Images calls the model until count images are collected.
func (g *Gemini) Images(ctx context.Context, query string, count int) ([]Image, error) {
	prompt := fmt.Sprintf(promptTemplate, query)
	images := make([]Image, 0, count)

	for calls := 0; len(images) < count && calls < count+g.maxRetries; calls++ {
		resp, err := g.generateWithRetries(ctx, prompt)
		if err != nil {
			if len(images) > 0 {
				break
			}
			return nil, errs.NewProviderError("image generation failed", err)
		}
		if len(resp.GeneratedImages) == 0 {
			break
		}
		for _, gen := range resp.GeneratedImages {
			if gen == nil || gen.Image == nil {
				continue
			}
			img, err := Inspect(gen.Image.ImageBytes)
			if err != nil {
				g.log.WarnContext(ctx, "Discarding undecodable generated image", "mime_type", gen.Image.MIMEType, "error", err)
				continue
			}
			images = append(images, img)
			if len(images) == count {
				break
			}
		}
	}

	return images, nil
}

func (g *Gemini) generateWithRetries(ctx context.Context, prompt string) (*genai.GenerateImagesResponse, error) {
	var resp *genai.GenerateImagesResponse
	var err error

	for i := 0; i <= g.maxRetries; i++ {
		resp, err = g.client.Models.GenerateImages(ctx, g.model, prompt, nil)
		if err == nil {
			return resp, nil
		}

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) && i < g.maxRetries {
			g.log.InfoContext(ctx, "Retrying image generation after server error", "delay", g.retryDelay, "code", apiErr.Code)
			select {
			case <-time.After(g.retryDelay):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return nil, err
	}
	return nil, err
}

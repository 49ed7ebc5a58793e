package imagesource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"resty.dev/v3"

	"github.com/edgard/holidaybot/internal/errs"
)

const (
	searchPageSize = 10
	// The Custom Search API serves at most 100 results per query.
	searchMaxStart = 91
	maxImageBytes  = 15 << 20
)

// SearchConfig configures a Search source.
type SearchConfig struct {
	Endpoint string
	APIKey   string
	EngineID string
	Timeout  time.Duration
}

// Search finds images through the Google Custom Search JSON API and downloads them.
type Search struct {
	client   *resty.Client
	cfg      SearchConfig
	maxBytes int64
	log      *slog.Logger
}

type searchResponse struct {
	Items []struct {
		Link string `json:"link"`
		Mime string `json:"mime"`
	} `json:"items"`
}

// NewSearch creates an image search source.
func NewSearch(cfg SearchConfig, logger *slog.Logger) *Search {
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "Mozilla/5.0 (compatible; holidaybot/1.0)")
	return &Search{
		client:   client,
		cfg:      cfg,
		maxBytes: maxImageBytes,
		log:      logger.With("component", "image_search"),
	}
}

// Images pages through search results, downloading links until count images
// decode successfully or results run out.
func (s *Search) Images(ctx context.Context, query string, count int) ([]Image, error) {
	if count <= 0 {
		return nil, nil
	}

	images := make([]Image, 0, count)
	var lastErr error
	for start := 1; start <= searchMaxStart && len(images) < count; start += searchPageSize {
		links, err := s.searchPage(ctx, query, start)
		if err != nil {
			lastErr = err
			break
		}
		if len(links) == 0 {
			break
		}

		for _, link := range links {
			if len(images) >= count {
				break
			}
			if ctx.Err() != nil {
				return images, nil
			}
			img, err := s.download(ctx, link)
			if err != nil {
				s.log.DebugContext(ctx, "Skipping image link", "link", link, "error", err)
				lastErr = err
				continue
			}
			images = append(images, img)
		}
	}

	if len(images) == 0 && lastErr != nil {
		return nil, errs.NewProviderError("image search returned nothing usable", lastErr)
	}
	s.log.DebugContext(ctx, "Image search completed", "query", query, "requested", count, "found", len(images))
	return images, nil
}

func (s *Search) searchPage(ctx context.Context, query string, start int) ([]string, error) {
	var result searchResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":        s.cfg.APIKey,
			"cx":         s.cfg.EngineID,
			"q":          query,
			"searchType": "image",
			"num":        strconv.Itoa(searchPageSize),
			"start":      strconv.Itoa(start),
			"safe":       "active",
		}).
		SetResult(&result).
		Get(s.cfg.Endpoint)
	if err != nil {
		return nil, errs.NewProviderError("image search request failed", err)
	}
	if resp.IsError() {
		return nil, errs.NewProviderError(fmt.Sprintf("image search returned status %d", resp.StatusCode()), nil)
	}

	links := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		if item.Link != "" {
			links = append(links, item.Link)
		}
	}
	return links, nil
}

func (s *Search) download(ctx context.Context, link string) (Image, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(link)
	if err != nil {
		return Image{}, fmt.Errorf("download failed: %w", err)
	}
	body := resp.RawResponse.Body
	defer body.Close()

	if code := resp.RawResponse.StatusCode; code < 200 || code > 299 {
		return Image{}, fmt.Errorf("download returned status %d", code)
	}

	data, err := io.ReadAll(io.LimitReader(body, s.maxBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return Image{}, fmt.Errorf("image exceeds %d bytes", s.maxBytes)
	}
	return Inspect(data)
}

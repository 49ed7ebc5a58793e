// Package cards ties holiday lookup, the image cache and the compositor
// together to produce finished greeting cards.
package cards

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/edgard/holidaybot/internal/errs"
	"github.com/edgard/holidaybot/internal/holiday"
)

// HolidayLookup returns the holidays for a date.
type HolidayLookup interface {
	ForDate(ctx context.Context, date time.Time) (*holiday.Holidays, error)
}

// ImageCache supplies base images per holiday.
type ImageCache interface {
	TopUp(ctx context.Context, name string, threshold, count int) (int, error)
	PickRandomImage(ctx context.Context, name string) ([]byte, error)
}

// Composer renders a card over a base image.
type Composer interface {
	Compose(base []byte, holiday string) ([]byte, error)
}

// RenderRecorder observes render durations.
type RenderRecorder interface {
	RecordRender(duration time.Duration)
}

// Card is a rendered greeting for one holiday of a date.
type Card struct {
	Day     string
	Holiday string
	Image   []byte
}

// Maker produces greeting cards.
type Maker struct {
	lookup   HolidayLookup
	cache    ImageCache
	composer Composer
	fill     int
	metrics  RenderRecorder
	log      *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMaker creates a card maker that downloads fill images for a holiday whose
// pool is empty before picking one. metrics may be nil.
func NewMaker(lookup HolidayLookup, cache ImageCache, composer Composer, fill int, metrics RenderRecorder, logger *slog.Logger) *Maker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Maker{
		lookup:   lookup,
		cache:    cache,
		composer: composer,
		fill:     fill,
		metrics:  metrics,
		log:      logger.With("component", "card_maker"),
		rnd:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Make renders a card for an arbitrary holiday name.
func (m *Maker) Make(ctx context.Context, name string) ([]byte, error) {
	if _, err := m.cache.TopUp(ctx, name, 1, m.fill); err != nil {
		return nil, fmt.Errorf("populate cache: %w", err)
	}
	base, err := m.cache.PickRandomImage(ctx, name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	img, err := m.composer.Compose(base, name)
	if err != nil {
		return nil, fmt.Errorf("compose card: %w", err)
	}
	if m.metrics != nil {
		m.metrics.RecordRender(time.Since(start))
	}
	return img, nil
}

// PickHoliday looks up date and chooses one of its holidays at random.
// It fails with errs.ErrNotFound when the date has no holidays left after filtering.
func (m *Maker) PickHoliday(ctx context.Context, date time.Time) (*holiday.Holidays, string, error) {
	h, err := m.lookup.ForDate(ctx, date)
	if err != nil {
		return nil, "", err
	}
	if len(h.Holidays) == 0 {
		return h, "", errs.NewNotFoundError("No holidays found for this date", nil)
	}

	m.mu.Lock()
	name := h.Holidays[m.rnd.IntN(len(h.Holidays))]
	m.mu.Unlock()
	return h, name, nil
}

// MakeForDate renders a card for a random holiday of date.
func (m *Maker) MakeForDate(ctx context.Context, date time.Time) (*Card, error) {
	h, name, err := m.PickHoliday(ctx, date)
	if err != nil {
		return nil, err
	}

	img, err := m.Make(ctx, name)
	if err != nil {
		return nil, err
	}
	m.log.DebugContext(ctx, "Card ready", "day", h.Day, "holiday", name)
	return &Card{Day: h.Day, Holiday: name, Image: img}, nil
}

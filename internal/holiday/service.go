package holiday

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/edgard/holidaybot/internal/errs"
)

// ServiceConfig tunes the lookup service.
type ServiceConfig struct {
	BannedParts []string
	Timeout     time.Duration
	MemoSize    int
	MemoTTL     time.Duration
	MinYear     int
}

// Service wraps a Provider with validation, banned-term filtering and a
// per-date memo so repeated lookups do not hit the network.
type Service struct {
	provider Provider
	cfg      ServiceConfig
	memo     *expirable.LRU[string, Holidays]
	log      *slog.Logger
}

// NewService creates a lookup service.
func NewService(provider Provider, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MemoSize <= 0 {
		cfg.MemoSize = 64
	}
	return &Service{
		provider: provider,
		cfg:      cfg,
		memo:     expirable.NewLRU[string, Holidays](cfg.MemoSize, nil, cfg.MemoTTL),
		log:      logger.With("component", "holiday_service"),
	}
}

// ForDate returns the filtered holidays for date. Dates before the configured
// minimum year are rejected with errs.ErrValidation.
func (s *Service) ForDate(ctx context.Context, date time.Time) (*Holidays, error) {
	if date.Year() < s.cfg.MinYear {
		return nil, errs.NewValidationError(fmt.Sprintf("Dates before %d are not supported", s.cfg.MinYear), nil)
	}

	key := date.Format(time.DateOnly)
	if cached, ok := s.memo.Get(key); ok {
		return copyHolidays(cached), nil
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	raw, err := s.provider.Lookup(ctx, date)
	if err != nil {
		s.log.WarnContext(ctx, "Holiday lookup failed", "date", key, "error", err)
		return nil, err
	}

	result := Holidays{Day: raw.Day, Holidays: Filter(raw.Holidays, s.cfg.BannedParts)}
	s.memo.Add(key, result)
	s.log.DebugContext(ctx, "Holiday lookup completed", "date", key, "count", len(result.Holidays))

	return copyHolidays(result), nil
}

func copyHolidays(h Holidays) *Holidays {
	out := &Holidays{Day: h.Day, Holidays: make([]string, len(h.Holidays))}
	copy(out.Holidays, h.Holidays)
	return out
}

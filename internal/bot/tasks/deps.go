// Package tasks implements cron-driven maintenance tasks for holidaybot.
// It includes task definitions, dependencies, and registration mechanisms.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/holidaybot/internal/config"
	"github.com/edgard/holidaybot/internal/holiday"
)

// Maintainer runs data store housekeeping.
type Maintainer interface {
	RunSQLMaintenance(ctx context.Context) error
}

// HolidayLookup returns the holidays for a date.
type HolidayLookup interface {
	ForDate(ctx context.Context, date time.Time) (*holiday.Holidays, error)
}

// CacheFiller tops up the image pool of a holiday.
type CacheFiller interface {
	EnsurePopulated(ctx context.Context, name string, minCount int) (int, error)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    Maintainer
	Holidays HolidayLookup
	Cache    CacheFiller
	Config   *config.Config
	// Now defaults to time.Now in the scheduler time zone.
	Now func() time.Time
}

func (d TaskDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().In(d.Config.Scheduler.Location())
}

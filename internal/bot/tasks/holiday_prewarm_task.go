package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// newHolidayPrewarmTask fills the image pool of every holiday of the current
// day so that daily deliveries and queries find images ready.
func newHolidayPrewarmTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "holiday_prewarm")

	return func(ctx context.Context) error {
		startTime := time.Now()
		today := deps.now()
		fill := deps.Config.Images.PrewarmFill

		h, err := deps.Holidays.ForDate(ctx, today)
		if err != nil {
			log.ErrorContext(ctx, "Holiday lookup failed", "error", err, "date", today.Format(time.DateOnly))
			return fmt.Errorf("lookup holidays: %w", err)
		}
		log.InfoContext(ctx, "Pre-warming holiday images", "day", h.Day, "holidays", len(h.Holidays), "fill", fill)

		var failed []error
		for _, name := range h.Holidays {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			count, err := deps.Cache.EnsurePopulated(ctx, name, fill)
			if err != nil {
				log.WarnContext(ctx, "Failed to pre-warm holiday", "holiday", name, "error", err)
				failed = append(failed, fmt.Errorf("%s: %w", name, err))
				continue
			}
			log.DebugContext(ctx, "Holiday pre-warmed", "holiday", name, "images", count)
		}

		log.InfoContext(ctx, "Holiday pre-warm finished",
			"holidays", len(h.Holidays),
			"failed", len(failed),
			"duration", time.Since(startTime))

		if len(failed) > 0 && len(failed) == len(h.Holidays) {
			return fmt.Errorf("pre-warm failed for every holiday: %w", errors.Join(failed...))
		}
		return nil
	}
}

package imagesource

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/edgard/holidaybot/internal/errs"
)

// Throttled limits how often the wrapped Source is called.
type Throttled struct {
	next    Source
	limiter *rate.Limiter
	timeout time.Duration
}

// NewThrottled allows perMinute calls per minute with a burst of one, and bounds
// each call with timeout when it is positive.
func NewThrottled(next Source, perMinute int, timeout time.Duration) *Throttled {
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(max(perMinute, 1))), 1),
		timeout: timeout,
	}
}

func (t *Throttled) Images(ctx context.Context, query string, count int) ([]Image, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, errs.NewProviderError("image provider rate limit wait aborted", err)
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.next.Images(ctx, query, count)
}

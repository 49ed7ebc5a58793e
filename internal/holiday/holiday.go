// Package holiday looks up the holidays celebrated on a given date.
package holiday

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"
)

// Holidays is the result of a lookup for one date.
type Holidays struct {
	// Day is a human-readable label for the date, e.g. "1 января".
	Day      string   `json:"day"`
	Holidays []string `json:"holidays"`
}

// Provider fetches the holidays for a date from an external source.
type Provider interface {
	Lookup(ctx context.Context, date time.Time) (*Holidays, error)
}

// Filter drops every holiday that contains a banned part, case-insensitively.
// Order is preserved. banned entries are expected to be lower-cased already.
func Filter(holidays []string, banned []string) []string {
	out := make([]string, 0, len(holidays))
	for _, h := range holidays {
		lower := strings.ToLower(h)
		keep := true
		for _, b := range banned {
			if b != "" && strings.Contains(lower, b) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, h)
		}
	}
	return out
}

// RandomDate picks a uniformly random day of now's year. A nil rnd uses
// the global source.
func RandomDate(now time.Time, rnd *rand.Rand) time.Time {
	start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	days := int(start.AddDate(1, 0, 0).Sub(start).Hours()/24 + 0.5)
	if rnd == nil {
		return start.AddDate(0, 0, rand.IntN(days))
	}
	return start.AddDate(0, 0, rnd.IntN(days))
}

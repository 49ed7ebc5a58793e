package database

import (
	"strings"
	"time"
)

// HolidayCacheEntry tracks the on-disk image pool of one holiday.
// Directory is an opaque uuid, never derived from the holiday text, and
// ImagesCount mirrors the number of files found there at the last refill.
type HolidayCacheEntry struct {
	ID          int64     `db:"id"`
	Name        string    `db:"name"`
	NameKey     string    `db:"name_key"`
	Directory   string    `db:"directory"`
	ImagesCount int       `db:"images_count"`
	AccessedAt  time.Time `db:"accessed_at"`
	CreatedAt   time.Time `db:"created_at"`
}

// ImageQuery is an asynchronous request to render a card for free text.
// UUID is the external identifier; ID is internal only.
type ImageQuery struct {
	ID        int64     `db:"id"`
	UUID      string    `db:"uuid"`
	Query     string    `db:"query"`
	Ready     bool      `db:"ready"`
	Retries   int       `db:"retries"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Subscriber is a Telegram user receiving daily cards while Enabled.
type Subscriber struct {
	TelegramID int64     `db:"telegram_id"`
	Name       string    `db:"name"`
	Enabled    bool      `db:"enabled"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// NameKey normalizes a holiday name into its cache key.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

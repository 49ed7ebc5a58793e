package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/holidaybot/internal/errs"
)

// Store defines the interface for database operations.
// Methods should accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// GetOrCreateHolidayCache returns the cache entry for name, creating it with
	// a fresh directory uuid and zero images on first use.
	GetOrCreateHolidayCache(ctx context.Context, name string) (*HolidayCacheEntry, error)

	// UpdateHolidayCache persists the image count and access time of an entry.
	UpdateHolidayCache(ctx context.Context, id int64, imagesCount int, accessedAt time.Time) error

	// TouchHolidayCache bumps accessed_at without changing the count.
	TouchHolidayCache(ctx context.Context, id int64, accessedAt time.Time) error

	// CreateImageQuery inserts a pending query with a random external uuid.
	CreateImageQuery(ctx context.Context, text string) (*ImageQuery, error)

	// GetImageQuery looks a query up by its external uuid. Returns errs.ErrNotFound if absent.
	GetImageQuery(ctx context.Context, id string) (*ImageQuery, error)

	// MarkImageQueryReady flags a query as done.
	MarkImageQueryReady(ctx context.Context, id int64) error

	// IncrementImageQueryRetries atomically bumps retries while it is below
	// ceiling and returns the resulting value.
	IncrementImageQueryRetries(ctx context.Context, id int64, ceiling int) (int, error)

	// ListPendingImageQueries returns queries that are neither ready nor exhausted.
	ListPendingImageQueries(ctx context.Context, ceiling int) ([]*ImageQuery, error)

	// GetSubscriber returns a subscriber by Telegram id. Returns errs.ErrNotFound if absent.
	GetSubscriber(ctx context.Context, telegramID int64) (*Subscriber, error)

	// UpsertSubscriber creates the subscriber or updates its name, enabling it either way.
	UpsertSubscriber(ctx context.Context, telegramID int64, name string) (*Subscriber, error)

	// SetSubscriberEnabled flips the enabled flag and reports whether it changed.
	SetSubscriberEnabled(ctx context.Context, telegramID int64, enabled bool) (bool, error)

	// ListEnabledSubscribers returns every subscriber with enabled = true.
	ListEnabledSubscribers(ctx context.Context) ([]*Subscriber, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) now() time.Time {
	return time.Now().UTC()
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunSQLMaintenance reclaims space and refreshes planner statistics.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	statements := []string{"VACUUM", "ANALYZE"}
	if s.db.DriverName() == DriverPostgres {
		statements = []string{"VACUUM ANALYZE"}
	}

	for _, stmt := range statements {
		s.logger.DebugContext(ctx, "Running SQL maintenance statement", "statement", stmt)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.logger.ErrorContext(ctx, "SQL maintenance failed", "statement", stmt, "error", err)
			return errs.NewDatabaseError(fmt.Sprintf("maintenance statement %s failed", stmt), err)
		}
	}

	s.logger.InfoContext(ctx, "SQL maintenance completed")
	return nil
}

// GetOrCreateHolidayCache relies on the unique name_key so concurrent callers
// converge on a single row.
func (s *sqlxStore) GetOrCreateHolidayCache(ctx context.Context, name string) (*HolidayCacheEntry, error) {
	key := NameKey(name)
	if key == "" {
		return nil, errs.NewValidationError("holiday name must not be empty", nil)
	}

	now := s.now()
	insert := s.db.Rebind(`
        INSERT INTO holiday_cache (name, name_key, directory, images_count, accessed_at, created_at)
        VALUES (?, ?, ?, 0, ?, ?)
        ON CONFLICT (name_key) DO NOTHING`)
	if _, err := s.db.ExecContext(ctx, insert, name, key, uuid.NewString(), now, now); err != nil {
		s.logger.ErrorContext(ctx, "Failed to insert holiday cache entry", "name", name, "error", err)
		return nil, errs.NewDatabaseError("failed to create holiday cache entry", err)
	}

	var entry HolidayCacheEntry
	query := s.db.Rebind(`SELECT * FROM holiday_cache WHERE name_key = ?`)
	if err := s.db.GetContext(ctx, &entry, query, key); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load holiday cache entry", "name", name, "error", err)
		return nil, errs.NewDatabaseError("failed to load holiday cache entry", err)
	}
	return &entry, nil
}

func (s *sqlxStore) UpdateHolidayCache(ctx context.Context, id int64, imagesCount int, accessedAt time.Time) error {
	if imagesCount < 0 {
		return errs.NewValidationError("images count must not be negative", nil)
	}
	query := s.db.Rebind(`UPDATE holiday_cache SET images_count = ?, accessed_at = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, imagesCount, accessedAt.UTC(), id); err != nil {
		return errs.NewDatabaseError("failed to update holiday cache entry", err)
	}
	return nil
}

func (s *sqlxStore) TouchHolidayCache(ctx context.Context, id int64, accessedAt time.Time) error {
	query := s.db.Rebind(`UPDATE holiday_cache SET accessed_at = ? WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, accessedAt.UTC(), id); err != nil {
		return errs.NewDatabaseError("failed to touch holiday cache entry", err)
	}
	return nil
}

func (s *sqlxStore) CreateImageQuery(ctx context.Context, text string) (*ImageQuery, error) {
	now := s.now()
	q := &ImageQuery{
		UUID:      uuid.NewString(),
		Query:     text,
		CreatedAt: now,
		UpdatedAt: now,
	}

	insert := s.db.Rebind(`
        INSERT INTO image_queries (uuid, query, ready, retries, created_at, updated_at)
        VALUES (?, ?, ?, 0, ?, ?)
        RETURNING id`)
	if err := s.db.QueryRowxContext(ctx, insert, q.UUID, q.Query, false, q.CreatedAt, q.UpdatedAt).Scan(&q.ID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to insert image query", "error", err)
		return nil, errs.NewDatabaseError("failed to create image query", err)
	}
	return q, nil
}

func (s *sqlxStore) GetImageQuery(ctx context.Context, id string) (*ImageQuery, error) {
	var q ImageQuery
	query := s.db.Rebind(`SELECT * FROM image_queries WHERE uuid = ?`)
	if err := s.db.GetContext(ctx, &q, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewNotFoundError("image query not found", err)
		}
		return nil, errs.NewDatabaseError("failed to load image query", err)
	}
	return &q, nil
}

func (s *sqlxStore) MarkImageQueryReady(ctx context.Context, id int64) error {
	query := s.db.Rebind(`UPDATE image_queries SET ready = ?, updated_at = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, true, s.now(), id)
	if err != nil {
		return errs.NewDatabaseError("failed to mark image query ready", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.NewNotFoundError("image query not found", nil)
	}
	return nil
}

// IncrementImageQueryRetries is a single conditional UPDATE so the counter
// never passes ceiling and readers never see a torn state.
func (s *sqlxStore) IncrementImageQueryRetries(ctx context.Context, id int64, ceiling int) (int, error) {
	var retries int
	update := s.db.Rebind(`
        UPDATE image_queries SET retries = retries + 1, updated_at = ?
        WHERE id = ? AND retries < ?
        RETURNING retries`)
	err := s.db.QueryRowxContext(ctx, update, s.now(), id, ceiling).Scan(&retries)
	if err == nil {
		return retries, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, errs.NewDatabaseError("failed to increment image query retries", err)
	}

	// Already saturated or missing.
	query := s.db.Rebind(`SELECT retries FROM image_queries WHERE id = ?`)
	if err := s.db.GetContext(ctx, &retries, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errs.NewNotFoundError("image query not found", err)
		}
		return 0, errs.NewDatabaseError("failed to read image query retries", err)
	}
	return retries, nil
}

func (s *sqlxStore) ListPendingImageQueries(ctx context.Context, ceiling int) ([]*ImageQuery, error) {
	var queries []*ImageQuery
	query := s.db.Rebind(`SELECT * FROM image_queries WHERE ready = ? AND retries < ? ORDER BY id`)
	if err := s.db.SelectContext(ctx, &queries, query, false, ceiling); err != nil {
		return nil, errs.NewDatabaseError("failed to list pending image queries", err)
	}
	return queries, nil
}

func (s *sqlxStore) GetSubscriber(ctx context.Context, telegramID int64) (*Subscriber, error) {
	var sub Subscriber
	query := s.db.Rebind(`SELECT * FROM subscribers WHERE telegram_id = ?`)
	if err := s.db.GetContext(ctx, &sub, query, telegramID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.NewNotFoundError("subscriber not found", err)
		}
		return nil, errs.NewDatabaseError("failed to load subscriber", err)
	}
	return &sub, nil
}

func (s *sqlxStore) UpsertSubscriber(ctx context.Context, telegramID int64, name string) (*Subscriber, error) {
	now := s.now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errs.NewDatabaseError("failed to begin transaction", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	upsert := tx.Rebind(`
        INSERT INTO subscribers (telegram_id, name, enabled, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT (telegram_id) DO UPDATE SET name = excluded.name, enabled = excluded.enabled, updated_at = excluded.updated_at`)
	if _, err := tx.ExecContext(ctx, upsert, telegramID, name, true, now, now); err != nil {
		s.logger.ErrorContext(ctx, "Failed to upsert subscriber", "telegram_id", telegramID, "error", err)
		return nil, errs.NewDatabaseError("failed to upsert subscriber", err)
	}

	var sub Subscriber
	if err := tx.GetContext(ctx, &sub, tx.Rebind(`SELECT * FROM subscribers WHERE telegram_id = ?`), telegramID); err != nil {
		return nil, errs.NewDatabaseError("failed to load subscriber", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errs.NewDatabaseError("failed to commit subscriber", err)
	}
	return &sub, nil
}

func (s *sqlxStore) SetSubscriberEnabled(ctx context.Context, telegramID int64, enabled bool) (bool, error) {
	query := s.db.Rebind(`UPDATE subscribers SET enabled = ?, updated_at = ? WHERE telegram_id = ? AND enabled = ?`)
	res, err := s.db.ExecContext(ctx, query, enabled, s.now(), telegramID, !enabled)
	if err != nil {
		return false, errs.NewDatabaseError("failed to update subscriber", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errs.NewDatabaseError("failed to read affected rows", err)
	}
	return n > 0, nil
}

func (s *sqlxStore) ListEnabledSubscribers(ctx context.Context) ([]*Subscriber, error) {
	var subs []*Subscriber
	query := s.db.Rebind(`SELECT * FROM subscribers WHERE enabled = ? ORDER BY telegram_id`)
	if err := s.db.SelectContext(ctx, &subs, query, true); err != nil {
		return nil, errs.NewDatabaseError("failed to list subscribers", err)
	}
	return subs, nil
}

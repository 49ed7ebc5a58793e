// Package subscription delivers a greeting card to every enabled subscriber
// once a day at a random time inside a configured window.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/edgard/holidaybot/internal/cards"
	"github.com/edgard/holidaybot/internal/database"
	"github.com/edgard/holidaybot/internal/errs"
	"github.com/edgard/holidaybot/internal/metrics"
)

// JobTag marks every delivery job in the shared scheduler.
const JobTag = "daily_delivery"

// JobName returns the scheduler job name for a subscriber.
func JobName(telegramID int64) string {
	return "daily_" + strconv.FormatInt(telegramID, 10)
}

// Store is the persistence the scheduler needs.
type Store interface {
	GetSubscriber(ctx context.Context, telegramID int64) (*database.Subscriber, error)
	UpsertSubscriber(ctx context.Context, telegramID int64, name string) (*database.Subscriber, error)
	SetSubscriberEnabled(ctx context.Context, telegramID int64, enabled bool) (bool, error)
	ListEnabledSubscribers(ctx context.Context) ([]*database.Subscriber, error)
}

// CardMaker renders the card of the day.
type CardMaker interface {
	MakeForDate(ctx context.Context, date time.Time) (*cards.Card, error)
}

// Sender delivers a photo to a chat. It must return an error matching
// errs.ErrDeliveryBlocked when the recipient has blocked the bot.
type Sender interface {
	SendPhoto(ctx context.Context, chatID int64, image []byte, caption string) error
}

// DeliveryRecorder observes delivery outcomes.
type DeliveryRecorder interface {
	RecordDelivery(result string)
}

// Config tunes delivery timing.
type Config struct {
	Location    *time.Location
	WindowStart int
	WindowEnd   int
	RetryDelay  time.Duration
	// RunTimeout bounds one delivery including card generation.
	RunTimeout time.Duration
}

type scheduledJob struct {
	jobID uuid.UUID
	seq   uint64
	at    time.Time
	retry bool
}

// Daily owns one one-shot job per enabled subscriber.
type Daily struct {
	sched   gocron.Scheduler
	store   Store
	maker   CardMaker
	sender  Sender
	cfg     Config
	metrics DeliveryRecorder
	log     *slog.Logger
	now     func() time.Time

	mu   sync.Mutex
	jobs map[int64]scheduledJob
	seq  uint64
	rnd  *rand.Rand
}

// NewDaily creates the subscription scheduler on top of sched. metrics may be nil.
func NewDaily(sched gocron.Scheduler, store Store, maker CardMaker, sender Sender, cfg Config, rec DeliveryRecorder, logger *slog.Logger) *Daily {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.WindowEnd <= cfg.WindowStart {
		cfg.WindowEnd = cfg.WindowStart + 1
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	return &Daily{
		sched:   sched,
		store:   store,
		maker:   maker,
		sender:  sender,
		cfg:     cfg,
		metrics: rec,
		log:     logger.With("component", "subscriptions"),
		now:     time.Now,
		jobs:    make(map[int64]scheduledJob),
		rnd:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Enable registers or re-enables a subscriber and makes sure a daily job exists.
func (d *Daily) Enable(ctx context.Context, telegramID int64, name string) error {
	if _, err := d.store.UpsertSubscriber(ctx, telegramID, name); err != nil {
		return err
	}
	if err := d.ensureScheduled(telegramID); err != nil {
		return err
	}
	d.log.InfoContext(ctx, "Subscription enabled", "telegram_id", telegramID)
	return nil
}

// Disable turns the subscription off and cancels its job. It reports whether
// the subscription was active.
func (d *Daily) Disable(ctx context.Context, telegramID int64) (bool, error) {
	changed, err := d.store.SetSubscriberEnabled(ctx, telegramID, false)
	if err != nil {
		return false, err
	}
	d.unschedule(telegramID)
	if changed {
		d.log.InfoContext(ctx, "Subscription disabled", "telegram_id", telegramID)
	}
	return changed, nil
}

// Restore schedules jobs for every enabled subscriber and reports how many.
func (d *Daily) Restore(ctx context.Context) (int, error) {
	subs, err := d.store.ListEnabledSubscribers(ctx)
	if err != nil {
		return 0, err
	}
	for _, sub := range subs {
		if err := d.ensureScheduled(sub.TelegramID); err != nil {
			d.log.ErrorContext(ctx, "Failed to restore daily job", "telegram_id", sub.TelegramID, "error", err)
		}
	}
	d.log.InfoContext(ctx, "Restored daily jobs", "count", len(subs))
	return len(subs), nil
}

// Scheduled returns the next run time of the subscriber's job, if any.
func (d *Daily) Scheduled(telegramID int64) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	j, ok := d.jobs[telegramID]
	return j.at, ok
}

// NextDailyRun picks tomorrow at a random minute inside the delivery window.
func (d *Daily) NextDailyRun() time.Time {
	now := d.now().In(d.cfg.Location)
	d.mu.Lock()
	hour := d.cfg.WindowStart + d.rnd.IntN(d.cfg.WindowEnd-d.cfg.WindowStart)
	minute := d.rnd.IntN(60)
	d.mu.Unlock()
	return time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, d.cfg.Location)
}

func (d *Daily) ensureScheduled(telegramID int64) error {
	d.mu.Lock()
	_, exists := d.jobs[telegramID]
	d.mu.Unlock()
	if exists {
		return nil
	}
	return d.schedule(telegramID, d.NextDailyRun(), false)
}

// schedule replaces whatever job the subscriber has with a one-shot at at.
func (d *Daily) schedule(telegramID int64, at time.Time, retry bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scheduleLocked(telegramID, at, retry)
}

// reschedule is schedule for delivery outcomes. It does nothing when the
// subscription was disabled while the delivery ran.
func (d *Daily) reschedule(telegramID int64, at time.Time, retry bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.jobs[telegramID]; !ok {
		d.log.Debug("Subscription cancelled during delivery, not rescheduling", "telegram_id", telegramID)
		return nil
	}
	return d.scheduleLocked(telegramID, at, retry)
}

func (d *Daily) scheduleLocked(telegramID int64, at time.Time, retry bool) error {
	d.removeLocked(telegramID)
	d.seq++
	seq := d.seq

	job, err := d.sched.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at)),
		gocron.NewTask(func() {
			d.fire(telegramID, seq)
		}),
		gocron.WithName(JobName(telegramID)),
		gocron.WithTags(JobTag),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", JobName(telegramID), err)
	}

	d.jobs[telegramID] = scheduledJob{jobID: job.ID(), seq: seq, at: at, retry: retry}
	d.log.Debug("Scheduled delivery", "telegram_id", telegramID, "at", at, "retry", retry)
	return nil
}

func (d *Daily) unschedule(telegramID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(telegramID)
}

func (d *Daily) removeLocked(telegramID int64) {
	j, ok := d.jobs[telegramID]
	if !ok {
		return
	}
	delete(d.jobs, telegramID)
	if err := d.sched.RemoveJob(j.jobID); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		d.log.Warn("Failed to remove delivery job", "telegram_id", telegramID, "error", err)
	}
}

// fire runs when a one-shot job triggers. Jobs replaced or removed since
// they were scheduled are ignored.
func (d *Daily) fire(telegramID int64, seq uint64) {
	d.mu.Lock()
	j, ok := d.jobs[telegramID]
	if !ok || j.seq != seq {
		d.mu.Unlock()
		return
	}
	// The entry stays while the delivery runs: Disable clears it, and the
	// outcome only reschedules while it is still there.
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.RunTimeout)
	defer cancel()
	d.deliver(ctx, telegramID, j.retry)
}

// deliver sends today's card and decides what runs next for the subscriber.
func (d *Daily) deliver(ctx context.Context, telegramID int64, isRetry bool) {
	log := d.log.With("telegram_id", telegramID, "retry", isRetry)

	sub, err := d.store.GetSubscriber(ctx, telegramID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load subscriber", "error", err)
		d.afterFailure(telegramID, isRetry)
		return
	}
	if !sub.Enabled {
		log.InfoContext(ctx, "Subscriber disabled, dropping delivery")
		d.unschedule(telegramID)
		return
	}

	err = d.send(ctx, telegramID)
	switch {
	case err == nil:
		d.record(metrics.ResultSuccess)
		log.InfoContext(ctx, "Daily card delivered")
		if err := d.reschedule(telegramID, d.NextDailyRun(), false); err != nil {
			log.ErrorContext(ctx, "Failed to schedule next delivery", "error", err)
		}
	case errors.Is(err, errs.ErrDeliveryBlocked):
		d.record(metrics.ResultBlocked)
		log.WarnContext(ctx, "Subscriber blocked the bot, disabling subscription", "error", err)
		if _, err := d.Disable(ctx, telegramID); err != nil {
			log.ErrorContext(ctx, "Failed to disable blocked subscriber", "error", err)
		}
	default:
		d.record(metrics.ResultFailure)
		log.WarnContext(ctx, "Daily delivery failed", "error", err)
		d.afterFailure(telegramID, isRetry)
	}
}

func (d *Daily) send(ctx context.Context, telegramID int64) error {
	card, err := d.maker.MakeForDate(ctx, d.now().In(d.cfg.Location))
	if err != nil {
		return err
	}
	return d.sender.SendPhoto(ctx, telegramID, card.Image, "")
}

// afterFailure retries once after RetryDelay; a failed retry falls back to
// the next daily slot so the subscriber always keeps one job.
func (d *Daily) afterFailure(telegramID int64, wasRetry bool) {
	at := d.now().Add(d.cfg.RetryDelay)
	retry := true
	if wasRetry {
		at = d.NextDailyRun()
		retry = false
	}
	if err := d.reschedule(telegramID, at, retry); err != nil {
		d.log.Error("Failed to schedule delivery after failure", "telegram_id", telegramID, "error", err)
	}
}

func (d *Daily) record(result string) {
	if d.metrics != nil {
		d.metrics.RecordDelivery(result)
	}
}

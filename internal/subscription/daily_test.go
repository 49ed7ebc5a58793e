package subscription

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/holidaybot/internal/cards"
	"github.com/edgard/holidaybot/internal/database"
	"github.com/edgard/holidaybot/internal/errs"
)

type fakeMaker struct{}

func (fakeMaker) MakeForDate(context.Context, time.Time) (*cards.Card, error) {
	return &cards.Card{Day: "1 января", Holiday: "Новый год", Image: []byte("png")}, nil
}

type fakeSender struct {
	mu    sync.Mutex
	err   error
	sent  []int64
	notif chan int64
}

func (f *fakeSender) SendPhoto(_ context.Context, chatID int64, _ []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notif != nil {
		defer func() { f.notif <- chatID }()
	}
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, chatID)
	return nil
}

var fixedNow = time.Date(2025, time.March, 8, 12, 30, 0, 0, time.UTC)

func newTestDaily(t *testing.T, sender Sender) (*Daily, database.Store, gocron.Scheduler) {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })
	store := database.NewStore(db, nil)

	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	t.Cleanup(func() { _ = sched.Shutdown() })

	d := NewDaily(sched, store, fakeMaker{}, sender, Config{
		Location:    time.UTC,
		WindowStart: 9,
		WindowEnd:   18,
		RetryDelay:  5 * time.Minute,
	}, nil, nil)
	d.now = func() time.Time { return fixedNow }
	return d, store, sched
}

func assertJobCount(t *testing.T, sched gocron.Scheduler, want int) {
	t.Helper()
	if got := len(sched.Jobs()); got != want {
		t.Fatalf("scheduler has %d jobs, want %d", got, want)
	}
}

func assertDailySlot(t *testing.T, d *Daily, id int64) {
	t.Helper()
	at, ok := d.Scheduled(id)
	if !ok {
		t.Fatalf("no job scheduled for %d", id)
	}
	tomorrow := fixedNow.AddDate(0, 0, 1)
	if at.Year() != tomorrow.Year() || at.YearDay() != tomorrow.YearDay() {
		t.Errorf("job at %v, want tomorrow", at)
	}
	if at.Hour() < 9 || at.Hour() >= 18 {
		t.Errorf("job at %v, outside delivery window", at)
	}
}

func TestEnableDisableKeepsOneJob(t *testing.T) {
	t.Parallel()
	d, store, sched := newTestDaily(t, &fakeSender{})
	ctx := context.Background()

	if err := d.Enable(ctx, 42, "Alice"); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if err := d.Enable(ctx, 42, "Alice"); err != nil {
		t.Fatalf("second Enable() error = %v", err)
	}
	assertJobCount(t, sched, 1)
	assertDailySlot(t, d, 42)
	if name := sched.Jobs()[0].Name(); name != "daily_42" {
		t.Errorf("job name = %q, want daily_42", name)
	}

	wasActive, err := d.Disable(ctx, 42)
	if err != nil || !wasActive {
		t.Fatalf("Disable() = %v, %v; want true, nil", wasActive, err)
	}
	assertJobCount(t, sched, 0)
	if _, ok := d.Scheduled(42); ok {
		t.Fatal("job still tracked after Disable")
	}

	wasActive, err = d.Disable(ctx, 42)
	if err != nil || wasActive {
		t.Fatalf("second Disable() = %v, %v; want false, nil", wasActive, err)
	}

	if err := d.Enable(ctx, 42, "Alice"); err != nil {
		t.Fatalf("re-Enable() error = %v", err)
	}
	assertJobCount(t, sched, 1)

	sub, err := store.GetSubscriber(ctx, 42)
	if err != nil || !sub.Enabled {
		t.Fatalf("subscriber = %+v, %v; want enabled", sub, err)
	}
}

func TestDeliverBlockedDisablesSubscriber(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{err: errs.NewDeliveryBlockedError("bot was blocked by the user", nil)}
	d, store, sched := newTestDaily(t, sender)
	ctx := context.Background()

	if err := d.Enable(ctx, 7, "Bob"); err != nil {
		t.Fatal(err)
	}
	d.deliver(ctx, 7, false)

	sub, err := store.GetSubscriber(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Enabled {
		t.Error("blocked subscriber is still enabled")
	}
	assertJobCount(t, sched, 0)
}

func TestDeliverFailureRetriesOnceThenFallsBackToDaily(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{err: errs.NewDeliveryError("timeout", nil)}
	d, _, sched := newTestDaily(t, sender)
	ctx := context.Background()

	if err := d.Enable(ctx, 9, "Carol"); err != nil {
		t.Fatal(err)
	}

	d.deliver(ctx, 9, false)
	assertJobCount(t, sched, 1)
	at, ok := d.Scheduled(9)
	if !ok || !at.Equal(fixedNow.Add(5*time.Minute)) {
		t.Fatalf("retry scheduled at %v (%v), want %v", at, ok, fixedNow.Add(5*time.Minute))
	}

	d.deliver(ctx, 9, true)
	assertJobCount(t, sched, 1)
	assertDailySlot(t, d, 9)
}

func TestDeliverSuccessSchedulesNextDay(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	d, _, sched := newTestDaily(t, sender)
	ctx := context.Background()

	if err := d.Enable(ctx, 11, "Dave"); err != nil {
		t.Fatal(err)
	}
	d.deliver(ctx, 11, false)

	if len(sender.sent) != 1 || sender.sent[0] != 11 {
		t.Errorf("sent = %v, want [11]", sender.sent)
	}
	assertJobCount(t, sched, 1)
	assertDailySlot(t, d, 11)
}

func TestDeliverSkipsDisabledSubscriber(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	d, store, sched := newTestDaily(t, sender)
	ctx := context.Background()

	if _, err := store.UpsertSubscriber(ctx, 5, "Eve"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SetSubscriberEnabled(ctx, 5, false); err != nil {
		t.Fatal(err)
	}

	d.deliver(ctx, 5, false)
	if len(sender.sent) != 0 {
		t.Errorf("sent = %v, want nothing", sender.sent)
	}
	assertJobCount(t, sched, 0)
}

func TestRestoreSchedulesEnabledSubscribers(t *testing.T) {
	t.Parallel()
	d, store, sched := newTestDaily(t, &fakeSender{})
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		if _, err := store.UpsertSubscriber(ctx, id, "user"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.SetSubscriberEnabled(ctx, 2, false); err != nil {
		t.Fatal(err)
	}

	n, err := d.Restore(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Restore() = %d, %v; want 2", n, err)
	}
	if _, err := d.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	assertJobCount(t, sched, 2)
}

func TestScheduledJobFires(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{notif: make(chan int64, 1)}
	d, _, sched := newTestDaily(t, sender)
	ctx := context.Background()

	if err := d.Enable(ctx, 77, "Frank"); err != nil {
		t.Fatal(err)
	}
	d.now = time.Now
	if err := d.schedule(77, time.Now().Add(200*time.Millisecond), false); err != nil {
		t.Fatalf("schedule() error = %v", err)
	}
	sched.Start()

	select {
	case id := <-sender.notif:
		if id != 77 {
			t.Fatalf("delivered to %d, want 77", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job did not fire")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if at, ok := d.Scheduled(77); ok && at.After(time.Now().Add(time.Hour)) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("next daily job was not scheduled after delivery")
}

type hookSender struct {
	hook func()
}

func (h *hookSender) SendPhoto(context.Context, int64, []byte, string) error {
	h.hook()
	return nil
}

func TestDisableDuringDeliveryIsNotUndone(t *testing.T) {
	t.Parallel()
	sender := &hookSender{}
	d, store, sched := newTestDaily(t, sender)
	ctx := context.Background()

	if err := d.Enable(ctx, 21, "Grace"); err != nil {
		t.Fatal(err)
	}
	sender.hook = func() {
		if _, err := d.Disable(ctx, 21); err != nil {
			t.Errorf("Disable() error = %v", err)
		}
	}

	d.mu.Lock()
	seq := d.jobs[21].seq
	d.mu.Unlock()
	d.fire(21, seq)

	if _, ok := d.Scheduled(21); ok {
		t.Fatal("delivery rescheduled a disabled subscription")
	}
	assertJobCount(t, sched, 0)
	sub, err := store.GetSubscriber(ctx, 21)
	if err != nil || sub.Enabled {
		t.Fatalf("subscriber = %+v, %v; want disabled", sub, err)
	}
}

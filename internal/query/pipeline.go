// Package query runs asynchronous image queries: each query renders a greeting
// card for free text in the background and is polled for status by id.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/edgard/holidaybot/internal/database"
	"github.com/edgard/holidaybot/internal/errs"
	"github.com/edgard/holidaybot/internal/metrics"
)

// User-facing messages.
const (
	msgNotFound = "This query was not found"
	msgNotReady = "This query has not yet been processed"
	msgEmpty    = "Query must not be empty"
)

// Store is the persistence the pipeline needs.
type Store interface {
	CreateImageQuery(ctx context.Context, text string) (*database.ImageQuery, error)
	GetImageQuery(ctx context.Context, id string) (*database.ImageQuery, error)
	MarkImageQueryReady(ctx context.Context, id int64) error
	IncrementImageQueryRetries(ctx context.Context, id int64, ceiling int) (int, error)
	ListPendingImageQueries(ctx context.Context, ceiling int) ([]*database.ImageQuery, error)
}

// CardMaker renders a card for a holiday name or free text.
type CardMaker interface {
	Make(ctx context.Context, name string) ([]byte, error)
}

// Recorder observes pipeline events.
type Recorder interface {
	RecordQuerySubmitted()
	RecordQueryAttempt(result string)
	RecordQueryExhausted()
}

// Config tunes the pipeline.
type Config struct {
	ArtifactsDir   string
	MaxRetries     int
	Workers        int
	AttemptTimeout time.Duration
	RetryBackoff   time.Duration
}

// Status is the externally visible state of a query.
type Status struct {
	ID    string `json:"id"`
	Query string `json:"query"`
	Ready bool   `json:"ready"`
	Error bool   `json:"error"`
}

// Pipeline accepts queries and processes them on a bounded set of workers.
type Pipeline struct {
	store     Store
	maker     CardMaker
	artifacts *artifactStore
	cfg       Config
	sem       *semaphore.Weighted
	metrics   Recorder
	log       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inflight map[int64]struct{}
}

// New creates a pipeline. metrics may be nil.
func New(store Store, maker CardMaker, cfg Config, rec Recorder, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries <= 0 {
		return nil, fmt.Errorf("max retries must be positive, got %d", cfg.MaxRetries)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	artifacts, err := newArtifactStore(cfg.ArtifactsDir)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		store:     store,
		maker:     maker,
		artifacts: artifacts,
		cfg:       cfg,
		sem:       semaphore.NewWeighted(int64(cfg.Workers)),
		metrics:   rec,
		log:       logger.With("component", "query_pipeline"),
		ctx:       ctx,
		cancel:    cancel,
		inflight:  make(map[int64]struct{}),
	}, nil
}

// Submit records a pending query for text and starts processing it in the
// background. It returns as soon as the record exists.
func (p *Pipeline) Submit(ctx context.Context, text string) (*database.ImageQuery, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errs.NewValidationError(msgEmpty, nil)
	}

	q, err := p.store.CreateImageQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.RecordQuerySubmitted()
	}
	p.log.InfoContext(ctx, "Query submitted", "query_id", q.UUID, "query", text)

	p.enqueue(q)
	return q, nil
}

// Resume re-enqueues queries left pending by a previous run and reports how many.
func (p *Pipeline) Resume(ctx context.Context) (int, error) {
	pending, err := p.store.ListPendingImageQueries(ctx, p.cfg.MaxRetries)
	if err != nil {
		return 0, err
	}
	for _, q := range pending {
		p.enqueue(q)
	}
	if len(pending) > 0 {
		p.log.InfoContext(ctx, "Resumed pending queries", "count", len(pending))
	}
	return len(pending), nil
}

// Status reports the state of query id.
func (p *Pipeline) Status(ctx context.Context, id string) (*Status, error) {
	q, err := p.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Status{
		ID:    q.UUID,
		Query: q.Query,
		Ready: q.Ready,
		Error: !q.Ready && q.Retries >= p.cfg.MaxRetries,
	}, nil
}

// FetchArtifact returns the rendered PNG for a ready query.
func (p *Pipeline) FetchArtifact(ctx context.Context, id string) ([]byte, error) {
	q, err := p.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.Ready {
		return nil, errs.NewNotReadyError(msgNotReady, nil)
	}
	data, err := p.artifacts.Load(q.UUID)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", q.UUID, err)
	}
	return data, nil
}

// Wait blocks until every enqueued query has finished processing.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Close stops taking new attempts and waits for running ones to return.
func (p *Pipeline) Close() {
	p.cancel()
	p.wg.Wait()
}

func (p *Pipeline) lookup(ctx context.Context, id string) (*database.ImageQuery, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errs.NewNotFoundError(msgNotFound, err)
	}
	q, err := p.store.GetImageQuery(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.NewNotFoundError(msgNotFound, err)
		}
		return nil, err
	}
	return q, nil
}

// enqueue starts processing q unless an attempt for it is already running.
func (p *Pipeline) enqueue(q *database.ImageQuery) {
	p.mu.Lock()
	if _, busy := p.inflight[q.ID]; busy {
		p.mu.Unlock()
		return
	}
	p.inflight[q.ID] = struct{}{}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer func() {
			p.mu.Lock()
			delete(p.inflight, q.ID)
			p.mu.Unlock()
			p.wg.Done()
		}()
		p.process(q)
	}()
}

// process runs attempts until q is ready or its retries reach the ceiling.
func (p *Pipeline) process(q *database.ImageQuery) {
	log := p.log.With("query_id", q.UUID)
	retries := q.Retries

	for retries < p.cfg.MaxRetries {
		err := p.attempt(q)
		if err == nil {
			p.record(metrics.ResultSuccess)
			log.Info("Query ready", "retries", retries)
			return
		}
		if p.ctx.Err() != nil {
			log.Info("Pipeline stopping, leaving query pending", "retries", retries)
			return
		}
		p.record(metrics.ResultFailure)

		next, incErr := p.store.IncrementImageQueryRetries(p.ctx, q.ID, p.cfg.MaxRetries)
		if incErr != nil {
			log.Error("Failed to record retry", "error", incErr)
			next = retries + 1
		}
		retries = next
		log.Warn("Query attempt failed", "retries", retries, "max_retries", p.cfg.MaxRetries, "error", err)

		if retries >= p.cfg.MaxRetries {
			break
		}
		if !p.sleep(p.cfg.RetryBackoff) {
			return
		}
	}

	if p.metrics != nil {
		p.metrics.RecordQueryExhausted()
	}
	log.Error("Query failed permanently", "retries", retries)
}

func (p *Pipeline) attempt(q *database.ImageQuery) error {
	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	ctx := p.ctx
	if p.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.AttemptTimeout)
		defer cancel()
	}

	img, err := p.maker.Make(ctx, q.Query)
	if err != nil {
		return err
	}
	if err := p.artifacts.Save(q.UUID, img); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	return p.store.MarkImageQueryReady(ctx, q.ID)
}

func (p *Pipeline) sleep(d time.Duration) bool {
	if d <= 0 {
		return p.ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-p.ctx.Done():
		return false
	}
}

func (p *Pipeline) record(result string) {
	if p.metrics != nil {
		p.metrics.RecordQueryAttempt(result)
	}
}

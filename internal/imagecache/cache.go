// Package imagecache keeps a per-holiday pool of source images on disk and
// refills it from an image source when it runs low.
package imagecache

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/edgard/holidaybot/internal/database"
	"github.com/edgard/holidaybot/internal/errs"
	"github.com/edgard/holidaybot/internal/fsutil"
	"github.com/edgard/holidaybot/internal/imagesource"
)

// Metrics receives cache events.
type Metrics interface {
	RecordCacheRefill(downloaded int)
	RecordCacheLookup(hit bool)
}

// Cache stores images under root/<entry directory>/ and tracks counts in the store.
type Cache struct {
	store   database.Store
	source  imagesource.Source
	root    string
	group   singleflight.Group
	metrics Metrics
	log     *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// New creates a cache rooted at dir.
func New(store database.Store, source imagesource.Source, dir string, metrics Metrics, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir %s: %w", dir, err)
	}
	return &Cache{
		store:   store,
		source:  source,
		root:    dir,
		metrics: metrics,
		log:     logger.With("component", "image_cache"),
		rnd:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}, nil
}

// EnsurePopulated makes sure the pool for name holds at least minCount images,
// downloading minCount more when it does not. It returns the number of images
// on disk afterwards, which may still be below minCount or zero.
func (c *Cache) EnsurePopulated(ctx context.Context, name string, minCount int) (int, error) {
	return c.TopUp(ctx, name, minCount, minCount)
}

// TopUp downloads count images for name when the pool holds fewer than
// threshold. It returns the number of images on disk afterwards.
// Concurrent calls for the same name share one refill; a caller whose
// threshold the shared refill did not reach runs its own once.
func (c *Cache) TopUp(ctx context.Context, name string, threshold, count int) (int, error) {
	key := database.NameKey(name)
	for attempt := 0; ; attempt++ {
		ran := false
		v, err, shared := c.group.Do(key, func() (any, error) {
			ran = true
			return c.ensure(ctx, name, threshold, count)
		})
		if err != nil {
			return 0, err
		}
		n := v.(int)
		if ran || n >= threshold || attempt > 0 {
			return n, nil
		}
		if shared {
			c.log.DebugContext(ctx, "Joined refill fell short, refilling again", "holiday", name, "count", n, "threshold", threshold)
		}
	}
}

func (c *Cache) ensure(ctx context.Context, name string, threshold, count int) (int, error) {
	entry, err := c.store.GetOrCreateHolidayCache(ctx, name)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	if entry.ImagesCount >= threshold {
		c.recordHit(true)
		if err := c.store.TouchHolidayCache(ctx, entry.ID, now); err != nil {
			c.log.WarnContext(ctx, "Failed to touch cache entry", "holiday", name, "error", err)
		}
		return entry.ImagesCount, nil
	}
	c.recordHit(false)

	dir := c.dir(entry)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create holiday dir: %w", err)
	}

	images, fetchErr := c.source.Images(ctx, name, count)
	if fetchErr != nil {
		c.log.WarnContext(ctx, "Image source failed", "holiday", name, "error", fetchErr)
	}

	saved := 0
	for _, img := range images {
		if _, err := imagesource.Inspect(img.Data); err != nil {
			c.log.DebugContext(ctx, "Discarding undecodable image", "holiday", name, "error", err)
			continue
		}
		if err := fsutil.WriteAtomic(dir, uuid.NewString()+img.Ext, img.Data); err != nil {
			c.log.WarnContext(ctx, "Failed to store image", "holiday", name, "error", err)
			continue
		}
		saved++
	}

	total, err := countFiles(dir)
	if err != nil {
		return 0, err
	}
	if err := c.store.UpdateHolidayCache(ctx, entry.ID, total, time.Now()); err != nil {
		return 0, err
	}

	if c.metrics != nil {
		c.metrics.RecordCacheRefill(saved)
	}
	c.log.InfoContext(ctx, "Holiday cache refilled", "holiday", name, "downloaded", saved, "count", total)

	if total == 0 && fetchErr != nil {
		return 0, fetchErr
	}
	return total, nil
}

// PickRandomImage returns a uniformly chosen image for name, or
// errs.ErrEmptyCache when the pool has none.
func (c *Cache) PickRandomImage(ctx context.Context, name string) ([]byte, error) {
	entry, err := c.store.GetOrCreateHolidayCache(ctx, name)
	if err != nil {
		return nil, err
	}

	files, err := listFiles(c.dir(entry))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errs.NewEmptyCacheError(fmt.Sprintf("no cached images for %q", name), nil)
	}

	c.mu.Lock()
	pick := files[c.rnd.IntN(len(files))]
	c.mu.Unlock()

	data, err := os.ReadFile(pick)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached image: %w", err)
	}
	return data, nil
}

func (c *Cache) dir(entry *database.HolidayCacheEntry) string {
	return filepath.Join(c.root, entry.Directory)
}

func (c *Cache) recordHit(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(hit)
	}
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !fsutil.IsVisible(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

func countFiles(dir string) (int, error) {
	files, err := listFiles(dir)
	return len(files), err
}

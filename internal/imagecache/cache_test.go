package imagecache

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgard/holidaybot/internal/database"
	"github.com/edgard/holidaybot/internal/errs"
	"github.com/edgard/holidaybot/internal/fsutil"
	"github.com/edgard/holidaybot/internal/imagesource"
)

type fakeSource struct {
	calls     atomic.Int32
	requested atomic.Int32
	images  []imagesource.Image
	err     error
	release chan struct{}
}

func (f *fakeSource) Images(ctx context.Context, _ string, count int) ([]imagesource.Image, error) {
	f.calls.Add(1)
	f.requested.Store(int32(count))
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if count > len(f.images) {
		count = len(f.images)
	}
	return f.images[:count], nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func newTestCache(t *testing.T, src imagesource.Source) (*Cache, database.Store, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := database.NewDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })
	store := database.NewStore(db, nil)

	root := filepath.Join(dir, "cache")
	c, err := New(store, src, root, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, store, root
}

func TestEnsurePopulatedRefillsOnlyWhenLow(t *testing.T) {
	t.Parallel()

	img := imagesource.Image{Data: testPNG(t), Ext: ".png"}
	src := &fakeSource{images: []imagesource.Image{img, img, img, img, img, img}}
	c, store, root := newTestCache(t, src)
	ctx := context.Background()

	n, err := c.EnsurePopulated(ctx, "Новый год", 5)
	if err != nil {
		t.Fatalf("EnsurePopulated() error = %v", err)
	}
	if n != 5 {
		t.Fatalf("count = %d, want 5", n)
	}

	n, err = c.EnsurePopulated(ctx, "новый год", 5)
	if err != nil || n != 5 {
		t.Fatalf("second EnsurePopulated() = %d, %v", n, err)
	}
	if calls := src.calls.Load(); calls != 1 {
		t.Errorf("source calls = %d, want 1", calls)
	}

	entry, err := store.GetOrCreateHolidayCache(ctx, "Новый год")
	if err != nil {
		t.Fatalf("GetOrCreateHolidayCache() error = %v", err)
	}
	files, _ := os.ReadDir(filepath.Join(root, entry.Directory))
	if len(files) != entry.ImagesCount {
		t.Errorf("disk has %d files, store says %d", len(files), entry.ImagesCount)
	}
	if entry.Directory == "Новый год" || filepath.Base(entry.Directory) != entry.Directory {
		t.Errorf("directory %q must be an opaque id", entry.Directory)
	}

	data, err := c.PickRandomImage(ctx, "Новый год")
	if err != nil {
		t.Fatalf("PickRandomImage() error = %v", err)
	}
	if !bytes.Equal(data, img.Data) {
		t.Error("PickRandomImage() returned unexpected bytes")
	}
}

func TestEnsurePopulatedDiscardsUndecodable(t *testing.T) {
	t.Parallel()

	src := &fakeSource{images: []imagesource.Image{
		{Data: []byte("<html>"), Ext: ".png"},
		{Data: testPNG(t), Ext: ".png"},
	}}
	c, _, _ := newTestCache(t, src)

	n, err := c.EnsurePopulated(context.Background(), "День знаний", 5)
	if err != nil {
		t.Fatalf("EnsurePopulated() error = %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestEnsurePopulatedSourceFailure(t *testing.T) {
	t.Parallel()

	src := &fakeSource{err: errs.NewProviderError("quota", nil)}
	c, _, _ := newTestCache(t, src)

	if _, err := c.EnsurePopulated(context.Background(), "День знаний", 5); !errors.Is(err, errs.ErrProvider) {
		t.Fatalf("EnsurePopulated() error = %v, want provider error", err)
	}
	if _, err := c.PickRandomImage(context.Background(), "День знаний"); !errors.Is(err, errs.ErrEmptyCache) {
		t.Fatalf("PickRandomImage() error = %v, want empty cache", err)
	}
}

func TestEnsurePopulatedCollapsesConcurrentRefills(t *testing.T) {
	t.Parallel()

	img := imagesource.Image{Data: testPNG(t), Ext: ".png"}
	src := &fakeSource{images: []imagesource.Image{img, img, img}, release: make(chan struct{})}
	c, _, _ := newTestCache(t, src)

	var wg sync.WaitGroup
	results := make([]int, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := c.EnsurePopulated(context.Background(), "Масленица", 3)
			if err != nil {
				t.Errorf("EnsurePopulated() error = %v", err)
			}
			results[i] = n
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	if calls := src.calls.Load(); calls != 1 {
		t.Errorf("source calls = %d, want 1", calls)
	}
	for i, n := range results {
		if n != 3 {
			t.Errorf("result[%d] = %d, want 3", i, n)
		}
	}
}

func TestEnsurePopulatedLargerCallerDoesNotSettleForSmallerRefill(t *testing.T) {
	t.Parallel()

	img := imagesource.Image{Data: testPNG(t), Ext: ".png"}
	images := make([]imagesource.Image, 30)
	for i := range images {
		images[i] = img
	}
	src := &fakeSource{images: images, release: make(chan struct{})}
	c, _, _ := newTestCache(t, src)
	ctx := context.Background()

	var wg sync.WaitGroup
	var small, large int
	wg.Add(2)
	go func() {
		defer wg.Done()
		n, err := c.EnsurePopulated(ctx, "Масленица", 5)
		if err != nil {
			t.Errorf("EnsurePopulated(5) error = %v", err)
		}
		small = n
	}()
	time.Sleep(20 * time.Millisecond)
	go func() {
		defer wg.Done()
		n, err := c.EnsurePopulated(ctx, "Масленица", 20)
		if err != nil {
			t.Errorf("EnsurePopulated(20) error = %v", err)
		}
		large = n
	}()
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()

	if small < 5 {
		t.Errorf("EnsurePopulated(5) = %d, want at least 5", small)
	}
	if large < 20 {
		t.Errorf("EnsurePopulated(20) = %d, want at least 20", large)
	}
	if calls := src.calls.Load(); calls != 2 {
		t.Errorf("source calls = %d, want 2", calls)
	}
}

func TestTopUpSeparatesThresholdFromDownloadSize(t *testing.T) {
	t.Parallel()

	img := imagesource.Image{Data: testPNG(t), Ext: ".png"}
	src := &fakeSource{images: []imagesource.Image{img, img}}
	c, _, _ := newTestCache(t, src)
	ctx := context.Background()

	n, err := c.TopUp(ctx, "Пасха", 1, 5)
	if err != nil {
		t.Fatalf("TopUp() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want the 2 images the source had", n)
	}
	if got := src.requested.Load(); got != 5 {
		t.Errorf("source asked for %d images, want 5", got)
	}

	n, err = c.TopUp(ctx, "Пасха", 1, 5)
	if err != nil || n != 2 {
		t.Fatalf("second TopUp() = %d, %v", n, err)
	}
	if calls := src.calls.Load(); calls != 1 {
		t.Errorf("source calls = %d, want 1 since the pool is not empty", calls)
	}
}

func TestEnsurePopulatedRejectsTruncatedImage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 200, 200))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	full := buf.Bytes()
	src := &fakeSource{images: []imagesource.Image{{Data: full[:len(full)/2], Ext: ".png"}}}
	c, store, root := newTestCache(t, src)
	ctx := context.Background()

	n, err := c.EnsurePopulated(ctx, "День знаний", 1)
	if err != nil {
		t.Fatalf("EnsurePopulated() error = %v", err)
	}
	if n != 0 {
		t.Errorf("count = %d, want 0", n)
	}

	entry, err := store.GetOrCreateHolidayCache(ctx, "День знаний")
	if err != nil {
		t.Fatalf("GetOrCreateHolidayCache() error = %v", err)
	}
	files, _ := os.ReadDir(filepath.Join(root, entry.Directory))
	if len(files) != 0 {
		t.Errorf("disk has %d files, want none", len(files))
	}
}

func TestListFilesSkipsTemporaryFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := fsutil.WriteAtomic(dir, "a.png", []byte("x")); err != nil {
		t.Fatalf("WriteAtomic() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".b.png-123.tmp"), []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, err := listFiles(dir)
	if err != nil {
		t.Fatalf("listFiles() error = %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "a.png" {
		t.Errorf("listFiles() = %v, want only a.png", files)
	}

	missing, err := listFiles(filepath.Join(dir, "nope"))
	if err != nil || len(missing) != 0 {
		t.Errorf("listFiles(missing) = %v, %v", missing, err)
	}
}

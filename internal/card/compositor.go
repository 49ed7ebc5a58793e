// Package card renders greeting cards: a base photo with a random sticker
// and a wrapped greeting caption along the bottom edge.
package card

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	"image/png"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp" // register decoder

	"github.com/edgard/holidaybot/internal/greeting"
)

const (
	minStickerSide = 10
	fontDivisor    = 16
)

// Config locates the card assets.
type Config struct {
	StickersDir string
	// FontPath points to a TTF/OTF file; the bundled Go font is used when empty.
	FontPath string
}

// Compositor draws greeting cards. It is safe for concurrent use.
type Compositor struct {
	font     *opentype.Font
	stickers []image.Image
	log      *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// New loads the font and every decodable image in cfg.StickersDir.
// A missing or empty sticker directory is allowed; cards are then drawn without one.
func New(cfg Config, logger *slog.Logger) (*Compositor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "card_compositor")

	fontData := goregular.TTF
	if cfg.FontPath != "" {
		data, err := os.ReadFile(cfg.FontPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read font %s: %w", cfg.FontPath, err)
		}
		fontData = data
	}
	f, err := opentype.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	stickers, err := loadStickers(cfg.StickersDir, log)
	if err != nil {
		return nil, err
	}
	log.Info("Card compositor ready", "stickers", len(stickers))

	return &Compositor{
		font:     f,
		stickers: stickers,
		log:      log,
		rnd:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}, nil
}

func loadStickers(dir string, log *slog.Logger) ([]image.Image, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Sticker directory not found, cards will have no stickers", "dir", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sticker dir: %w", err)
	}

	var stickers []image.Image
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read sticker %s: %w", path, err)
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			log.Warn("Skipping undecodable sticker", "path", path, "error", err)
			continue
		}
		stickers = append(stickers, img)
	}
	return stickers, nil
}

// Compose draws the card for holiday on top of base and returns it PNG encoded.
func (c *Compositor) Compose(base []byte, holiday string) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(base))
	if err != nil {
		return nil, fmt.Errorf("failed to decode base image: %w", err)
	}

	b := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Src)

	if sticker := c.pickSticker(); sticker != nil {
		c.pasteSticker(canvas, sticker)
	}

	if err := c.drawCaption(canvas, greeting.Phrase(holiday)); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode card: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Compositor) pickSticker() image.Image {
	if len(c.stickers) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stickers[c.rnd.IntN(len(c.stickers))]
}

// randBetween returns a value in [lo, hi], or hi when the range is empty.
func (c *Compositor) randBetween(lo, hi int) int {
	if hi <= lo {
		return hi
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return lo + c.rnd.IntN(hi-lo+1)
}

// pasteSticker scales sticker to a random size within its own dimensions and
// blends it at a random position that keeps it fully inside canvas.
func (c *Compositor) pasteSticker(canvas *image.RGBA, sticker image.Image) {
	bw, bh := canvas.Bounds().Dx(), canvas.Bounds().Dy()
	sb := sticker.Bounds()

	w := min(c.randBetween(minStickerSide, sb.Dx()), bw)
	h := min(c.randBetween(minStickerSide, sb.Dy()), bh)
	if w <= 0 || h <= 0 {
		return
	}

	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), sticker, sb, xdraw.Src, nil)

	x := c.randBetween(0, bw-w)
	y := c.randBetween(0, bh-h)
	draw.Draw(canvas, image.Rect(x, y, x+w, y+h), scaled, image.Point{}, draw.Over)
}

func (c *Compositor) drawCaption(canvas *image.RGBA, text string) error {
	bw, bh := canvas.Bounds().Dx(), canvas.Bounds().Dy()
	size := max(bw/fontDivisor, 1)

	face, err := opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("failed to create font face: %w", err)
	}
	defer face.Close()

	measure := func(s string) int { return font.MeasureString(face, s).Ceil() }
	lines := Wrap(text, measure, bw)
	if len(lines) == 0 {
		return nil
	}

	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	ascent := metrics.Ascent.Ceil()
	top := bh - len(lines)*lineHeight

	shadow := &font.Drawer{Dst: canvas, Src: image.NewUniform(color.Black), Face: face}
	fill := &font.Drawer{Dst: canvas, Src: image.NewUniform(color.White), Face: face}

	for i, line := range lines {
		x := (bw - measure(line)) / 2
		baseline := top + i*lineHeight + ascent

		shadow.Dot = fixed.P(x-1, baseline-1)
		shadow.DrawString(line)
		fill.Dot = fixed.P(x, baseline)
		fill.DrawString(line)
	}
	return nil
}

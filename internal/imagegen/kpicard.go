package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/lox/hoteldash/internal/analytics"
)

var (
	fontValue   font.Face
	fontLabel   font.Face
	fontCaption font.Face
	fontOnce    sync.Once
	fontErr     error
)

func loadFonts() {
	fontOnce.Do(func() {
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse goregular: %w", err)
			return
		}
		medium, err := opentype.Parse(gomedium.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse gomedium: %w", err)
			return
		}

		if fontValue, err = newFace(medium, 64); err != nil {
			fontErr = fmt.Errorf("create value face: %w", err)
			return
		}
		if fontLabel, err = newFace(regular, 26); err != nil {
			fontErr = fmt.Errorf("create label face: %w", err)
			return
		}
		if fontCaption, err = newFace(regular, 22); err != nil {
			fontErr = fmt.Errorf("create caption face: %w", err)
			return
		}
	})
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// CardData is what the KPI card renders.
type CardData struct {
	KPIs    analytics.KPIs
	Records int
	Hotels  int
	Caption string // e.g. the active filter, shown along the bottom
}

// Card dimensions match the Open Graph image size.
const (
	CardWidth  = 1200
	CardHeight = 630
)

var (
	colBackground = color.RGBA{24, 28, 44, 255}
	colTile       = color.RGBA{38, 44, 66, 255}
	colValue      = color.RGBA{255, 255, 255, 255}
	colLabel      = color.RGBA{170, 178, 200, 255}
)

// GenerateKPICard renders the four KPIs as a PNG.
func GenerateKPICard(data CardData) ([]byte, error) {
	loadFonts()
	if fontErr != nil {
		return nil, fmt.Errorf("load fonts: %w", fontErr)
	}

	img := image.NewRGBA(image.Rect(0, 0, CardWidth, CardHeight))
	fill(img, img.Bounds(), colBackground)

	drawText(img, "Hotel pricing", 60, 80, colValue, fontLabel)
	drawText(img, fmt.Sprintf("%d records, %d hotels", data.Records, data.Hotels), 60, 115, colLabel, fontCaption)

	tiles := []struct {
		label, value string
	}{
		{"Avg review score", fmt.Sprintf("%.2f", data.KPIs.AvgReviewScore)},
		{"ADR", fmt.Sprintf("%.2f", data.KPIs.ADR)},
		{"Occupancy rate", fmt.Sprintf("%.2f%%", data.KPIs.OccupancyRate)},
		{"RevPAR", fmt.Sprintf("%.2f", data.KPIs.RevPAR)},
	}

	const (
		margin = 60
		gap    = 30
		top    = 170
		height = 330
	)
	width := (CardWidth - 2*margin - gap) / 2
	tileHeight := (height - gap) / 2
	for i, tile := range tiles {
		x := margin + (i%2)*(width+gap)
		y := top + (i/2)*(tileHeight+gap)
		fill(img, image.Rect(x, y, x+width, y+tileHeight), colTile)
		drawText(img, tile.label, x+30, y+45, colLabel, fontLabel)
		drawText(img, tile.value, x+30, y+tileHeight-30, colValue, fontValue)
	}

	if data.Caption != "" {
		drawText(img, data.Caption, margin, CardHeight-40, colLabel, fontCaption)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode KPI card: %w", err)
	}
	return buf.Bytes(), nil
}

func fill(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// CardCache caches rendered cards per filter key for a short period.
type CardCache struct {
	mu       sync.RWMutex
	entries  map[string]cardEntry
	cacheTTL time.Duration
	now      func() time.Time
}

type cardEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewCardCache creates a card cache with the specified TTL.
func NewCardCache(ttl time.Duration) *CardCache {
	return &CardCache{
		entries:  make(map[string]cardEntry),
		cacheTTL: ttl,
		now:      time.Now,
	}
}

// Get returns the cached card for key if still valid.
func (c *CardCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.data, true
}

// Set stores a card and drops any expired entries.
func (c *CardCache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cardEntry{data: data, expiresAt: now.Add(c.cacheTTL)}
}

package imagegen

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/lox/hoteldash/internal/analytics"
)

func TestGenerateKPICard(t *testing.T) {
	data, err := GenerateKPICard(CardData{
		KPIs:    analytics.KPIs{AvgReviewScore: 7, ADR: 150, OccupancyRate: 100, RevPAR: 150},
		Records: 3,
		Hotels:  2,
		Caption: "nights=1 persons=2",
	})
	if err != nil {
		t.Fatalf("GenerateKPICard: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != CardWidth || b.Dy() != CardHeight {
		t.Errorf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), CardWidth, CardHeight)
	}
}

func TestCardCache(t *testing.T) {
	c := NewCardCache(time.Minute)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	if _, ok := c.Get("a"); ok {
		t.Fatal("empty cache should miss")
	}

	c.Set("a", []byte("png"))
	if got, ok := c.Get("a"); !ok || string(got) != "png" {
		t.Errorf("Get(a) = %q, %v", got, ok)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("Get(b) should miss")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("expired entry should miss")
	}

	c.Set("b", []byte("other"))
	if len(c.entries) != 1 {
		t.Errorf("entries = %d, want 1 after expiry sweep", len(c.entries))
	}
}

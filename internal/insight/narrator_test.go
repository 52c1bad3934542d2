package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lox/hoteldash/internal/analytics"
	"github.com/lox/hoteldash/internal/models"
)

func testDashboard() analytics.Dashboard {
	from := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC)
	lo, hi := 100.0, 200.0
	nights := 1
	return analytics.Dashboard{
		Selection: analytics.Selection{Nights: &nights},
		KPIs: analytics.KPIs{AvgReviewScore: 7, ADR: 150, OccupancyRate: 100, RevPAR: 150},
		Summary: analytics.Summary{
			Records: 3, UniqueHotels: 2,
			DateFrom: &from, DateTo: &to,
			PriceMin: &lo, PriceMax: &hi,
		},
		Dates: []analytics.DatePoint{
			{Date: from, ScrapeTime: models.ScrapeMorning, Rows: 2, ADR: 150, OccupancyRate: 100, RevPAR: 150},
		},
		Weekdays: []analytics.WeekdayPoint{
			{Weekday: "Saturday", ScrapeTime: models.ScrapeMorning, Rows: 2, MeanPrice: 150},
		},
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(testDashboard())

	for _, want := range []string{
		"Filter: nights=1",
		"Records: 3, unique hotels: 2",
		"Price dates: 2024-06-15 to 2024-06-16",
		"Price range: 100.00 to 200.00",
		"- ADR: 150.00",
		"- Occupancy rate: 100.00%",
		"- 2024-06-15 Morning 150.00 100.00% 150.00",
		"- Saturday Morning 150.00",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestNewNarrator_RequiresKey(t *testing.T) {
	if _, err := NewNarrator("", ""); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestDescribe_CachesPerFilter(t *testing.T) {
	calls := 0
	n := newNarrator("test", func(ctx context.Context, system, user string) (string, error) {
		calls++
		return "  Prices are steady.  ", nil
	})

	d := testDashboard()
	for i := 0; i < 2; i++ {
		got, err := n.Describe(context.Background(), d)
		if err != nil {
			t.Fatalf("Describe: %v", err)
		}
		if got != "Prices are steady." {
			t.Errorf("Describe = %q", got)
		}
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	d.TableKey = "reloaded"
	if _, err := n.Describe(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("calls after table change = %d, want 2", calls)
	}
}

func TestDescribe_EmptySkipsModel(t *testing.T) {
	n := newNarrator("test", func(ctx context.Context, system, user string) (string, error) {
		t.Fatal("model should not be called")
		return "", nil
	})
	got, err := n.Describe(context.Background(), analytics.Dashboard{Empty: true})
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("expected a message for empty selection")
	}
}

func TestDescribe_ErrorNotCached(t *testing.T) {
	fail := true
	n := newNarrator("test", func(ctx context.Context, system, user string) (string, error) {
		if fail {
			return "", errors.New("boom")
		}
		return "ok", nil
	})

	if _, err := n.Describe(context.Background(), testDashboard()); err == nil {
		t.Fatal("expected error")
	}
	fail = false
	got, err := n.Describe(context.Background(), testDashboard())
	if err != nil || got != "ok" {
		t.Errorf("Describe = %q, %v", got, err)
	}
}

func TestDescribe_CacheExpiresAndIsBounded(t *testing.T) {
	calls := 0
	n := newNarrator("test", func(ctx context.Context, system, user string) (string, error) {
		calls++
		return "ok", nil
	})
	now := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }

	d := testDashboard()
	for i := 0; i < 2; i++ {
		if _, err := n.Describe(context.Background(), d); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}

	now = now.Add(narrativeTTL + time.Second)
	if _, err := n.Describe(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("calls after expiry = %d, want 2", calls)
	}

	for i := 0; i < maxCachedNarratives+10; i++ {
		now = now.Add(time.Second)
		d.TableKey = fmt.Sprintf("table-%d", i)
		if _, err := n.Describe(context.Background(), d); err != nil {
			t.Fatal(err)
		}
	}
	if len(n.entries) > maxCachedNarratives {
		t.Errorf("cached %d narratives, want at most %d", len(n.entries), maxCachedNarratives)
	}
	if _, ok := n.lookup(d.TableKey + "|" + d.Selection.String()); !ok {
		t.Error("most recent narrative should still be cached")
	}
}

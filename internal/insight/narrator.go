// Package insight generates short written commentary for a dashboard using
// an OpenAI chat model.
package insight

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lox/hoteldash/internal/analytics"
	"github.com/lox/hoteldash/internal/httputil"
	"github.com/lox/hoteldash/internal/metrics"
)

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("insight: OpenAI API key not configured")

const DefaultModel = openai.ChatModelGPT4oMini

const (
	narrativeTTL        = 6 * time.Hour
	maxCachedNarratives = 256
	completionTimeout   = 60 * time.Second
)

const systemPrompt = `You are a revenue analyst for hotels. You are given KPIs and price series ` +
	`for a filtered set of hotel price observations. Write three to five sentences ` +
	`summarising the pricing picture. Refer only to the numbers provided. Do not use markdown.`

type completeFunc func(ctx context.Context, system, user string) (string, error)

// Narrator writes commentary for dashboards, caching one result per base
// table and filter for narrativeTTL.
type Narrator struct {
	complete completeFunc
	model    string

	mu       sync.Mutex
	entries  map[string]narrativeEntry
	cacheTTL time.Duration
	now      func() time.Time
}

type narrativeEntry struct {
	text      string
	expiresAt time.Time
}

func newNarrator(model string, complete completeFunc) *Narrator {
	return &Narrator{
		complete: complete,
		model:    model,
		entries:  make(map[string]narrativeEntry),
		cacheTTL: narrativeTTL,
		now:      time.Now,
	}
}

// NewNarrator creates a narrator backed by the OpenAI API.
func NewNarrator(apiKey, model string) (*Narrator, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = string(DefaultModel)
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httputil.NewClient(completionTimeout)),
		option.WithMaxRetries(2),
	)

	return newNarrator(model, func(ctx context.Context, system, user string) (string, error) {
		resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(user),
			},
			Temperature: openai.Float(0.2),
		})
		if err != nil {
			return "", fmt.Errorf("chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("chat completion returned no choices")
		}
		return resp.Choices[0].Message.Content, nil
	}), nil
}

func (n *Narrator) Model() string {
	return n.model
}

// Describe returns commentary for d. Empty selections are not sent to the model.
func (n *Narrator) Describe(ctx context.Context, d analytics.Dashboard) (string, error) {
	if d.Empty {
		return "No records match the current filters.", nil
	}

	key := d.TableKey + "|" + d.Selection.String()
	if text, ok := n.lookup(key); ok {
		metrics.NarrativeCalls.WithLabelValues("cached").Inc()
		return text, nil
	}

	text, err := n.complete(ctx, systemPrompt, BuildPrompt(d))
	if err != nil {
		metrics.NarrativeCalls.WithLabelValues("error").Inc()
		log.Printf("insight: describe %s: %v", key, err)
		return "", err
	}
	text = strings.TrimSpace(text)
	metrics.NarrativeCalls.WithLabelValues("ok").Inc()

	n.store(key, text)
	return text, nil
}

func (n *Narrator) lookup(key string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	e, ok := n.entries[key]
	if !ok || n.now().After(e.expiresAt) {
		return "", false
	}
	return e.text, true
}

// store drops expired entries, then the entry closest to expiry while the
// cache is full.
func (n *Narrator) store(key, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	for k, e := range n.entries {
		if now.After(e.expiresAt) {
			delete(n.entries, k)
		}
	}
	for len(n.entries) >= maxCachedNarratives {
		var oldest string
		for k, e := range n.entries {
			if oldest == "" || e.expiresAt.Before(n.entries[oldest].expiresAt) {
				oldest = k
			}
		}
		delete(n.entries, oldest)
	}
	n.entries[key] = narrativeEntry{text: text, expiresAt: now.Add(n.cacheTTL)}
}

// BuildPrompt renders the dashboard as plain text for the model.
func BuildPrompt(d analytics.Dashboard) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Filter: %s\n", d.Selection)
	fmt.Fprintf(&b, "Records: %d, unique hotels: %d\n", d.Summary.Records, d.Summary.UniqueHotels)
	if d.Summary.DateFrom != nil && d.Summary.DateTo != nil {
		fmt.Fprintf(&b, "Price dates: %s to %s\n",
			d.Summary.DateFrom.Format("2006-01-02"), d.Summary.DateTo.Format("2006-01-02"))
	}
	if d.Summary.PriceMin != nil && d.Summary.PriceMax != nil {
		fmt.Fprintf(&b, "Price range: %.2f to %.2f\n", *d.Summary.PriceMin, *d.Summary.PriceMax)
	}

	fmt.Fprintf(&b, "\nKPIs:\n")
	fmt.Fprintf(&b, "- Average review score: %.2f\n", d.KPIs.AvgReviewScore)
	fmt.Fprintf(&b, "- ADR: %.2f\n", d.KPIs.ADR)
	fmt.Fprintf(&b, "- Occupancy rate: %.2f%%\n", d.KPIs.OccupancyRate)
	fmt.Fprintf(&b, "- RevPAR: %.2f\n", d.KPIs.RevPAR)

	if len(d.Dates) > 0 {
		fmt.Fprintf(&b, "\nBy date (date, scrape, ADR, occupancy, RevPAR):\n")
		for _, p := range d.Dates {
			fmt.Fprintf(&b, "- %s %s %.2f %.2f%% %.2f\n",
				p.Date.Format("2006-01-02"), p.ScrapeTime, p.ADR, p.OccupancyRate, p.RevPAR)
		}
	}
	if len(d.Weekdays) > 0 {
		fmt.Fprintf(&b, "\nMean price by weekday:\n")
		for _, p := range d.Weekdays {
			fmt.Fprintf(&b, "- %s %s %.2f\n", p.Weekday, p.ScrapeTime, p.MeanPrice)
		}
	}
	return b.String()
}

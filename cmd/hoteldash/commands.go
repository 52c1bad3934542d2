package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/lox/hoteldash/internal/analytics"
	"github.com/lox/hoteldash/internal/api"
	"github.com/lox/hoteldash/internal/ingest"
	"github.com/lox/hoteldash/internal/insight"
	"github.com/lox/hoteldash/internal/models"
)

// FilterFlags select a subset of the base table.
type FilterFlags struct {
	Hotel    []string `help:"Hotel name to include. Repeatable." sep:"none"`
	Nights   string   `help:"Number of nights."`
	Persons  string   `help:"Number of persons."`
	PriceMin string   `help:"Lower price bound, inclusive."`
	PriceMax string   `help:"Upper price bound, inclusive."`
	DateFrom string   `help:"First price date (YYYY-MM-DD)."`
	DateTo   string   `help:"Last price date (YYYY-MM-DD)."`
}

func (f FilterFlags) params() analytics.Params {
	return analytics.Params{
		Hotels:   f.Hotel,
		Nights:   f.Nights,
		Persons:  f.Persons,
		PriceMin: f.PriceMin,
		PriceMax: f.PriceMax,
		DateFrom: f.DateFrom,
		DateTo:   f.DateTo,
	}
}

func loadTable(ctx context.Context, g *Globals) (*models.BaseTable, error) {
	st, closeDB, err := g.openStore()
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer closeDB()

	paths, err := ingest.Discover(g.DataDir)
	if err != nil {
		return nil, err
	}
	return newCache(st).Get(ctx, paths)
}

// FTPFlags locate the FTP server the scraper publishes to.
type FTPFlags struct {
	FTPAddr string `name:"ftp-addr" help:"FTP server address (host:port)." env:"HOTELDASH_FTP_ADDR"`
	FTPUser string `name:"ftp-user" help:"FTP user." env:"HOTELDASH_FTP_USER"`
	FTPPass string `name:"ftp-pass" help:"FTP password." env:"HOTELDASH_FTP_PASS"`
	FTPDir  string `name:"ftp-dir" help:"Remote directory." default:"/" env:"HOTELDASH_FTP_DIR"`
}

func (f FTPFlags) source() *ingest.FTPSource {
	if f.FTPAddr == "" {
		return nil
	}
	return ingest.NewFTPSource(f.FTPAddr, f.FTPUser, f.FTPPass, f.FTPDir)
}

type ServeCmd struct {
	FTPFlags `embed:""`

	Port          string        `help:"HTTP server port." default:"8080" env:"HOTELDASH_PORT"`
	OpenAIKey     string        `name:"openai-key" help:"OpenAI API key; enables narratives." env:"OPENAI_API_KEY"`
	OpenAIModel   string        `name:"openai-model" help:"OpenAI chat model." env:"HOTELDASH_OPENAI_MODEL"`
	Refresh       time.Duration `help:"How often to re-scan the data directory." default:"1m" env:"HOTELDASH_REFRESH"`
	FetchInterval time.Duration `help:"How often to mirror from FTP when --ftp-addr is set." default:"15m" env:"HOTELDASH_FETCH_INTERVAL"`
	NoPoll        bool          `help:"Disable background refresh; files are still re-checked on each request."`
}

func (c *ServeCmd) Run(g *Globals) error {
	st, closeDB, err := g.openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeDB()

	cache := newCache(st)
	server := api.NewServer(cache, g.DataDir, c.Port)
	if st != nil {
		server.SetLoadHistory(st)
	}
	if n, err := insight.NewNarrator(c.OpenAIKey, c.OpenAIModel); err != nil {
		log.Printf("narratives disabled: %v", err)
	} else {
		log.Printf("narratives enabled (model %s)", n.Model())
		server.SetNarrator(n)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !c.NoPoll {
		scheduler := ingest.NewScheduler(cache, g.DataDir)
		scheduler.SetReloadInterval(c.Refresh)
		if src := c.source(); src != nil {
			scheduler.SetFTPSource(src, c.FetchInterval)
		}
		go scheduler.Run(ctx)
	} else {
		log.Println("polling disabled (--no-poll)")
	}

	log.Printf("starting server on :%s", c.Port)
	return server.Run(ctx)
}

type SummaryCmd struct {
	FilterFlags `embed:""`

	JSON bool `help:"Print the full dashboard as JSON."`
}

func (c *SummaryCmd) Run(g *Globals) error {
	table, err := loadTable(context.Background(), g)
	if err != nil {
		return err
	}
	opts := analytics.BuildOptions(table.Records)
	sel, err := c.params().Resolve(opts)
	if err != nil {
		return err
	}
	d, _ := analytics.Build(table, sel)

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Filter\t%s\n", sel)
	if len(d.Summary.SelectedHotels) == 0 {
		fmt.Fprintf(tw, "Hotels\tall\n")
	} else {
		fmt.Fprintf(tw, "Hotels\t%s\n", strings.Join(d.Summary.SelectedHotels, ", "))
	}
	fmt.Fprintf(tw, "Records\t%d\n", d.Summary.Records)
	fmt.Fprintf(tw, "Unique hotels\t%d\n", d.Summary.UniqueHotels)
	if d.Summary.DateFrom != nil {
		fmt.Fprintf(tw, "Dates\t%s to %s\n",
			d.Summary.DateFrom.Format(analytics.DateLayout), d.Summary.DateTo.Format(analytics.DateLayout))
	}
	if d.Empty {
		fmt.Fprintf(tw, "\nNo data available for the selected filters.\n")
		return tw.Flush()
	}
	fmt.Fprintf(tw, "\nAverage review score\t%.2f\n", d.KPIs.AvgReviewScore)
	fmt.Fprintf(tw, "ADR\t%.2f\n", d.KPIs.ADR)
	fmt.Fprintf(tw, "Occupancy rate\t%.2f%%\n", d.KPIs.OccupancyRate)
	fmt.Fprintf(tw, "RevPAR\t%.2f\n", d.KPIs.RevPAR)
	return tw.Flush()
}

type ExportCmd struct {
	FilterFlags `embed:""`

	Format string `help:"Output format." enum:"csv,xlsx" default:"csv"`
	Out    string `help:"Output directory." default:"." type:"path"`
	Prefix string `help:"File name prefix; scrape time suffixes are appended." default:"hotel_prices"`
}

func (c *ExportCmd) Run(g *Globals) error {
	table, err := loadTable(context.Background(), g)
	if err != nil {
		return err
	}

	// Without filter flags, export everything rather than the default selection.
	var sel analytics.Selection
	if p := c.params(); !p.IsZero() {
		if sel, err = p.Resolve(analytics.BuildOptions(table.Records)); err != nil {
			return err
		}
	}
	subset := &models.BaseTable{Records: analytics.Apply(table.Records, sel)}
	if subset.Empty() {
		return errors.New("no records match the selection")
	}

	paths, err := ingest.ExportTable(subset, c.Out, c.Prefix, c.Format)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

type FetchCmd struct {
	FTPFlags `embed:""`
}

func (c *FetchCmd) Run(g *Globals) error {
	src := c.source()
	if src == nil {
		return errors.New("--ftp-addr is required")
	}
	if err := os.MkdirAll(g.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	paths, err := src.Mirror(ctx, g.DataDir)
	if err != nil {
		return err
	}
	log.Printf("fetched %d files into %s", len(paths), g.DataDir)
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

package main

import (
	"database/sql"
	"io"
	"log"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"
	_ "modernc.org/sqlite"

	"github.com/lox/hoteldash/internal/ingest"
	"github.com/lox/hoteldash/internal/store"
)

// Globals are flags shared by every command.
type Globals struct {
	DataDir string `help:"Directory of snapshot files (.csv, .xlsx)." default:"csv_files" env:"HOTELDASH_DATA_DIR" type:"path"`
	DB      string `help:"Path to SQLite database for snapshots and load history. Empty disables persistence." env:"HOTELDASH_DB"`
	LogFile string `help:"Also write logs to this file, rotated." env:"HOTELDASH_LOG_FILE"`
}

type CLI struct {
	Globals `embed:""`

	Serve   ServeCmd   `cmd:"" default:"withargs" help:"Run the dashboard web server."`
	Summary SummaryCmd `cmd:"" help:"Print KPIs for a selection."`
	Export  ExportCmd  `cmd:"" help:"Write the selected rows as snapshot files."`
	Fetch   FetchCmd   `cmd:"" help:"Mirror snapshot files from an FTP server into the data directory."`
}

func main() {
	// Missing .env is fine.
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("hoteldash"),
		kong.Description("Hotel pricing snapshot dashboard."),
		kong.UsageOnError(),
	)

	if cli.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cli.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}))
	}

	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}

// openStore opens and migrates the database, or returns nil when
// persistence is disabled.
func (g *Globals) openStore() (*store.Store, func(), error) {
	if g.DB == "" {
		return nil, func() {}, nil
	}

	db, err := sql.Open("sqlite", g.DB)
	if err != nil {
		return nil, nil, err
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Println("database migrated")
	return st, func() { db.Close() }, nil
}

// newCache builds the base table cache, backed by st when it is non-nil.
func newCache(st *store.Store) *ingest.Cache {
	if st == nil {
		return ingest.NewCache(ingest.NewLoader(), nil)
	}
	return ingest.NewCache(ingest.NewLoader(), st)
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benprew/showtrack"
	"github.com/benprew/showtrack/http"
	"github.com/benprew/showtrack/internal/logger"
	"github.com/benprew/showtrack/sqlite"
	"github.com/jmoiron/sqlx"
)

// Build version, injected during build.
var (
	version string
	commit  string
)

// main is the entry point to our application binary. However, it has some poor
// usability so we mainly use it to delegate out to our Main type.
func main() {
	// Propagate build information to root package to share globally.
	showtrack.Version = strings.TrimPrefix(version, "v")
	showtrack.Commit = commit

	// Setup signal handlers.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := NewMain()
	m.SetDefaultLogger = true

	if err := m.Run(ctx, os.Args[1:]); err == flag.ErrHelp {
		os.Exit(1)
	} else if err != nil {
		if showtrack.ErrorCode(err) == showtrack.EINTERNAL {
			fmt.Fprintln(os.Stderr, err)
			showtrack.ReportError(ctx, err)
		} else {
			fmt.Fprintln(os.Stderr, showtrack.ErrorMessage(err))
		}
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Configuration path and parsed config data.
	Config     showtrack.Config
	ConfigPath string

	// SQLite database used by SQLite service implementations.
	DB *sqlx.DB

	Logger *slog.Logger

	// Install Logger as the slog default once it is built.
	SetDefaultLogger bool

	SeasonService showtrack.SeasonService

	// HTTP server for handling HTTP communication.
	// SQLite services are attached to it before running.
	HTTPServer *http.Server

	Stdout io.Writer
	Stderr io.Writer
}

// NewMain returns a new instance of Main.
func NewMain() *Main {
	return &Main{
		HTTPServer: http.NewServer(),
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
}

func cmdUsage(w io.Writer) {
	fmt.Fprint(w, `
showtrack - read the local season store

commands:
	serv           - serve the JSON API
	season         - print the first stored season
	minimal -id N  - print combined number and series id of season N
	check          - verify the seasons schema and run an integrity check

global options:
	-[h]elp        - print help and exit
	-config <path> - path to config file (default: none, SHOWTRACK_* env only)
`)
}

// Run executes the subcommand named by args[0].
func (m *Main) Run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		cmdUsage(m.Stderr)
		return flag.ErrHelp
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(m.Stderr)
	fs.StringVar(&m.ConfigPath, "config", "", "config path")

	var addr string
	var id int
	var action func(context.Context) error
	switch args[0] {
	case "serv":
		fs.StringVar(&addr, "addr", "", "listen address (overrides config)")
		action = func(ctx context.Context) error {
			if addr != "" {
				m.Config.HTTP.Addr = addr
			}
			return m.serv(ctx)
		}
	case "season":
		action = m.season
	case "minimal":
		fs.IntVar(&id, "id", 0, "season id")
		action = func(ctx context.Context) error { return m.minimal(ctx, id) }
	case "check":
		action = m.check
	default:
		cmdUsage(m.Stderr)
		return flag.ErrHelp
	}

	defer m.Close()
	if err := m.open(ctx, fs, args[1:]); err != nil {
		return err
	}
	return action(ctx)
}

// open parses flags, loads the config and connects the services.
func (m *Main) open(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}

	config, err := showtrack.LoadConfig(m.ConfigPath)
	if err != nil {
		return err
	}
	m.Config = config

	m.Logger = logger.New(logger.Config{
		Writer: m.Stderr,
		Format: config.Log.Format,
		Level:  logger.ParseLevel(config.Log.Level),
	})
	if m.SetDefaultLogger {
		slog.SetDefault(m.Logger)
	}

	db, err := sqlite.Open(config.DB.Path, sqlite.Options{
		Driver:      config.DB.Driver,
		ReadOnly:    config.DB.ReadOnly,
		BusyTimeout: time.Duration(config.DB.BusyTimeout),
	})
	if err != nil {
		return err
	}
	m.DB = db

	var q sqlx.QueryerContext = db
	if config.DB.LogQueries {
		q = &sqlite.QueryLogger{Queryer: db, Logger: m.Logger}
	}
	m.SeasonService = sqlite.NewSeasonService(q)

	m.Logger.Debug("database opened", "path", config.DB.Path, "driver", config.DB.Driver, "read_only", config.DB.ReadOnly)
	return sqlite.CheckSchema(ctx, q)
}

func (m *Main) serv(ctx context.Context) error {
	m.HTTPServer.Addr = m.Config.HTTP.Addr
	m.HTTPServer.Logger = m.Logger
	m.HTTPServer.SeasonService = m.SeasonService

	if err := m.HTTPServer.Open(); err != nil {
		return err
	}
	m.Logger.Info("showtrack started", "version", showtrack.Version, "commit", showtrack.Commit, "url", m.HTTPServer.URL())

	// Wait for CTRL-C.
	<-ctx.Done()
	m.Logger.Info("shutting down")
	return m.HTTPServer.Close()
}

func (m *Main) season(ctx context.Context) error {
	season, ok, err := m.SeasonService.GetSeason(ctx)
	if err != nil {
		return err
	} else if !ok {
		return showtrack.Errorf(showtrack.ENOTFOUND, "no seasons stored")
	}
	return m.printJSON(season)
}

func (m *Main) minimal(ctx context.Context, id int) error {
	season, err := showtrack.FindSeasonMinimalByID(ctx, m.SeasonService, id)
	if err != nil {
		return err
	}
	return m.printJSON(season)
}

func (m *Main) check(ctx context.Context) error {
	findings, err := sqlite.IntegrityCheck(ctx, m.DB)
	if err != nil {
		return err
	}
	for _, f := range findings {
		fmt.Fprintln(m.Stdout, f)
	}
	if len(findings) != 1 || findings[0] != "ok" {
		return showtrack.Errorf(showtrack.EINTERNAL, "integrity check failed: %d problems", len(findings))
	}
	return nil
}

func (m *Main) printJSON(v interface{}) error {
	enc := json.NewEncoder(m.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Close closes the database.
func (m *Main) Close() error {
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

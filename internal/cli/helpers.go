package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/runnerr0/worktimer/internal/broadcast"
	"github.com/runnerr0/worktimer/internal/client"
	"github.com/runnerr0/worktimer/internal/clock"
	"github.com/runnerr0/worktimer/internal/config"
	"github.com/runnerr0/worktimer/internal/kvstore"
	"github.com/runnerr0/worktimer/internal/logging"
	"github.com/runnerr0/worktimer/internal/reminder"
	"github.com/runnerr0/worktimer/internal/timer"
)

// clientSlack is added to the summary timeout so the daemon reports the
// upstream timeout before the client gives up.
const clientSlack = 15 * time.Second

// daemonAPI is the subset of the daemon client the commands use.
type daemonAPI interface {
	Status(ctx context.Context) (client.DaemonStatus, error)
	StartTimer(ctx context.Context) error
	StopTimer(ctx context.Context) error
	ResetTimer(ctx context.Context) error
	TimerState(ctx context.Context) (timer.State, error)
	UpdateReminderSettings(ctx context.Context, s reminder.Settings) error
	GenerateSummary(ctx context.Context, notes, duration, apiKey, task, tabs string) (string, error)
	Events(ctx context.Context) (<-chan broadcast.Event, error)
}

// auditReader reads the daemon's audit log.
type auditReader interface {
	Recent(ctx context.Context, limit int) ([]kvstore.AuditEntry, error)
}

// runtime is everything a command needs. Tests build one directly.
type runtime struct {
	cfg    *config.Config
	dbPath string
	store  kvstore.Store
	audit  auditReader
	daemon daemonAPI
	clock  clock.Clock
	log    *slog.Logger
	in     io.Reader
	loc    *time.Location
}

// location is where timestamps are displayed.
func (rt *runtime) location() *time.Location {
	if rt.loc != nil {
		return rt.loc
	}
	return time.Local
}

// loadConfig loads --config, or the default path, creating defaults on
// first run.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	var flagPath string
	if globals != nil {
		flagPath = globals.Config
	}
	path, err := config.ResolvePath(flagPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrCreateAt(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openRuntime returns injected when set. Otherwise it loads the config and
// opens the shared store; the returned func releases it.
func openRuntime(globals *GlobalFlags, injected *runtime) (*runtime, func(), error) {
	if injected != nil {
		return injected, func() {}, nil
	}

	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, nil, err
	}

	dbPath, err := cfg.DBPath()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve db path: %w", err)
	}
	db, err := kvstore.Open(dbPath, cfg.Storage.SQLiteJournalMode)
	if err != nil {
		return nil, nil, err
	}
	store, err := kvstore.NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create store: %w", err)
	}

	level := "warn"
	if globals != nil && globals.Verbose {
		level = "debug"
	}
	logger, err := logging.New(os.Stderr, level)
	if err != nil {
		store.Close()
		db.Close()
		return nil, nil, err
	}

	rt := &runtime{
		cfg:    cfg,
		dbPath: dbPath,
		store:  store,
		audit:  kvstore.NewAuditLog(db),
		daemon: client.New(cfg.DaemonURL(), cfg.Daemon.AuthToken, cfg.Summary.Timeout+clientSlack),
		clock:  clock.Real{},
		log:    logger,
		in:     os.Stdin,
	}
	release := func() {
		store.Close()
		db.Close()
	}
	return rt, release, nil
}

func wantJSON(globals *GlobalFlags) bool {
	return globals != nil && globals.JSON
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// confirm prints prompt and reports whether the user answered yes.
func confirm(in io.Reader, prompt string) (bool, error) {
	if in == nil {
		in = os.Stdin
	}
	fmt.Printf("%s [y/N]: ", prompt)

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false, fmt.Errorf("aborted: no input received")
	}
	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

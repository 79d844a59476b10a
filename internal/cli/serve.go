package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/runnerr0/worktimer/internal/alarm"
	"github.com/runnerr0/worktimer/internal/broadcast"
	"github.com/runnerr0/worktimer/internal/clock"
	"github.com/runnerr0/worktimer/internal/config"
	"github.com/runnerr0/worktimer/internal/daemon"
	"github.com/runnerr0/worktimer/internal/dispatch"
	"github.com/runnerr0/worktimer/internal/kvstore"
	"github.com/runnerr0/worktimer/internal/logging"
	"github.com/runnerr0/worktimer/internal/notify"
	"github.com/runnerr0/worktimer/internal/reminder"
	"github.com/runnerr0/worktimer/internal/settings"
	"github.com/runnerr0/worktimer/internal/summary"
	"github.com/runnerr0/worktimer/internal/timer"
)

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Daemon.Port = c.Port
	}

	verbose := c.globals != nil && c.globals.Verbose
	level := c.LogLevel
	if level == "" && verbose {
		level = "debug"
	}
	logger, closer, err := logging.ForDaemon(cfg, level, c.Foreground || verbose)
	if err != nil {
		return err
	}
	defer closer.Close()

	if level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.DaemonAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.DaemonAddr(), err)
	}
	fmt.Printf("worktimer daemon listening on %s\n", cfg.DaemonURL())

	return runDaemon(ctx, cfg, ln, c.version, clock.Real{}, logger)
}

// runDaemon wires every component around one store and serves on ln until
// ctx is done.
func runDaemon(ctx context.Context, cfg *config.Config, ln net.Listener, version string, clk clock.Clock, logger *slog.Logger) error {
	dbPath, err := cfg.DBPath()
	if err != nil {
		ln.Close()
		return fmt.Errorf("resolve db path: %w", err)
	}
	db, err := kvstore.Open(dbPath, cfg.Storage.SQLiteJournalMode)
	if err != nil {
		ln.Close()
		return err
	}
	defer db.Close()

	store, err := kvstore.NewSQLiteStore(db)
	if err != nil {
		ln.Close()
		return fmt.Errorf("create store: %w", err)
	}
	defer store.Close()

	seeded, err := settings.Seed(ctx, store)
	if err != nil {
		logger.Warn("seeding defaults failed", "error", err)
	} else if len(seeded) > 0 {
		logger.Info("seeded defaults", "keys", seeded)
	}

	events := broadcast.New()
	defer events.Close()

	owner := timer.NewOwner(store, clk, events, timer.Options{
		TickInterval: cfg.Timer.TickInterval,
		Logger:       logger,
	})

	alarms := alarm.NewManager(db, clk, alarm.Options{Logger: logger})
	notifier := notify.Multi{
		notify.LogNotifier{Logger: logger},
		notify.BroadcastNotifier{Pub: events},
	}
	scheduler := reminder.NewScheduler(alarms, clk, notifier, logger)
	alarms.OnAlarm(scheduler.HandleAlarm)

	var audit dispatch.Auditor
	if cfg.Logging.AuditLog {
		audit = kvstore.NewAuditLog(db)
	}
	summarizer := summary.New(summary.Options{
		Endpoint: cfg.Summary.Endpoint,
		Model:    cfg.Summary.Model,
		Timeout:  cfg.Summary.Timeout,
	})
	dispatcher := dispatch.New(owner, scheduler, summarizer, dispatch.Options{Audit: audit, Logger: logger})

	srv := daemon.NewServer(dispatcher, events, daemon.Options{
		Version:         version,
		AuthToken:       cfg.Daemon.AuthToken,
		MaxRequestBytes: cfg.Daemon.MaxRequestSize,
		Logger:          logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ownerErr := make(chan error, 1)
	ownerDone := make(chan struct{})
	go func() {
		ownerErr <- owner.Run(ctx)
		close(ownerDone)
	}()
	defer func() {
		cancel()
		<-ownerDone
	}()
	select {
	case <-owner.Ready():
	case <-ownerDone:
		ln.Close()
		return fmt.Errorf("timer owner: %w", <-ownerErr)
	}

	if err := alarms.Start(ctx); err != nil {
		ln.Close()
		return fmt.Errorf("start alarms: %w", err)
	}
	defer alarms.Stop()

	// reminders are re-registered on every start from the stored settings
	if s, err := settings.Load(ctx, store); err != nil {
		logger.Warn("load settings failed; reminders not scheduled", "error", err)
	} else if err := scheduler.Apply(ctx, s.Reminder()); err != nil {
		logger.Warn("scheduling reminders failed", "error", err)
	}

	logger.Info("worktimer daemon started", "version", version, "db", dbPath, "summary_model", summarizer.Model())
	return srv.Serve(ctx, ln)
}

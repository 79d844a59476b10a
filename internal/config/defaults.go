package config

import "time"

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Timer: TimerConfig{
			TickInterval: time.Second,
		},
		Observer: ObserverConfig{
			PollInterval: time.Second,
		},
		Storage: StorageConfig{
			Path:              "~/.config/worktimer",
			SQLiteFile:        "worktimer.db",
			SQLiteJournalMode: "wal",
		},
		Daemon: DaemonConfig{
			Host:           "127.0.0.1",
			Port:           7455,
			AuthToken:      "",
			MaxRequestSize: 1048576,
		},
		Logging: LoggingConfig{
			Level:    "info",
			File:     "worktimer.log",
			AuditLog: true,
		},
		Summary: SummaryConfig{
			Endpoint: "https://generativelanguage.googleapis.com/v1",
			Model:    "gemini-1.5-flash",
			Timeout:  60 * time.Second,
		},
	}
}

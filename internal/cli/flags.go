package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// ServeCommand: run the daemon that owns the timer.
type ServeCommand struct {
	Foreground bool   `long:"foreground" description:"Also log to stderr"`
	Port       int    `long:"port" description:"Override daemon port"`
	LogLevel   string `long:"log-level" description:"Override log level"`

	globals *GlobalFlags
	version string
}

// StartCommand: start the timer.
type StartCommand struct {
	Task string `long:"task" description:"Set the current task before starting"`

	globals *GlobalFlags
	version string
	rt      *runtime
}

// StopCommand: stop the timer.
type StopCommand struct {
	globals *GlobalFlags
	version string
	rt      *runtime
}

// ResetCommand: reset the timer to zero.
type ResetCommand struct {
	Yes bool `long:"yes" short:"y" description:"Skip the confirmation prompt"`

	globals *GlobalFlags
	version string
	rt      *runtime
}

// StatusCommand: show timer state, task and daemon health.
type StatusCommand struct {
	globals *GlobalFlags
	version string
	rt      *runtime
}

// WatchCommand: follow the running timer like the overlay does.
type WatchCommand struct {
	NoPush bool `long:"no-push" description:"Poll the store only, without the daemon event stream"`

	globals *GlobalFlags
	version string
	rt      *runtime
}

// TaskCommand: show or set the current task.
type TaskCommand struct {
	globals *GlobalFlags
	version string
	rt      *runtime
}

// NotesCommand: show or set the session notes.
type NotesCommand struct {
	File   string `long:"file" description:"Read notes from file (- for stdin)"`
	Append bool   `long:"append" description:"Append to the existing notes"`
	Clear  bool   `long:"clear" description:"Clear the notes"`

	globals *GlobalFlags
	version string
	rt      *runtime
}

// SummarizeCommand: generate a session summary and record it in history.
type SummarizeCommand struct {
	Tabs []string `long:"tab" description:"Title of an open tab or document to mention (repeatable)"`

	globals *GlobalFlags
	version string
	rt      *runtime
}

// HistoryCommand: list past summaries, newest first.
type HistoryCommand struct {
	Limit int `long:"limit" description:"Maximum entries to show" default:"10"`

	globals *GlobalFlags
	version string
	rt      *runtime
}

// AuditCommand: list the commands the daemon has handled.
type AuditCommand struct {
	Limit int `long:"limit" description:"Maximum entries to show" default:"20"`

	globals *GlobalFlags
	version string
	rt      *runtime
}

// SettingsCommand: show settings.
type SettingsCommand struct {
	ShowKey bool `long:"show-key" description:"Print the API key instead of masking it"`

	globals *GlobalFlags
	version string
	rt      *runtime
}

// SettingsSetCommand: change settings and reschedule reminders.
type SettingsSetCommand struct {
	DateFormat        string `long:"date-format" description:"MM/DD/YYYY | DD/MM/YYYY | YYYY-MM-DD"`
	TimeFormat        string `long:"time-format" description:"12h | 24h"`
	WeekStart         string `long:"week-start" description:"Weekly reminder day, 0 (Sunday) to 6 (Saturday)"`
	ReminderTime      string `long:"reminder-time" description:"Weekly reminder time, HH:MM"`
	DailyReminder     bool   `long:"daily-reminder" description:"Enable the daily reminder"`
	NoDailyReminder   bool   `long:"no-daily-reminder" description:"Disable the daily reminder"`
	DailyReminderTime string `long:"daily-reminder-time" description:"Daily reminder time, HH:MM"`
	APIKey            string `long:"api-key" description:"Gemini API key"`

	globals *GlobalFlags
	version string
	rt      *runtime
}

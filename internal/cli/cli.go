package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Serve       *ServeCommand
	Start       *StartCommand
	Stop        *StopCommand
	Reset       *ResetCommand
	Status      *StatusCommand
	Watch       *WatchCommand
	Task        *TaskCommand
	Notes       *NotesCommand
	Summarize   *SummarizeCommand
	History     *HistoryCommand
	Audit       *AuditCommand
	Settings    *SettingsCommand
	SettingsSet *SettingsSetCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "worktimer"
	parser.LongDescription = "Work-session timer with reminders and AI summaries, run as a local daemon."

	cmds := &commands{
		Serve:       &ServeCommand{globals: &globals, version: version},
		Start:       &StartCommand{globals: &globals, version: version},
		Stop:        &StopCommand{globals: &globals, version: version},
		Reset:       &ResetCommand{globals: &globals, version: version},
		Status:      &StatusCommand{globals: &globals, version: version},
		Watch:       &WatchCommand{globals: &globals, version: version},
		Task:        &TaskCommand{globals: &globals, version: version},
		Notes:       &NotesCommand{globals: &globals, version: version},
		Summarize:   &SummarizeCommand{globals: &globals, version: version},
		History:     &HistoryCommand{globals: &globals, version: version},
		Audit:       &AuditCommand{globals: &globals, version: version},
		Settings:    &SettingsCommand{globals: &globals, version: version},
		SettingsSet: &SettingsSetCommand{globals: &globals, version: version},
	}

	parser.AddCommand("serve", "Run the worktimer daemon", "Run the daemon that owns the timer, fires reminders and serves the local HTTP API.", cmds.Serve)
	parser.AddCommand("start", "Start the timer", "Start the timer. A task must be set first, with --task or the task command.", cmds.Start)
	parser.AddCommand("stop", "Stop the timer", "Stop the timer, keeping the elapsed time.", cmds.Stop)
	parser.AddCommand("reset", "Reset the timer", "Stop the timer and clear the elapsed time.", cmds.Reset)
	parser.AddCommand("status", "Show timer state", "Show timer state, current task and daemon health.", cmds.Status)
	parser.AddCommand("watch", "Follow the timer", "Print the elapsed time every second while the timer runs, plus reminders.", cmds.Watch)
	parser.AddCommand("task", "Show or set the current task", "Show the current task, or set it to the given text.", cmds.Task)
	parser.AddCommand("notes", "Show or set session notes", "Show the session notes, or set them from arguments or --file.", cmds.Notes)
	parser.AddCommand("summarize", "Generate a session summary", "Generate a summary of the session notes with Gemini and record it in history.", cmds.Summarize)
	parser.AddCommand("history", "List past summaries", "List the most recent session summaries, newest first.", cmds.History)
	parser.AddCommand("audit", "List handled commands", "List the commands the daemon recorded in its audit log (logging.audit_log), newest first.", cmds.Audit)

	settingsCmd, err := parser.AddCommand("settings", "Show settings", "Show the synced settings.", cmds.Settings)
	if err == nil {
		settingsCmd.SubcommandsOptional = true
		settingsCmd.AddCommand("set", "Change settings", "Change settings and reschedule reminders.", cmds.SettingsSet)
	}

	return parser, &globals, cmds
}

// Run is the main entry point for the worktimer CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("worktimer %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}

package cli

import (
	"bytes"
	"os"
	"strings"
	"testing"

	goflags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionFlag(t *testing.T) {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := RunWithArgs("0.1.0-test", []string{"--version"})

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	output := buf.String()

	assert.NoError(t, err)
	assert.Contains(t, output, "worktimer 0.1.0-test")
}

func TestVersionOutputFormat(t *testing.T) {
	output := captureOutput(t, func() {
		_ = RunWithArgs("1.2.3", []string{"--version"})
	})
	assert.Equal(t, "worktimer 1.2.3", strings.TrimSpace(output))
}

func TestSubcommandsRecognized(t *testing.T) {
	for _, name := range []string{"serve", "start", "stop", "reset", "status", "watch", "task", "notes", "summarize", "history", "audit", "settings"} {
		t.Run(name, func(t *testing.T) {
			parser, _, _ := buildParser("test")
			cmd := parser.Find(name)
			require.NotNil(t, cmd, "command %q not registered", name)
		})
	}
}

func TestSettingsSetIsNested(t *testing.T) {
	parser, _, _ := buildParser("test")
	settingsCmd := parser.Find("settings")
	require.NotNil(t, settingsCmd)
	assert.True(t, settingsCmd.SubcommandsOptional)
	assert.NotNil(t, settingsCmd.Find("set"))
}

func TestUnknownSubcommandErrors(t *testing.T) {
	parser, _, _ := buildParser("test")
	parser.Options &^= goflags.PrintErrors
	_, err := parser.ParseArgs([]string{"launch-rocket"})
	assert.Error(t, err)
}

// parseOnly parses args without running the matched command.
func parseOnly(t *testing.T, args ...string) (*GlobalFlags, *commands, goflags.Commander) {
	t.Helper()
	parser, globals, cmds := buildParser("test")
	parser.Options &^= goflags.PrintErrors
	var matched goflags.Commander
	parser.CommandHandler = func(cmd goflags.Commander, _ []string) error {
		matched = cmd
		return nil
	}
	_, err := parser.ParseArgs(args)
	require.NoError(t, err)
	return globals, cmds, matched
}

func TestFlagParsing_Globals(t *testing.T) {
	globals, cmds, matched := parseOnly(t, "--json", "--verbose", "--config", "/tmp/wt.yaml", "history", "--limit", "3")

	assert.True(t, globals.JSON)
	assert.True(t, globals.Verbose)
	assert.Equal(t, "/tmp/wt.yaml", globals.Config)
	assert.Same(t, cmds.History, matched)
	assert.Equal(t, 3, cmds.History.Limit)
}

func TestFlagParsing_HistoryHasNoClear(t *testing.T) {
	parser, _, _ := buildParser("test")
	parser.Options &^= goflags.PrintErrors
	parser.CommandHandler = func(goflags.Commander, []string) error { return nil }
	_, err := parser.ParseArgs([]string{"history", "--clear"})
	assert.Error(t, err)
}

func TestFlagParsing_HistoryDefaultLimit(t *testing.T) {
	_, cmds, _ := parseOnly(t, "history")
	assert.Equal(t, 10, cmds.History.Limit)
}

func TestFlagParsing_StartAndReset(t *testing.T) {
	_, cmds, matched := parseOnly(t, "start", "--task", "JIRA-42")
	assert.Same(t, cmds.Start, matched)
	assert.Equal(t, "JIRA-42", cmds.Start.Task)

	_, cmds, _ = parseOnly(t, "reset", "-y")
	assert.True(t, cmds.Reset.Yes)
}

func TestFlagParsing_SummarizeTabs(t *testing.T) {
	_, cmds, _ := parseOnly(t, "summarize", "--tab", "Jira board", "--tab", "Design doc")
	assert.Equal(t, []string{"Jira board", "Design doc"}, cmds.Summarize.Tabs)
}

func TestFlagParsing_SettingsShowAndSet(t *testing.T) {
	_, cmds, matched := parseOnly(t, "settings", "--show-key")
	assert.Same(t, cmds.Settings, matched)
	assert.True(t, cmds.Settings.ShowKey)

	_, cmds, matched = parseOnly(t, "settings", "set", "--week-start", "5", "--reminder-time", "16:30", "--daily-reminder", "--api-key", "k")
	assert.Same(t, cmds.SettingsSet, matched)
	assert.Equal(t, "5", cmds.SettingsSet.WeekStart)
	assert.Equal(t, "16:30", cmds.SettingsSet.ReminderTime)
	assert.True(t, cmds.SettingsSet.DailyReminder)
	assert.Equal(t, "k", cmds.SettingsSet.APIKey)
}

func TestFlagParsing_Serve(t *testing.T) {
	_, cmds, _ := parseOnly(t, "serve", "--port", "9000", "--log-level", "debug", "--foreground")
	assert.Equal(t, 9000, cmds.Serve.Port)
	assert.Equal(t, "debug", cmds.Serve.LogLevel)
	assert.True(t, cmds.Serve.Foreground)
}

func TestFlagParsing_AuditDefaultLimit(t *testing.T) {
	_, cmds, matched := parseOnly(t, "audit")
	assert.Same(t, cmds.Audit, matched)
	assert.Equal(t, 20, cmds.Audit.Limit)
}

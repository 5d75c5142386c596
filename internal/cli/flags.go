package cli

import (
	"io"

	"github.com/runnerr0/dwell/internal/config"
	"github.com/runnerr0/dwell/internal/storage"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// deps are the injectable dependencies shared by commands. Nil fields are
// resolved from the config file.
type deps struct {
	cfg   *config.Config
	store storage.Store
}

// ServeCommand runs the daemon in the foreground.
type ServeCommand struct {
	Host     string `long:"host" description:"Override listen host"`
	Port     int    `long:"port" description:"Override listen port"`
	LogLevel string `long:"log-level" description:"Override log level (debug|info|warn|error)"`
	Backend  string `long:"backend" description:"Override storage backend (sqlite|memory|redis|postgres)"`

	globals *GlobalFlags
	version string
}

// TodayCommand prints the per-domain totals for one day.
type TodayCommand struct {
	Date      string `long:"date" description:"Day to show as YYYY-MM-DD (default: today)"`
	Intervals bool   `long:"intervals" description:"Also list the committed intervals, if the backend keeps them"`

	globals *GlobalFlags
	version string
	deps    deps
}

// StatusCommand shows store statistics and daemon reachability.
type StatusCommand struct {
	globals *GlobalFlags
	version string
	deps    deps
}

// PruneCommand deletes days older than the retention period.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g., 90d, 12w)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`

	globals *GlobalFlags
	version string
	deps    deps
}

// PurgeCommand deletes ALL data with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	stdin   io.Reader // injectable for testing; nil means os.Stdin
	deps    deps
}

// ReplayCommand drives a fresh tracker from a JSON-lines event recording.
type ReplayCommand struct {
	File   string `long:"file" description:"JSON-lines file of recorded events (required)"`
	DryRun bool   `long:"dry-run" description:"Replay into memory and print the result without writing"`

	globals *GlobalFlags
	version string
	deps    deps
}

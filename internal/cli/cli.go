package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Serve  *ServeCommand
	Today  *TodayCommand
	Status *StatusCommand
	Prune  *PruneCommand
	Purge  *PurgeCommand
	Replay *ReplayCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "dwell"
	parser.LongDescription = "Local per-domain browsing time tracker."

	cmds := &commands{
		Serve:  &ServeCommand{globals: &globals, version: version},
		Today:  &TodayCommand{globals: &globals, version: version},
		Status: &StatusCommand{globals: &globals, version: version},
		Prune:  &PruneCommand{globals: &globals, version: version},
		Purge:  &PurgeCommand{globals: &globals, version: version},
		Replay: &ReplayCommand{globals: &globals, version: version},
	}

	parser.AddCommand("serve", "Run the tracking daemon", "Run the local HTTP daemon that receives browser events and tracks time per domain.", cmds.Serve)
	parser.AddCommand("today", "Show time per domain for a day", "Show committed time per domain for today, or for --date.", cmds.Today)
	parser.AddCommand("status", "Show store and daemon status", "Show storage statistics, today's total, and whether the daemon is reachable.", cmds.Status)
	parser.AddCommand("prune", "Delete old days", "Delete days older than the retention period.", cmds.Prune)
	parser.AddCommand("purge", "Delete ALL dwell data", "Delete ALL dwell data. Destructive operation with safety prompt.", cmds.Purge)
	parser.AddCommand("replay", "Replay recorded events", "Feed a JSON-lines file of recorded browser events through a fresh tracker.", cmds.Replay)

	return parser, &globals, cmds
}

// Run is the main entry point for the dwell CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// go-flags requires a subcommand, but --version is valid without one.
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("dwell %s\n", version)
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

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/runnerr0/dwell/internal/storage"
)

// Execute implements the go-flags Commander interface for PurgeCommand.
func (c *PurgeCommand) Execute(args []string) error {
	if !c.All {
		return fmt.Errorf("purge requires --all flag for safety")
	}

	if !c.Force {
		in := c.stdin
		if in == nil {
			in = os.Stdin
		}
		if err := confirmPurge(in); err != nil {
			return err
		}
	}

	ctx := context.Background()
	_, store, closeStore, err := c.deps.resolve(ctx, c.globals)
	if err != nil {
		return err
	}
	defer closeStore()

	return c.executeWithStore(ctx, store)
}

func confirmPurge(in io.Reader) error {
	fmt.Println("⚠ WARNING: This will permanently delete ALL dwell data.")
	fmt.Println("  - All daily totals")
	fmt.Println("  - The interval log")
	fmt.Println()
	fmt.Println("This action cannot be undone.")
	fmt.Println()
	fmt.Print(`Type "PURGE" to confirm: `)

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return fmt.Errorf("aborted: no input received")
	}
	if strings.TrimSpace(scanner.Text()) != "PURGE" {
		return fmt.Errorf("aborted: confirmation text did not match")
	}
	return nil
}

func (c *PurgeCommand) executeWithStore(ctx context.Context, store storage.Store) error {
	if err := store.Purge(ctx); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}

	if jsonOutput(c.globals) {
		return printJSON(map[string]any{
			"purged":  true,
			"message": "all data deleted",
		})
	}

	fmt.Println("Purged all data. dwell is empty.")
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/cooperativa/registro/internal/changelog"
	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/ui"
)

var changesCmd = &cobra.Command{
	Use:     "changes",
	GroupID: "sync",
	Short:   "Show the change log",
	Long: `Show recent entries of the change log, oldest first.

--since accepts a date (2024-03-01), a timestamp (RFC 3339) or a relative
expression such as "yesterday" or "2 days ago". With --follow the command
keeps printing new entries as any process writes them, until interrupted.

Examples:
  registro changes --limit 20
  registro changes --since "3 hours ago"
  registro changes --follow --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		sinceExpr, _ := cmd.Flags().GetString("since")
		follow, _ := cmd.Flags().GetBool("follow")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if !cmd.Flags().Changed("limit") {
			limit = cfg.Changes.Limit
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		latest, err := a.changes.LatestID(cmd.Context())
		if err != nil {
			return err
		}

		var entries []schema.ChangeLogEntry
		if sinceExpr != "" {
			since, err := parseSince(sinceExpr, time.Now())
			if err != nil {
				return err
			}
			entries = a.changes.ListSince(cmd.Context(), since.UTC(), limit)
		} else {
			entries = a.changes.ListRecent(cmd.Context(), limit)
		}
		slices.Reverse(entries)

		out := cmd.OutOrStdout()
		if err := printEntries(out, entries, jsonOutput); err != nil {
			return err
		}
		if !follow {
			if len(entries) == 0 && !jsonOutput {
				fmt.Fprintln(out, ui.RenderMuted("No changes recorded"))
			}
			return nil
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		watch := changelog.WatchConfig{
			PollInterval: cfg.Changes.PollInterval,
			AfterID:      latest,
			FromStart:    latest == 0,
		}
		err = a.changes.Watch(ctx, watch, func(batch []schema.ChangeLogEntry) error {
			return printEntries(out, batch, jsonOutput)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	changesCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show (default: changes.limit)")
	changesCmd.Flags().String("since", "", "Only show entries created at or after this time")
	changesCmd.Flags().BoolP("follow", "f", false, "Keep printing new entries")
	changesCmd.Flags().Bool("json", false, "Print one JSON object per entry")

	rootCmd.AddCommand(changesCmd)
}

// parseSince reads an absolute or a relative point in time.
func parseSince(expr string, now time.Time) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateTime, time.DateOnly} {
		if t, err := time.ParseInLocation(layout, expr, now.Location()); err == nil {
			return t, nil
		}
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(expr, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse --since %q: %w", expr, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("cannot understand --since %q (try 2024-03-01 or \"2 days ago\")", expr)
	}
	return r.Time, nil
}

func printEntries(w io.Writer, entries []schema.ChangeLogEntry, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return fmt.Errorf("failed to encode change: %w", err)
			}
		}
		return nil
	}

	for _, e := range entries {
		record := "-"
		if e.RegistroID != 0 {
			record = "#" + strconv.FormatInt(e.RegistroID, 10)
		}
		fmt.Fprintf(w, "%s  %s  %-28s %s\n",
			ui.RenderMuted(e.CreatedAt.Local().Format(time.DateTime)),
			renderAction(e.Accion),
			e.Tabla,
			record,
		)
	}
	return nil
}

func renderAction(a schema.Action) string {
	label := fmt.Sprintf("%-6s", a)
	switch a {
	case schema.ActionInsert:
		return ui.RenderPass(label)
	case schema.ActionDelete:
		return ui.RenderFail(label)
	default:
		return ui.RenderAccent(label)
	}
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cooperativa/registro/internal/config"
	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/ui"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "setup",
	Short:   "Create the database tables",
	Long: `Open the configured database, create any missing table and check that
it answers. Running it again is harmless.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.db.Ping(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Database ready at %s (%d tables)\n",
			ui.RenderPass("✓"), a.db.Path(), len(schema.Tables())+1)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Inspect or create the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with the default settings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "registro.toml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", ui.RenderPass("✓"), path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings as TOML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg.File != "" {
			fmt.Fprintf(out, "# loaded from %s\n", cfg.File)
		} else {
			fmt.Fprintln(out, "# no config file found; defaults and environment only")
		}
		return cfg.WriteTOML(out)
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "setup",
	Short:   "Show row counts, database size and the last change",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		counts := make(map[schema.Table]int, len(schema.Tables()))
		for _, t := range schema.Tables() {
			n, err := a.db.Count(ctx, t)
			if err != nil {
				return err
			}
			counts[t] = n
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\n%s Registro Status\n\n", ui.RenderAccent("📊"))
		fmt.Fprintf(out, "Database: %s (%s)\n", a.db.Path(), cfg.Database.Driver)
		if cfg.Database.Driver == config.DriverSQLite {
			if info, err := os.Stat(a.db.Path()); err == nil {
				fmt.Fprintf(out, "Size:     %s\n", ui.Bytes(info.Size()))
				fmt.Fprintf(out, "Modified: %s\n", ui.Ago(info.ModTime()))
			}
		}

		if recent := a.changes.ListRecent(ctx, 1); len(recent) > 0 {
			last := recent[0]
			fmt.Fprintf(out, "Last change: %s %s %s\n", last.Accion, last.Tabla, ui.Ago(last.CreatedAt))
		} else {
			fmt.Fprintf(out, "Last change: %s\n", ui.Ago(time.Time{}))
		}

		fmt.Fprintln(out)
		fmt.Fprint(out, countsTable(func(t schema.Table) int { return counts[t] }))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(statusCmd)
}

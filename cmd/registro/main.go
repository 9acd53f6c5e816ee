// Command registro manages the cooperative's records: snapshot export and
// import, the change log, the realtime notifier and the import inbox.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cooperativa/registro/internal/changelog"
	"github.com/cooperativa/registro/internal/config"
	"github.com/cooperativa/registro/internal/repository"
	"github.com/cooperativa/registro/internal/snapshot"
	"github.com/cooperativa/registro/internal/store"
)

var (
	configPath string
	dbPath     string

	// cfg is loaded before every command runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "registro",
	Short: "Records backend for the cooperative",
	Long: `registro keeps the cooperative's records (youths, students, families,
donations, clothing and activities with their attendance) in a SQLite or
libSQL database.

Settings come from registro.toml (or registro.yaml) in the working
directory or $XDG_CONFIG_HOME/registro, overridden by REGISTRO_*
environment variables and by --config / --db.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			loaded.Database.Driver = config.DriverSQLite
			loaded.Database.Path = dbPath
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: registro.toml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides database.path)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Data:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)
}

func main() {
	err := rootCmd.Execute()
	_ = config.CloseLogs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is the wired set of components a command works with.
type app struct {
	db      *store.DB
	changes *changelog.Log
	engine  *snapshot.Engine
	repos   *repository.Repositories
}

// openApp opens the configured database, creates missing tables and wires
// the change log, repositories and snapshot engine over it.
func openApp(ctx context.Context) (*app, error) {
	var (
		db  *store.DB
		err error
	)
	switch cfg.Database.Driver {
	case config.DriverLibSQL:
		db, err = store.OpenRemote(cfg.Database.URL, cfg.Database.AuthToken)
	default:
		db, err = store.Open(cfg.Database.Path)
	}
	if err != nil {
		return nil, err
	}
	if err := db.InitSchemaContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	changes := changelog.New(db, cfg.Log.NewLogger("changelog"))
	return &app{
		db:      db,
		changes: changes,
		engine:  snapshot.New(db, changes, cfg.Log.NewLogger("snapshot")),
		repos:   repository.New(db, changes),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

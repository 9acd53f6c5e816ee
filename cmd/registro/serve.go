package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cooperativa/registro/internal/inbox"
	"github.com/cooperativa/registro/internal/realtime"
	"github.com/cooperativa/registro/internal/snapshot"
	"github.com/cooperativa/registro/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "sync",
	Short:   "Start the realtime change notification server",
	Long: `Start a WebSocket server that tells clients when a table changes.

Every client first receives a "connected" message, then a
"table_changed" message naming the table after each mutation. Payloads
are not sent: clients refetch the table.

Example usage:
  registro serve                 # Start on server.port (default 8080)
  registro serve --port 9000     # Start on custom port

Connect with a WebSocket client:
  ws://localhost:8080/ws`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		server := realtime.NewServer(a.db, &realtime.Config{
			Port:   port,
			Logger: cfg.Log.NewLogger("realtime"),
		})
		if err := server.Start(); err != nil {
			return fmt.Errorf("failed to start realtime server: %w", err)
		}

		out := cmd.OutOrStdout()
		addr := server.GetAddr()
		fmt.Fprintf(out, "%s Realtime server started on http://%s\n", ui.RenderAccent("📡"), addr)
		fmt.Fprintf(out, "WebSocket endpoint: ws://%s/ws\n", addr)
		fmt.Fprintf(out, "Health check: http://%s/health\n", addr)
		fmt.Fprintln(out, "\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		fmt.Fprintln(out, "\nShutting down realtime server...")
		if err := server.Stop(); err != nil {
			return fmt.Errorf("error during shutdown: %w", err)
		}
		fmt.Fprintln(out, "Realtime server stopped")
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "sync",
	Short:   "Import workbooks and dumps dropped into a directory",
	Long: `Watch the inbox directory and import every .xlsx, .json or .yaml file
written to it. Files already present when the watcher starts are imported
first. Each file is moved to the processed directory afterwards; files that
fail to import get a .failed suffix there.

Example usage:
  registro watch
  registro watch --dir /srv/registro/inbox`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Inbox.Dir
		processed := cfg.Inbox.ProcessedDir
		if cmd.Flags().Changed("dir") {
			dir, _ = cmd.Flags().GetString("dir")
			processed = filepath.Join(dir, "processed")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		watcher, err := inbox.New(a.engine, inbox.Config{
			Dir:          dir,
			ProcessedDir: processed,
			Debounce:     cfg.Inbox.Debounce,
			Logger:       cfg.Log.NewLogger("inbox"),
			OnImport: func(path string, result *snapshot.Result, err error) {
				if err != nil {
					fmt.Fprintf(out, "%s %s: %v\n", ui.RenderFail("✗"), filepath.Base(path), err)
					return
				}
				status := ui.RenderPass("✓")
				if result.Dropped() > 0 {
					status = ui.RenderWarn("⚠")
				}
				fmt.Fprintf(out, "%s %s: %s rows imported, %s dropped\n",
					status, filepath.Base(path), ui.Count(result.Total()), ui.Count(result.Dropped()))
			},
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%s Watching %s\n", ui.RenderAccent("👀"), dir)
		fmt.Fprintln(out, "Press Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		err = watcher.Run(ctx)
		stats := watcher.Stats()
		fmt.Fprintf(out, "\nStopped: %d imported, %d failed\n", stats.Imported, stats.Failed)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on (default: server.port)")
	watchCmd.Flags().String("dir", "", "Directory to watch (default: inbox.dir)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}

package inbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/snapshot"
	"github.com/cooperativa/registro/internal/workbook"
)

// ErrUnsupportedFile is returned for files that are neither a workbook nor
// a snapshot dump.
var ErrUnsupportedFile = errors.New("unsupported file type")

// Importer replaces the dataset with a snapshot. *snapshot.Engine
// satisfies it.
type Importer interface {
	Import(ctx context.Context, snap *schema.Snapshot) (*snapshot.Result, error)
}

// Config holds configuration for the watcher.
type Config struct {
	// Dir is the watched directory.
	Dir string

	// ProcessedDir receives files once handled (default: Dir/processed).
	ProcessedDir string

	// Debounce is how long a file must stay quiet before it is imported
	// (default: 500ms).
	Debounce time.Duration

	// OnImport, if set, is called after every import attempt.
	OnImport func(path string, result *snapshot.Result, err error)

	// Logger for watcher activity (default: stderr logger)
	Logger *log.Logger
}

// Stats counts handled files.
type Stats struct {
	Imported int
	Failed   int
}

// Watcher imports files dropped into a directory. Each file is a full
// replace of the dataset, so the last file dropped wins.
type Watcher struct {
	importer Importer
	config   Config
	logger   *log.Logger

	queue map[string]time.Time // path -> last event

	mu    sync.Mutex
	stats Stats
}

// New creates a Watcher. It does not touch the file system until Run.
func New(importer Importer, config Config) (*Watcher, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("inbox directory is required")
	}
	if config.ProcessedDir == "" {
		config.ProcessedDir = filepath.Join(config.Dir, "processed")
	}
	if config.Debounce <= 0 {
		config.Debounce = 500 * time.Millisecond
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[inbox] ", log.LstdFlags)
	}
	return &Watcher{
		importer: importer,
		config:   config,
		logger:   logger,
		queue:    make(map[string]time.Time),
	}, nil
}

// Run watches the inbox until ctx is cancelled. Files already present when
// it starts are imported too. It returns ctx.Err() on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	for _, dir := range []string{w.config.Dir, w.config.ProcessedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.config.Dir); err != nil {
		return fmt.Errorf("failed to watch inbox directory %s: %w", w.config.Dir, err)
	}

	entries, err := os.ReadDir(w.config.Dir)
	if err != nil {
		return fmt.Errorf("failed to read inbox directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.enqueue(filepath.Join(w.config.Dir, e.Name()))
		}
	}

	w.logger.Printf("Watching %s", w.config.Dir)

	ticker := time.NewTicker(w.config.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.enqueue(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("WARNING: watcher error: %v", err)

		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

// enqueue records an event for a candidate file, restarting its debounce.
func (w *Watcher) enqueue(path string) {
	if !Supported(path) {
		return
	}
	w.queue[path] = time.Now()
}

// processPending imports files that have been quiet for long enough.
func (w *Watcher) processPending(ctx context.Context) {
	now := time.Now()
	for path, queuedAt := range w.queue {
		if now.Sub(queuedAt) < w.config.Debounce {
			continue
		}
		delete(w.queue, path)

		if _, err := os.Stat(path); err != nil {
			continue
		}

		w.logger.Printf("Processing %s", path)
		result, err := w.ImportFile(ctx, path)
		w.mu.Lock()
		if err != nil {
			w.stats.Failed++
		} else {
			w.stats.Imported++
		}
		w.mu.Unlock()

		if err != nil {
			w.logger.Printf("WARNING: failed to import %s: %v", path, err)
		} else {
			w.logger.Printf("Imported %s: %d rows (dropped=%d)", filepath.Base(path), result.Total(), result.Dropped())
		}

		suffix := ""
		if err != nil {
			suffix = ".failed"
		}
		if moveErr := w.move(path, suffix); moveErr != nil {
			w.logger.Printf("WARNING: failed to move %s: %v", path, moveErr)
		}

		if w.config.OnImport != nil {
			w.config.OnImport(path, result, err)
		}
	}
}

// ImportFile loads path and imports it.
func (w *Watcher) ImportFile(ctx context.Context, path string) (*snapshot.Result, error) {
	snap, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return w.importer.Import(ctx, snap)
}

// move renames path into the processed directory, adding a timestamp when
// the name is taken.
func (w *Watcher) move(path, suffix string) error {
	base := filepath.Base(path) + suffix
	dest := filepath.Join(w.config.ProcessedDir, base)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(base)
		dest = filepath.Join(w.config.ProcessedDir,
			strings.TrimSuffix(base, ext)+"."+time.Now().Format("20060102-150405.000")+ext)
	}
	return os.Rename(path, dest)
}

// Stats returns the counts of handled files.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Supported reports whether path names a file the inbox imports. Hidden
// files, temporary files and spreadsheet lock files are skipped.
func Supported(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".xlsx", ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadFile reads a workbook (.xlsx) or a snapshot dump (.json, .yaml).
func LoadFile(path string) (*schema.Snapshot, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		data, err := workbook.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return workbook.Parse(data)
	case ".json", ".yaml", ".yml":
		return snapshot.ReadFile(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Base(path))
	}
}

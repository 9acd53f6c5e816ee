package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cooperativa/registro/internal/schema"
)

// Format is a snapshot dump encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension. Anything that is not
// .yaml or .yml is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// WriteJSON encodes snap as indented JSON.
func WriteJSON(w io.Writer, snap *schema.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// ReadJSON decodes a snapshot written by WriteJSON. Missing tables decode
// as empty.
func ReadJSON(r io.Reader) (*schema.Snapshot, error) {
	var snap schema.Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// WriteYAML encodes snap as YAML.
func WriteYAML(w io.Writer, snap *schema.Snapshot) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// ReadYAML decodes a snapshot written by WriteYAML.
func ReadYAML(r io.Reader) (*schema.Snapshot, error) {
	var snap schema.Snapshot
	if err := yaml.NewDecoder(r).Decode(&snap); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// WriteFile writes snap to path in the format its extension names. The
// file is written to a temporary sibling and renamed into place.
func WriteFile(path string, snap *schema.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if FormatFor(path) == FormatYAML {
		err = WriteYAML(f, snap)
	} else {
		err = WriteJSON(f, snap)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// ReadFile reads a snapshot dump, choosing the decoder by extension.
func ReadFile(path string) (*schema.Snapshot, error) {
	// #nosec G304 - controlled path from CLI
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if FormatFor(path) == FormatYAML {
		return ReadYAML(f)
	}
	return ReadJSON(f)
}

// Backup exports the current dataset to a timestamped JSON file in dir and
// returns its path. It is meant to be taken before an import; restoring it
// is a regular import of the file.
func (e *Engine) Backup(ctx context.Context, dir string) (string, error) {
	snap, err := e.Export(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read data for backup: %w", err)
	}
	path := filepath.Join(dir, "registro.backup."+time.Now().Format("20060102-150405")+".json")
	if err := WriteFile(path, snap); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	e.logger.Printf("Backup written: %s (%d rows)", path, snap.Total())
	return path, nil
}

package inbox

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cooperativa/registro/internal/changelog"
	"github.com/cooperativa/registro/internal/repository"
	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/snapshot"
	"github.com/cooperativa/registro/internal/store/storetest"
	"github.com/cooperativa/registro/internal/workbook"
)

type attempt struct {
	path   string
	result *snapshot.Result
	err    error
}

func startWatcher(t *testing.T) (string, *repository.Repositories, <-chan attempt) {
	t.Helper()
	db := storetest.Open(t)
	discard := log.New(io.Discard, "", 0)
	changes := changelog.New(db, discard)
	engine := snapshot.New(db, changes, discard)

	dir := filepath.Join(t.TempDir(), "inbox")
	attempts := make(chan attempt, 10)
	w, err := New(engine, Config{
		Dir:      dir,
		Debounce: 50 * time.Millisecond,
		Logger:   discard,
		OnImport: func(path string, result *snapshot.Result, err error) {
			attempts <- attempt{path, result, err}
		},
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("Run() returned %v, want context.Canceled", err)
		}
	})

	// Wait for Run to create the directories and start watching.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(filepath.Join(dir, "processed")); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("watcher did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	return dir, repository.New(db, changes), attempts
}

func waitAttempt(t *testing.T, attempts <-chan attempt) attempt {
	t.Helper()
	select {
	case a := <-attempts:
		return a
	case <-time.After(5 * time.Second):
		t.Fatal("no import attempt")
	}
	return attempt{}
}

func TestWatcherImportsDroppedDump(t *testing.T) {
	dir, repos, attempts := startWatcher(t)

	snap := &schema.Snapshot{
		Familias: []schema.Family{{ID: 1, Apellido: "Gómez", Miembros: 4}, {ID: 2, Apellido: "Paz", Miembros: 2}},
	}
	path := filepath.Join(dir, "familias.json")
	if err := snapshot.WriteFile(path, snap); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	a := waitAttempt(t, attempts)
	if a.err != nil {
		t.Fatalf("import failed: %v", a.err)
	}
	if tr, _ := a.result.Table(schema.TableFamilias); tr.Total != 2 {
		t.Errorf("familias imported = %d, want 2", tr.Total)
	}

	got, err := repos.Familias.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("FetchAll() returned %d families, want 2", len(got))
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("imported file still in inbox: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "processed", "familias.json")); err != nil {
		t.Errorf("imported file not in processed dir: %v", err)
	}
}

func TestWatcherImportsWorkbook(t *testing.T) {
	dir, repos, attempts := startWatcher(t)

	data, err := workbook.Build(&schema.Snapshot{
		Ropa: []schema.ClothingItem{{Cantidad: 10, Tipo: schema.ClothingInvierno, Talle: "M"}},
	})
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if err := workbook.WriteFile(filepath.Join(dir, "planilla.xlsx"), data); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	if a := waitAttempt(t, attempts); a.err != nil {
		t.Fatalf("import failed: %v", a.err)
	}
	got, err := repos.Ropa.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() failed: %v", err)
	}
	if len(got) != 1 || got[0].Talle != "M" {
		t.Errorf("FetchAll() = %+v, want one M item", got)
	}
}

func TestWatcherMovesFailedFiles(t *testing.T) {
	dir, _, attempts := startWatcher(t)

	path := filepath.Join(dir, "roto.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	if a := waitAttempt(t, attempts); a.err == nil {
		t.Fatal("import of a broken dump should fail")
	}
	if _, err := os.Stat(filepath.Join(dir, "processed", "roto.json.failed")); err != nil {
		t.Errorf("failed file not moved: %v", err)
	}
}

func TestSupported(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"datos.xlsx", true},
		{"DATOS.XLSX", true},
		{"dump.json", true},
		{"dump.yml", true},
		{"dump.yaml", true},
		{"dump.json.tmp", false},
		{".oculto.json", false},
		{"~$datos.xlsx", false},
		{"notas.txt", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := Supported(tt.path); got != tt.want {
				t.Errorf("Supported(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestLoadFileUnsupported(t *testing.T) {
	if _, err := LoadFile("notas.txt"); !errors.Is(err, ErrUnsupportedFile) {
		t.Errorf("LoadFile() error = %v, want ErrUnsupportedFile", err)
	}
}

func TestNewRequiresDir(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Error("New() should fail without a directory")
	}
}

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/snapshot"
	"github.com/cooperativa/registro/internal/workbook"
)

// workspace runs the test from an empty directory with no config file in
// reach.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	return dir
}

// run executes the CLI in-process and returns its combined output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	configPath, dbPath, cfg = "", "", nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("registro %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

// resetFlags restores every flag to its default; cobra keeps parsed values
// between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func counts(snap *schema.Snapshot) map[schema.Table]int {
	m := make(map[schema.Table]int)
	for _, t := range schema.Tables() {
		m[t] = snap.Count(t)
	}
	return m
}

func TestInit(t *testing.T) {
	workspace(t)

	out := mustRun(t, "init", "--db", "data/registro.db")
	if !strings.Contains(out, "Database ready") {
		t.Errorf("init output = %q", out)
	}
	if _, err := os.Stat(filepath.Join("data", "registro.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestSeedExportImport(t *testing.T) {
	dir := workspace(t)

	mustRun(t, "seed", "--size", "8", "--yes", "--db", "a.db")
	mustRun(t, "export", "-o", "dump.json", "--db", "a.db")

	original, err := snapshot.ReadFile(filepath.Join(dir, "dump.json"))
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if original.Total() == 0 {
		t.Fatal("seeded export is empty")
	}

	out := mustRun(t, "import", "--yes", "--backup", "backups", "--db", "b.db", "dump.json")
	if !strings.Contains(out, "Imported") {
		t.Errorf("import output = %q", out)
	}
	backups, _ := filepath.Glob(filepath.Join(dir, "backups", "registro.backup.*.json"))
	if len(backups) != 1 {
		t.Errorf("backups = %v, want one file", backups)
	}

	yamlOut := mustRun(t, "export", "--format", "yaml", "--db", "b.db")
	imported, err := snapshot.ReadYAML(strings.NewReader(yamlOut))
	if err != nil {
		t.Fatalf("ReadYAML() failed: %v", err)
	}
	if diff := cmp.Diff(counts(original), counts(imported)); diff != "" {
		t.Errorf("row counts mismatch (-want +got):\n%s", diff)
	}
}

func TestExportWorkbookBase64(t *testing.T) {
	workspace(t)
	mustRun(t, "seed", "--size", "4", "--yes", "--db", "registro.db")

	out := mustRun(t, "export", "--base64", "--db", "registro.db")
	data, err := workbook.DecodeBase64(out)
	if err != nil {
		t.Fatalf("DecodeBase64() failed: %v", err)
	}
	snap, err := workbook.Parse(data)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if got := snap.Count(schema.TableAlumnos); got != 4 {
		t.Errorf("alumnos = %d, want 4", got)
	}

	if err := os.WriteFile("registro.xlsx.b64", []byte(out), 0600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	mustRun(t, "import", "--yes", "--base64", "--db", "copy.db", "registro.xlsx.b64")
	if got := mustRun(t, "status", "--db", "copy.db"); !strings.Contains(got, "alumnos") {
		t.Errorf("status output = %q", got)
	}
}

func TestExportErrors(t *testing.T) {
	workspace(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"binary to stdout", []string{"export"}, "-o or --base64"},
		{"base64 json", []string{"export", "--format", "json", "--base64"}, "only applies to xlsx"},
		{"unknown format", []string{"export", "--format", "csv"}, "unknown format"},
		{"import without format", []string{"import", "--yes", "datos.txt"}, "cannot tell the format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append(tt.args, "--db", "registro.db")...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		explicit, path, fallback string
		want                     string
	}{
		{"", "out.xlsx", "", "xlsx"},
		{"", "out.JSON", "", "json"},
		{"", "out.yml", "", "yaml"},
		{"", "", "xlsx", "xlsx"},
		{"YAML", "out.json", "", "yaml"},
		{"yml", "", "", "yaml"},
	}
	for _, tt := range tests {
		got, err := resolveFormat(tt.explicit, tt.path, tt.fallback)
		if err != nil {
			t.Errorf("resolveFormat(%q, %q) failed: %v", tt.explicit, tt.path, err)
			continue
		}
		if got != tt.want {
			t.Errorf("resolveFormat(%q, %q) = %q, want %q", tt.explicit, tt.path, got, tt.want)
		}
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)

	got, err := parseSince("2024-03-01", now)
	if err != nil {
		t.Fatalf("parseSince() failed: %v", err)
	}
	if want := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("parseSince(date) = %v, want %v", got, want)
	}

	got, err = parseSince("2 days ago", now)
	if err != nil {
		t.Fatalf("parseSince() failed: %v", err)
	}
	if !got.Before(now) || got.Before(now.Add(-72*time.Hour)) {
		t.Errorf("parseSince(2 days ago) = %v, want about two days before %v", got, now)
	}

	if _, err := parseSince("el martes que viene no", now); err == nil {
		t.Error("parseSince() should fail on an unknown expression")
	}
}

func TestChangesAndStatus(t *testing.T) {
	workspace(t)
	mustRun(t, "seed", "--size", "3", "--yes", "--db", "registro.db")

	out := mustRun(t, "changes", "--limit", "5", "--db", "registro.db")
	if !strings.Contains(out, "UPDATE") {
		t.Errorf("changes output missing bulk sync entries:\n%s", out)
	}

	out = mustRun(t, "changes", "--since", "2000-01-01", "--json", "--db", "registro.db")
	if lines := strings.Count(out, "\n"); lines != len(schema.Tables()) {
		t.Errorf("changes --json printed %d entries, want %d:\n%s", lines, len(schema.Tables()), out)
	}

	out = mustRun(t, "status", "--db", "registro.db")
	for _, want := range []string{"Registro Status", "Size:", "Last change: UPDATE", "alumno_actividades"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestActivities(t *testing.T) {
	workspace(t)
	mustRun(t, "seed", "--size", "5", "--yes", "--db", "registro.db")

	out := mustRun(t, "activities", "--db", "registro.db")
	if !strings.Contains(out, "Guitarra") || !strings.Contains(out, "horarios") {
		t.Errorf("activities output = %q", out)
	}

	out = mustRun(t, "activities", "1", "--db", "registro.db")
	if !strings.Contains(out, "Guitarra") || !strings.Contains(out, "fecha") {
		t.Errorf("activities 1 output = %q", out)
	}

	if _, err := run(t, "activities", "abc", "--db", "registro.db"); err == nil {
		t.Error("activities abc should fail")
	}
}

func TestConfigCommands(t *testing.T) {
	workspace(t)

	mustRun(t, "config", "init", "conf/registro.toml")
	if _, err := run(t, "config", "init", "conf/registro.toml"); err == nil {
		t.Error("config init should refuse to overwrite")
	}

	out := mustRun(t, "config", "show", "--config", "conf/registro.toml")
	for _, want := range []string{"# loaded from", "[database]", `debounce = "500ms"`} {
		if !strings.Contains(out, want) {
			t.Errorf("config show output missing %q:\n%s", want, out)
		}
	}

	out = mustRun(t, "config", "show")
	if !strings.Contains(out, "# no config file found") {
		t.Errorf("config show output = %q", out)
	}
}

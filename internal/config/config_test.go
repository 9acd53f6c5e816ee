package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// chdir runs the test from an empty directory so no stray registro.toml
// is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir() failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t)
	t.Setenv("REGISTRO_DATABASE_PATH", "/data/otro.db")
	t.Setenv("REGISTRO_SERVER_PORT", "9090")
	t.Setenv("REGISTRO_INBOX_DEBOUNCE", "2s")
	t.Setenv("REGISTRO_LOG_COMPRESS", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Database.Path != "/data/otro.db" {
		t.Errorf("Database.Path = %q, want /data/otro.db", cfg.Database.Path)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Inbox.Debounce != 2*time.Second {
		t.Errorf("Inbox.Debounce = %v, want 2s", cfg.Inbox.Debounce)
	}
	if !cfg.Log.Compress {
		t.Error("Log.Compress = false, want true")
	}
}

func TestLoadTOMLFile(t *testing.T) {
	dir := chdir(t)
	content := `
[database]
path = "cooperativa.db"

[server]
port = 7000

[changes]
limit = 20
poll_interval = "1s"
`
	if err := os.WriteFile(filepath.Join(dir, "registro.toml"), []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	t.Setenv("REGISTRO_SERVER_PORT", "7100")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	want := Default()
	want.Database.Path = "cooperativa.db"
	want.Server.Port = 7100
	want.Changes = ChangesConfig{Limit: 20, PollInterval: time.Second}
	want.File = cfg.File
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if filepath.Base(cfg.File) != "registro.toml" {
		t.Errorf("File = %q, want registro.toml", cfg.File)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "custom.yaml")
	content := "database:\n  driver: libsql\n  url: libsql://registro.example.org\ninbox:\n  dir: /srv/inbox\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Database.Driver != DriverLibSQL || cfg.Database.URL != "libsql://registro.example.org" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Inbox.Dir != "/srv/inbox" {
		t.Errorf("Inbox.Dir = %q, want /srv/inbox", cfg.Inbox.Dir)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := chdir(t)
	if _, err := Load(filepath.Join(dir, "nope.toml")); err == nil {
		t.Error("Load() should fail for a missing explicit file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "postgres" }, "unknown database.driver"},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"libsql without url", func(c *Config) { c.Database.Driver = DriverLibSQL }, "database.url"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() failed: %v", err)
	}
}

func TestWriteDefault(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "conf", "registro.toml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() failed: %v", err)
	}
	if err := WriteDefault(path); err == nil {
		t.Error("WriteDefault() should refuse to overwrite")
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	want := Default()
	want.File = path
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("written defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registro.log")
	cfg := LogConfig{File: path, MaxSizeMB: 1}

	cfg.NewLogger("inbox").Print("hola")
	cfg.NewLogger("realtime").Print("chau")
	if err := CloseLogs(); err != nil {
		t.Fatalf("CloseLogs() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	for _, want := range []string{"[inbox] ", "hola", "[realtime] ", "chau"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file missing %q:\n%s", want, data)
		}
	}
}

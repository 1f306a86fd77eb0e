package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/parlance/pkg/perrors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load(missing) = %v", err)
	}
	if cfg.Scrap.Backend != "file" {
		t.Errorf("default backend = %q, want file", cfg.Scrap.Backend)
	}
	if cfg.UndoCapacity != 0 || cfg.Verbose {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoadParsesFile(t *testing.T) {
	path := writeConfig(t, `
undo_capacity = 50
verbose = true

[scrap]
backend = "redis"
redis_url = "redis://localhost:6379/0"
retention_days = 14
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UndoCapacity != 50 || !cfg.Verbose {
		t.Errorf("top-level fields = %+v", cfg)
	}
	if cfg.Scrap.Backend != "redis" || cfg.Scrap.RedisURL != "redis://localhost:6379/0" || cfg.Scrap.RetentionDays != 14 {
		t.Errorf("scrap section = %+v", cfg.Scrap)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `undo_capacity = 10`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UndoCapacity != 10 {
		t.Errorf("undo_capacity = %d", cfg.UndoCapacity)
	}
	if cfg.Scrap.Backend != "file" {
		t.Errorf("partial config lost the default backend, got %q", cfg.Scrap.Backend)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown backend", content: "[scrap]\nbackend = \"cassandra\"\n"},
		{name: "redis without url", content: "[scrap]\nbackend = \"redis\"\n"},
		{name: "negative undo capacity", content: "undo_capacity = -1\n"},
		{name: "negative retention", content: "[scrap]\nretention_days = -7\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if !perrors.Is(err, perrors.ErrCodeInvalidInput) {
				t.Errorf("error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestLoadMalformedTOML(t *testing.T) {
	_, err := Load(writeConfig(t, "undo_capacity = [broken"))
	if !perrors.Is(err, perrors.ErrCodeDecode) {
		t.Errorf("error = %v, want DECODE_ERROR", err)
	}
}

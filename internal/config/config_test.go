package config

import (
	"os"
	"path/filepath"
	"testing"
)

func mockEnv(env map[string]string) func(string) string {
	return func(key string) string {
		return env[key]
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}
	if cfg.StoreVersion != StoreVersion {
		t.Errorf("DefaultConfig() StoreVersion = %d, want %d", cfg.StoreVersion, StoreVersion)
	}
	if cfg.IDScheme != "qp-hex" {
		t.Errorf("DefaultConfig() IDScheme = %q, want qp-hex", cfg.IDScheme)
	}
	if cfg.DefaultNoteType != "fleeting" {
		t.Errorf("DefaultConfig() DefaultNoteType = %q, want fleeting", cfg.DefaultNoteType)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("DefaultConfig() Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()

	configContent := `
store_version = 1
id_scheme = "qp-hex"
default_note_type = "permanent"

[link_type_costs]
supports = 0.5
`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(configContent), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadWithEnv(tmpDir, mockEnv(nil))
	if err != nil {
		t.Fatalf("LoadWithEnv() error: %v", err)
	}

	if cfg.DefaultNoteType != "permanent" {
		t.Errorf("DefaultNoteType = %q, want permanent", cfg.DefaultNoteType)
	}
	if got := cfg.LinkTypeCost("supports"); got != 0.5 {
		t.Errorf("LinkTypeCost(supports) = %v, want 0.5", got)
	}
	if got := cfg.LinkTypeCost("related"); got != 1.0 {
		t.Errorf("LinkTypeCost(related) = %v, want default 1.0", got)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("[logging]\nlevel = \"warn\"\n"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	env := mockEnv(map[string]string{"QIPU_LOG": "debug"})
	cfg, err := LoadWithEnv(tmpDir, env)
	if err != nil {
		t.Fatalf("LoadWithEnv() error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug (env override)", cfg.Logging.Level)
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()

	cfg, err := LoadWithEnv(tmpDir, mockEnv(nil))
	if err != nil {
		t.Fatalf("LoadWithEnv() error: %v", err)
	}
	if cfg.DefaultNoteType != "fleeting" {
		t.Errorf("LoadWithEnv() without file should use default, got %q", cfg.DefaultNoteType)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not = [valid"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	if _, err := LoadWithEnv(tmpDir, mockEnv(nil)); err == nil {
		t.Error("LoadWithEnv() with invalid TOML should return error")
	}
}

func TestSaveRoundtrip(t *testing.T) {
	t.Parallel()
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.DefaultNoteType = "literature"
	if err := Save(tmpDir, cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := LoadWithEnv(tmpDir, mockEnv(nil))
	if err != nil {
		t.Fatalf("LoadWithEnv() error: %v", err)
	}
	if loaded.DefaultNoteType != "literature" {
		t.Errorf("DefaultNoteType = %q, want literature", loaded.DefaultNoteType)
	}
}

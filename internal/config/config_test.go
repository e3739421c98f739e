package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ListenAddr != "127.0.0.1:8571" {
		t.Errorf("expected default listen_addr %q, got %q", "127.0.0.1:8571", cfg.ListenAddr)
	}
	if cfg.Analysis.Workers != 4 {
		t.Errorf("expected default workers 4, got %d", cfg.Analysis.Workers)
	}
	if cfg.Analysis.ChunkSize != 500 {
		t.Errorf("expected default chunk_size 500, got %d", cfg.Analysis.ChunkSize)
	}
	if cfg.Analysis.CacheTTL.Std() != 24*time.Hour {
		t.Errorf("expected default cache_ttl 24h, got %s", cfg.Analysis.CacheTTL.Std())
	}
	if !cfg.GeoIP.Enabled {
		t.Error("expected geoip enabled by default")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Errorf("expected info/console logging, got %s/%s", cfg.Log.Level, cfg.Log.Format)
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "workdir"

	if got := cfg.DBPath(); got != filepath.Join("workdir", "pawprint.db") {
		t.Errorf("DBPath = %q", got)
	}
	if got := cfg.GeoIPDir(); got != filepath.Join("workdir", "geoip") {
		t.Errorf("GeoIPDir = %q", got)
	}

	cfg.DB.Path = "elsewhere/audit.db"
	cfg.GeoIP.Dir = "elsewhere/geo"
	if got := cfg.DBPath(); got != "elsewhere/audit.db" {
		t.Errorf("explicit DBPath = %q", got)
	}
	if got := cfg.GeoIPDir(); got != "elsewhere/geo" {
		t.Errorf("explicit GeoIPDir = %q", got)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pawprint.yml")

	original := DefaultConfig()
	original.ListenAddr = "0.0.0.0:9000"
	original.DataDir = "custom-data"
	original.Upload.MaxSizeMB = 50
	original.Analysis.Workers = 8
	original.Analysis.CacheTTL = Duration(2 * time.Hour)
	original.GeoIP.Enabled = false
	original.Log.Format = "json"

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.ListenAddr != original.ListenAddr {
		t.Errorf("listen_addr: got %q, want %q", loaded.ListenAddr, original.ListenAddr)
	}
	if loaded.DataDir != original.DataDir {
		t.Errorf("data_dir: got %q, want %q", loaded.DataDir, original.DataDir)
	}
	if loaded.Upload.MaxSizeMB != original.Upload.MaxSizeMB {
		t.Errorf("max_size_mb: got %d, want %d", loaded.Upload.MaxSizeMB, original.Upload.MaxSizeMB)
	}
	if loaded.Analysis.Workers != original.Analysis.Workers {
		t.Errorf("workers: got %d, want %d", loaded.Analysis.Workers, original.Analysis.Workers)
	}
	if loaded.Analysis.CacheTTL.Std() != 2*time.Hour {
		t.Errorf("cache_ttl: got %s, want 2h", loaded.Analysis.CacheTTL.Std())
	}
	if loaded.GeoIP.Enabled {
		t.Error("geoip.enabled: got true, want false")
	}
	if loaded.Log.Format != "json" {
		t.Errorf("log.format: got %q, want %q", loaded.Log.Format, "json")
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:8571" {
		t.Errorf("expected default listen_addr, got %q", cfg.ListenAddr)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pawprint.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	os.Setenv("PAWPRINT_LISTEN_ADDR", "0.0.0.0:7777")
	os.Setenv("PAWPRINT_ANALYSIS__WORKERS", "12")
	os.Setenv("PAWPRINT_ANALYSIS__CACHE_TTL", "45m")
	defer func() {
		os.Unsetenv("PAWPRINT_LISTEN_ADDR")
		os.Unsetenv("PAWPRINT_ANALYSIS__WORKERS")
		os.Unsetenv("PAWPRINT_ANALYSIS__CACHE_TTL")
	}()

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ListenAddr != "0.0.0.0:7777" {
		t.Errorf("env override failed: got %q, want %q", loaded.ListenAddr, "0.0.0.0:7777")
	}
	if loaded.Analysis.Workers != 12 {
		t.Errorf("nested env override failed: got %d, want 12", loaded.Analysis.Workers)
	}
	if loaded.Analysis.CacheTTL.Std() != 45*time.Minute {
		t.Errorf("duration env override failed: got %s, want 45m", loaded.Analysis.CacheTTL.Std())
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateInvalidAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ListenAddr = "no-port-here"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for address without port")
	}
}

func TestValidateInvalidWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analysis.Workers = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero workers")
	}
}

func TestValidateInvalidUploadSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Upload.MaxSizeMB = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero upload size")
	}
}

func TestValidateInvalidLogFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown log format")
	}
}

func TestValidateInvalidLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Level = "shouting"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown log level")
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if d.Std() != 90*time.Second {
		t.Errorf("parsed %s, want 90s", d.Std())
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("expected error for unparsable duration")
	}
}

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/vibetrade/papertrader/config"
)

func TestLoadManagedConfigPrefersFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	onDisk := config.DefaultConfigWithRoot(dir)
	onDisk.PriceProvider = "yahoo"
	onDisk.APIDailyLimit = 100
	data, err := json.MarshalIndent(onDisk, "", "  ")
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := config.DefaultConfigWithRoot(dir)
	mgr, err := loadManagedConfig(cfg, path)
	if err != nil {
		t.Fatalf("loadManagedConfig: %v", err)
	}
	if mgr.Path() != path {
		t.Fatalf("manager path = %q, want %q", mgr.Path(), path)
	}
	if cfg.PriceProvider != "yahoo" {
		t.Fatalf("provider = %q, want file value yahoo", cfg.PriceProvider)
	}
	if cfg.APIDailyLimit != 100 {
		t.Fatalf("daily limit = %d, want file value 100", cfg.APIDailyLimit)
	}
}

func TestLoadManagedConfigSeedsDataDir(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfigWithRoot(dir)
	cfg.APIDailyLimit = 40

	mgr, err := loadManagedConfig(cfg, "")
	if err != nil {
		t.Fatalf("loadManagedConfig: %v", err)
	}

	want := filepath.Join(cfg.DataDir, "config.json")
	if mgr.Path() != want {
		t.Fatalf("manager path = %q, want %q", mgr.Path(), want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("config file not seeded: %v", err)
	}
	if cfg.APIDailyLimit != 40 {
		t.Fatalf("daily limit = %d, want seeded 40", cfg.APIDailyLimit)
	}
}

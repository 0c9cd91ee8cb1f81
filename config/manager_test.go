package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestManagerCreatesAndUpdates(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	path := filepath.Join(dir, "config.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	cfg := mgr.Get()
	cfg.ProjectDir = filepath.Join(dir, "project")
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.DataCacheDir = filepath.Join(dir, "cache")
	cfg.DBPath = filepath.Join(dir, "data", "papertrader.db")

	data, _ := json.Marshal(cfg)
	if err := mgr.UpdateFromJSON(string(data)); err != nil {
		t.Fatalf("UpdateFromJSON: %v", err)
	}

	updated := mgr.Get()
	if updated.ProjectDir != cfg.ProjectDir {
		t.Fatalf("expected project dir %s, got %s", cfg.ProjectDir, updated.ProjectDir)
	}
}

func TestManagerRejectsInvalidUpdate(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	cfg := mgr.Get()
	cfg.PriceProvider = "bloomberg"
	if err := mgr.Update(cfg); err == nil {
		t.Fatal("unknown provider accepted")
	}

	cfg = mgr.Get()
	cfg.APISafetyBuffer = cfg.APIDailyLimit
	if err := mgr.Update(cfg); err == nil {
		t.Fatal("safety buffer at daily limit accepted")
	}
}

func TestManagerWatchReloads(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(WithConfigDir(dir))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan struct{}, 1)
	if err := mgr.Watch(ctx, func(cfg Config) {
		reloaded <- struct{}{}
	}); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	cfg := mgr.Get()
	cfg.ProjectDir = filepath.Join(dir, "changed")
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.DataCacheDir = filepath.Join(dir, "cache")
	cfg.DBPath = filepath.Join(dir, "data", "papertrader.db")

	if err := writeConfig(mgr.Path(), cfg); err != nil {
		t.Fatalf("writeConfig: %v", err)
	}

	select {
	case <-reloaded:
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not fire on config change")
	}
}

func TestManagerExistingFileWinsOverSeed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	onDisk := *DefaultConfigWithRoot(dir)
	onDisk.APIDailyLimit = 100
	if err := writeConfig(path, onDisk); err != nil {
		t.Fatalf("writeConfig: %v", err)
	}

	seed := DefaultConfigWithRoot(dir)
	seed.APIDailyLimit = 30
	mgr, err := NewManager(WithConfigPath(path), WithInitialConfig(seed))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if got := mgr.Get().APIDailyLimit; got != 100 {
		t.Fatalf("daily limit = %d, want file value 100", got)
	}
}

func TestGetMarketZoneFallsBack(t *testing.T) {
	zone := GetMarketZone("Mars/Olympus_Mons")
	if zone.Timezone != DefaultTimezone {
		t.Fatalf("fallback zone = %s", zone.Timezone)
	}
	if len(GetMarketZone("Asia/Tokyo").SeedTickers) == 0 {
		t.Fatal("tokyo zone has no seed tickers")
	}
}

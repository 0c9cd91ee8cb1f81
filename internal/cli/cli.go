// Package cli wires the trading core into a cobra command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/vibetrade/papertrader/config"
	"github.com/vibetrade/papertrader/internal/dataflows"
	"github.com/vibetrade/papertrader/internal/quota"
	"github.com/vibetrade/papertrader/internal/session"
	"github.com/vibetrade/papertrader/internal/storage/sqlite"
	"github.com/vibetrade/papertrader/internal/watchlist"
)

// app bundles the long-lived dependencies every command needs.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	store    *sqlite.Store
	governor *quota.Governor
	runner   *session.Runner
	selector *watchlist.Selector
}

// loadManagedConfig resolves the effective Config through the config
// Manager: an existing config file overrides the env-derived defaults in
// cfg, a missing one is seeded from them. An empty path places the file
// in the data dir.
func loadManagedConfig(cfg *config.Config, path string) (*config.Manager, error) {
	opts := []config.ManagerOption{config.WithInitialConfig(cfg)}
	if path != "" {
		opts = append(opts, config.WithConfigPath(path))
	} else {
		opts = append(opts, config.WithConfigDir(cfg.DataDir))
	}

	mgr, err := config.NewManager(opts...)
	if err != nil {
		return nil, err
	}
	*cfg = mgr.Get()
	return mgr, nil
}

func newApp(cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	provider, err := dataflows.NewProvider(&dataflows.Config{
		Provider:           cfg.PriceProvider,
		AlphaVantageAPIKey: cfg.AlphaVantageAPIKey,
		DataCacheDir:       cfg.DataCacheDir,
		CacheEnabled:       cfg.CacheEnabled,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	governor := quota.NewGovernor(store, quota.Limits{
		Daily:        cfg.APIDailyLimit,
		PerMinute:    cfg.APIMinuteLimit,
		SafetyBuffer: cfg.APISafetyBuffer,
	}, log)

	return &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		governor: governor,
		runner: session.NewRunner(store, provider, governor, log).
			WithAvgTickersPerTrader(cfg.AvgTickersPerTrader),
		selector: watchlist.New(log),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

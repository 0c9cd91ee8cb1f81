package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Manager owns the on-disk JSON config file. It loads or seeds the file
// on startup, serializes updates through an atomic rename, and can watch
// the file so edits made outside the process take effect without a
// restart.
type Manager struct {
	path     string
	debounce time.Duration

	mu       sync.RWMutex
	current  Config
	onChange func(Config)
	watcher  *fsnotify.Watcher

	// selfWrite marks our own writes so the watcher does not reload a
	// change we just applied.
	selfWrite atomic.Bool
}

type managerOptions struct {
	path     string
	seed     *Config
	debounce time.Duration
}

type ManagerOption func(*managerOptions)

// WithConfigPath sets the exact config file location.
func WithConfigPath(path string) ManagerOption {
	return func(o *managerOptions) {
		if path != "" {
			o.path = path
		}
	}
}

// WithConfigDir places config.json inside dir.
func WithConfigDir(dir string) ManagerOption {
	return func(o *managerOptions) {
		if dir != "" {
			o.path = filepath.Join(dir, "config.json")
		}
	}
}

// WithInitialConfig seeds the file from cfg when it does not exist yet.
// An existing file always wins over the seed.
func WithInitialConfig(cfg *Config) ManagerOption {
	return func(o *managerOptions) {
		o.seed = cfg
	}
}

// WithDebounce sets how long the watcher coalesces file events before
// reloading.
func WithDebounce(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

func NewManager(opts ...ManagerOption) (*Manager, error) {
	options := managerOptions{debounce: 300 * time.Millisecond}
	for _, opt := range opts {
		opt(&options)
	}

	path := options.path
	if path == "" {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	cfg, err := loadOrSeed(path, options.seed)
	if err != nil {
		return nil, err
	}

	return &Manager{
		path:     path,
		current:  cfg,
		debounce: options.debounce,
	}, nil
}

// Get returns the current config snapshot.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Path returns the managed file's location.
func (m *Manager) Path() string {
	return m.path
}

// Update validates next, persists it, and applies it in memory. An
// update identical to the current config is a no-op.
func (m *Manager) Update(next Config) error {
	if err := next.Validate(); err != nil {
		return err
	}

	m.mu.RLock()
	unchanged := reflect.DeepEqual(m.current, next)
	m.mu.RUnlock()
	if unchanged {
		return nil
	}

	m.selfWrite.Store(true)
	defer time.AfterFunc(m.debounce, func() { m.selfWrite.Store(false) })

	if err := writeConfig(m.path, next); err != nil {
		m.selfWrite.Store(false)
		return err
	}
	m.apply(next)
	return nil
}

// UpdateFromJSON parses raw as a full Config and applies it via Update.
func (m *Manager) UpdateFromJSON(raw string) error {
	var cfg Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return fmt.Errorf("parse config json: %w", err)
	}
	return m.Update(cfg)
}

// Watch reloads the config whenever the file changes on disk, calling
// onChange with each accepted new config until ctx is done. Calling
// Watch again only replaces the callback.
func (m *Manager) Watch(ctx context.Context, onChange func(Config)) error {
	m.mu.Lock()
	m.onChange = onChange
	if m.watcher != nil {
		m.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.watcher = watcher
	m.mu.Unlock()

	// watch the directory, not the file: editors and our own atomic
	// writes replace the inode
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		m.mu.Lock()
		m.watcher = nil
		m.mu.Unlock()
		return fmt.Errorf("watch config dir: %w", err)
	}

	go m.watchLoop(ctx, watcher)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var pendingMu sync.Mutex
	var pending *time.Timer
	schedule := func() {
		pendingMu.Lock()
		if pending != nil {
			pending.Stop()
		}
		pending = time.AfterFunc(m.debounce, m.reload)
		pendingMu.Unlock()
	}

	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != filepath.Clean(m.path) {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if m.selfWrite.Load() {
				continue
			}
			schedule()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				log.Printf("config watcher error: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// reload re-reads the file, recreating it from defaults if it was
// deleted. Invalid content is logged and ignored; the previous config
// stays in effect.
func (m *Manager) reload() {
	cfg, err := readConfig(m.path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = *DefaultConfigWithRoot(filepath.Dir(m.path))
		if err := writeConfig(m.path, cfg); err != nil {
			log.Printf("config recreate failed: %v", err)
			return
		}
	} else if err != nil {
		log.Printf("config reload failed: %v", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("config reload rejected: %v", err)
		return
	}

	m.mu.RLock()
	unchanged := reflect.DeepEqual(m.current, cfg)
	m.mu.RUnlock()
	if unchanged {
		return
	}
	m.apply(cfg)
}

func (m *Manager) apply(cfg Config) {
	m.mu.Lock()
	m.current = cfg
	notify := m.onChange
	m.mu.Unlock()

	if notify != nil {
		notify(cfg)
	}
}

// loadOrSeed reads an existing config file, or creates one from the
// seed (falling back to defaults rooted at the file's directory).
func loadOrSeed(path string, seed *Config) (Config, error) {
	cfg, err := readConfig(path)
	if err == nil {
		if err := cfg.Validate(); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if seed != nil {
		cfg = *seed
	} else {
		cfg = *DefaultConfigWithRoot(filepath.Dir(path))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if err := writeConfig(path, cfg); err != nil {
		return Config{}, fmt.Errorf("write initial config: %w", err)
	}
	return cfg, nil
}

func readConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// writeConfig persists cfg with a temp-file-and-rename so a crash never
// leaves a half-written config behind.
func writeConfig(path string, cfg Config) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "config-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	err = enc.Encode(&cfg)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func defaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "papertrader", "config.json"), nil
}

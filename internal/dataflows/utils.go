package dataflows

import (
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CacheManager is a file-based response cache keyed by request
// parameters. Expired entries are removed on read.
type CacheManager struct {
	cacheDir string
	ttl      time.Duration
	enabled  bool
}

func NewCacheManager(cacheDir string, ttl time.Duration, enabled bool) *CacheManager {
	return &CacheManager{cacheDir: cacheDir, ttl: ttl, enabled: enabled}
}

func (cm *CacheManager) cacheKey(source, method string, params any) string {
	data, _ := json.Marshal(params)
	hash := md5.Sum(data)
	return fmt.Sprintf("%s_%s_%x.json", source, method, hash)
}

// Get loads a cached response into result, reporting whether a fresh
// entry was found.
func (cm *CacheManager) Get(source, method string, params any, result any) bool {
	if !cm.enabled {
		return false
	}
	path := filepath.Join(cm.cacheDir, cm.cacheKey(source, method, params))

	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if time.Since(info.ModTime()) > cm.ttl {
		os.Remove(path)
		return false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, result) == nil
}

// Set stores a response in the cache.
func (cm *CacheManager) Set(source, method string, params any, data any) error {
	if !cm.enabled {
		return nil
	}
	if err := os.MkdirAll(cm.cacheDir, 0o755); err != nil {
		return err
	}
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cm.cacheDir, cm.cacheKey(source, method, params)), jsonData, 0o644)
}

// RetryConfig configures exponential backoff for transient provider
// failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
	}
}

// WithRetry runs fn with exponential backoff. Permanent failures
// (invalid symbol) are not retried.
func WithRetry(config *RetryConfig, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt-1)))
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
			time.Sleep(delay)
		}

		err := fn()
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrInvalidSymbol)
}

// ValidateSymbol rejects obviously malformed ticker symbols before any
// quota is spent on them.
func ValidateSymbol(symbol string) error {
	symbol = NormalizeSymbol(symbol)
	if len(symbol) == 0 {
		return fmt.Errorf("%w: empty symbol", ErrInvalidSymbol)
	}
	if len(symbol) > 10 {
		return fmt.Errorf("%w: symbol too long: %s", ErrInvalidSymbol, symbol)
	}
	return nil
}

// NormalizeSymbol converts a symbol to canonical upper-case form.
func NormalizeSymbol(symbol string) string {
	return strings.TrimSpace(strings.ToUpper(symbol))
}

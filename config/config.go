package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectDir   string `json:"project_dir"`
	DataDir      string `json:"data_dir"`
	DataCacheDir string `json:"data_cache_dir"`
	DBPath       string `json:"db_path"`

	// PriceProvider is "alphavantage" or "yahoo".
	PriceProvider      string `json:"price_provider"`
	AlphaVantageAPIKey string `json:"alpha_vantage_api_key"`
	CacheEnabled       bool   `json:"cache_enabled"`

	// External API quota. SafetyBuffer is subtracted from the usable
	// daily limit.
	APIDailyLimit   int `json:"api_daily_limit"`
	APIMinuteLimit  int `json:"api_minute_limit"`
	APISafetyBuffer int `json:"api_safety_buffer"`

	// Session sizing.
	DefaultWatchlistSize int `json:"default_watchlist_size"`
	AvgTickersPerTrader  int `json:"avg_tickers_per_trader"`

	Debug bool `json:"debug"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	cfg := &Config{
		ProjectDir:   currentDir,
		DataDir:      filepath.Join(currentDir, "data"),
		DataCacheDir: filepath.Join(currentDir, "data", "cache"),
		DBPath:       filepath.Join(currentDir, "data", "papertrader.db"),

		PriceProvider: "alphavantage",
		CacheEnabled:  true,

		APIDailyLimit:   25,
		APIMinuteLimit:  5,
		APISafetyBuffer: 2,

		DefaultWatchlistSize: 6,
		AvgTickersPerTrader:  8,
	}

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()
	return cfg
}

func DefaultConfigWithRoot(root string) *Config {
	cfg := DefaultConfig()
	cfg.ProjectDir = root
	cfg.DataDir = filepath.Join(root, "data")
	cfg.DataCacheDir = filepath.Join(root, "data", "cache")
	cfg.DBPath = filepath.Join(root, "data", "papertrader.db")
	return cfg
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("DATA_CACHE_DIR"); val != "" {
		c.DataCacheDir = val
	}
	if val := os.Getenv("DB_PATH"); val != "" {
		c.DBPath = val
	}

	if val := os.Getenv("PRICE_PROVIDER"); val != "" {
		c.PriceProvider = val
	}
	if val := os.Getenv("ALPHA_VANTAGE_API_KEY"); val != "" {
		c.AlphaVantageAPIKey = val
	}
	if val := os.Getenv("CACHE_ENABLED"); val != "" {
		if cache, err := strconv.ParseBool(val); err == nil {
			c.CacheEnabled = cache
		}
	}

	if val := os.Getenv("API_DAILY_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.APIDailyLimit = n
		}
	}
	if val := os.Getenv("API_MINUTE_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.APIMinuteLimit = n
		}
	}
	if val := os.Getenv("API_SAFETY_BUFFER"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			c.APISafetyBuffer = n
		}
	}
	if val := os.Getenv("DEFAULT_WATCHLIST_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.DefaultWatchlistSize = n
		}
	}

	if val := os.Getenv("DEBUG"); val != "" {
		if debug, err := strconv.ParseBool(val); err == nil {
			c.Debug = debug
		}
	}
}

func (c *Config) Validate() error {
	if c.ProjectDir == "" {
		return fmt.Errorf("project dir is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	switch c.PriceProvider {
	case "alphavantage", "yahoo":
	default:
		return fmt.Errorf("unknown price provider %q", c.PriceProvider)
	}
	if c.APIDailyLimit <= 0 || c.APIMinuteLimit <= 0 {
		return fmt.Errorf("api limits must be positive")
	}
	if c.APISafetyBuffer < 0 || c.APISafetyBuffer >= c.APIDailyLimit {
		return fmt.Errorf("safety buffer must be in [0, daily limit)")
	}
	return nil
}

// MarketZone describes one supported trading region and its seed
// watchlist for the shared ticker pool.
type MarketZone struct {
	Timezone    string
	Exchange    string
	MarketHours string
	SeedTickers []string
}

// MarketZones is the static table of supported trading regions.
var MarketZones = map[string]MarketZone{
	"America/New_York": {
		Timezone:    "America/New_York",
		Exchange:    "NYSE/NASDAQ",
		MarketHours: "9:30 AM - 4:00 PM EST",
		SeedTickers: []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "NVDA", "META"},
	},
	"Europe/London": {
		Timezone:    "Europe/London",
		Exchange:    "LSE",
		MarketHours: "8:00 AM - 4:30 PM GMT",
		SeedTickers: []string{"BARC.L", "HSBA.L", "BP.L", "SHEL.L", "VOD.L", "GSK.L", "AZN.L"},
	},
	"Asia/Tokyo": {
		Timezone:    "Asia/Tokyo",
		Exchange:    "TSE",
		MarketHours: "9:00 AM - 3:00 PM JST",
		SeedTickers: []string{"7203.T", "6758.T", "9984.T", "8306.T", "9432.T", "6861.T", "6501.T"},
	},
}

// DefaultTimezone is used when a trader's timezone has no zone entry.
const DefaultTimezone = "America/New_York"

// TradingSchedule maps session slots to the local wall-clock time an
// external scheduler should fire them, per market timezone.
var TradingSchedule = map[string]string{
	"morning":      "09:45",
	"midday":       "12:30",
	"afternoon":    "15:00",
	"health_check": "16:30",
}

// GetMarketZone returns the zone for a timezone, falling back to the
// default zone for unknown ones.
func GetMarketZone(timezone string) MarketZone {
	if z, ok := MarketZones[timezone]; ok {
		return z
	}
	return MarketZones[DefaultTimezone]
}

// SupportedTimezones lists the timezones with a market zone entry.
func SupportedTimezones() []string {
	out := make([]string, 0, len(MarketZones))
	for tz := range MarketZones {
		out = append(out, tz)
	}
	return out
}

package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vibetrade/papertrader/config"
	"github.com/vibetrade/papertrader/internal/display"
	"github.com/vibetrade/papertrader/models"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cfg := config.DefaultConfig()

	var configPath string
	var manager *config.Manager

	rootCmd := &cobra.Command{
		Use:   "papertrader",
		Short: "papertrader - automated multi-agent paper trading",
		Long: `papertrader runs a fleet of simulated trader agents that evaluate
stock tickers with technical indicators on a schedule, execute paper
trades, and track balances, holdings and trade history in SQLite.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug := cfg.Debug
			mgr, err := loadManagedConfig(cfg, configPath)
			if err != nil {
				return err
			}
			manager = mgr
			// --debug on the command line beats the file setting
			if cmd.Root().PersistentFlags().Changed("debug") {
				cfg.Debug = debug
			}
			return nil
		},
	}

	rootCmd.AddCommand(newRunCmd(cfg, &manager))
	rootCmd.AddCommand(newHealthCmd(cfg))
	rootCmd.AddCommand(newRefreshPricesCmd(cfg))
	rootCmd.AddCommand(newAnalyzeCmd(cfg))
	rootCmd.AddCommand(newUsageCmd(cfg))
	rootCmd.AddCommand(newSeedCmd(cfg))
	rootCmd.AddCommand(newTradersCmd(cfg))
	rootCmd.AddCommand(newWatchlistCmd(cfg))
	rootCmd.AddCommand(newScheduleCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default <data dir>/config.json)")
	rootCmd.PersistentFlags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "Enable debug logging")

	return rootCmd
}

// newRunCmd creates the run command, the scheduler's main entry point.
func newRunCmd(cfg *config.Config, manager **config.Manager) *cobra.Command {
	var timezone, slot string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one trading session for a timezone",
		Long: `Run a full trading session: every active trader in the timezone gets
its watchlist analyzed and any resulting buy/sell decisions settled.
Example: papertrader run --timezone America/New_York --slot morning`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			// pick up config edits made while the session runs
			if mgr := *manager; mgr != nil {
				err := mgr.Watch(cmd.Context(), func(next config.Config) {
					*cfg = next
					a.log.Info("config file changed, reloaded")
				})
				if err != nil {
					a.log.WithError(err).Warn("config watch unavailable")
				}
			}

			result, err := a.runner.RunSession(cmd.Context(), timezone, slot)
			if err != nil {
				return fmt.Errorf("session failed: %w", err)
			}
			display.SessionSummary(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&timezone, "timezone", config.DefaultTimezone, "Market timezone to run")
	cmd.Flags().StringVar(&slot, "slot", "manual", "Session slot label (morning, midday, afternoon)")
	return cmd
}

func newHealthCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show a valuation snapshot for every trader",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.runner.HealthCheck(cmd.Context())
			if err != nil {
				return err
			}
			display.HealthReport(report)
			return nil
		},
	}
}

func newRefreshPricesCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-prices",
		Short: "Refresh the cached price for every held ticker",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.runner.RefreshPrices(cmd.Context())
			if err != nil {
				return err
			}
			display.RefreshSummary(result)
			return nil
		},
	}
}

func newAnalyzeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [SYMBOL]",
		Short: "Analyze one symbol without trading",
		Long: `Fetch the daily series for a symbol and print the indicator snapshot,
signal breakdown and display recommendation. No trade is executed.
Example: papertrader analyze AAPL`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var symbol string
			if len(args) > 0 {
				symbol = args[0]
			} else {
				var err error
				symbol, err = promptForTicker()
				if err != nil {
					return err
				}
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			dec, err := a.runner.Analyze(cmd.Context(), symbol)
			if err != nil {
				return err
			}
			display.Analysis(dec)
			return nil
		},
	}
}

func newUsageCmd(cfg *config.Config) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show API quota usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.governor.Stats(cmd.Context(), days)
			if err != nil {
				return err
			}
			display.UsageStats(stats)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Days of history to show")
	return cmd
}

// newSeedCmd loads the built-in market-zone tickers into the shared
// discovery pool.
func newSeedCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the ticker pool with the built-in market zones",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			count := 0
			for _, zone := range config.MarketZones {
				for _, ticker := range zone.SeedTickers {
					err := a.store.UpsertTickerPoolEntry(ctx, &models.TickerPoolEntry{
						Ticker:   ticker,
						Exchange: zone.Exchange,
						Timezone: zone.Timezone,
						IsActive: true,
						Source:   "seed",
					})
					if err != nil {
						return fmt.Errorf("seed %s: %w", ticker, err)
					}
					count++
				}
			}
			display.Success(fmt.Sprintf("Seeded %d pool tickers across %d market zones", count, len(config.MarketZones)))
			return nil
		},
	}
}

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Show the session slots an external scheduler should fire",
		Run: func(cmd *cobra.Command, args []string) {
			slots := make([]string, 0, len(config.TradingSchedule))
			for slot := range config.TradingSchedule {
				slots = append(slots, slot)
			}
			sort.Slice(slots, func(i, j int) bool {
				return config.TradingSchedule[slots[i]] < config.TradingSchedule[slots[j]]
			})

			fmt.Println("Session slots (local market time):")
			for _, slot := range slots {
				fmt.Printf("  %-14s %s\n", slot, config.TradingSchedule[slot])
			}
			fmt.Println("\nTimezones:")
			for _, tz := range sortedTimezones() {
				zone := config.MarketZones[tz]
				fmt.Printf("  %-18s %s (%s)\n", tz, zone.Exchange, zone.MarketHours)
			}
		},
	}
}

func sortedTimezones() []string {
	zones := config.SupportedTimezones()
	sort.Strings(zones)
	return zones
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("papertrader v1.0.0")
			fmt.Println("Automated multi-agent paper trading simulator")
		},
	}
}

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vibetrade/papertrader/config"
	"github.com/vibetrade/papertrader/internal/display"
	"github.com/vibetrade/papertrader/internal/watchlist"
	"github.com/vibetrade/papertrader/models"
)

func newTradersCmd(cfg *config.Config) *cobra.Command {
	tradersCmd := &cobra.Command{
		Use:   "traders",
		Short: "Manage trader agents",
	}

	tradersCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all traders",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			traders, err := a.store.ListTraders(cmd.Context())
			if err != nil {
				return err
			}
			display.TraderList(traders)
			return nil
		},
	})

	tradersCmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create a trader interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			trader, err := promptForTrader(cfg)
			if err != nil {
				return err
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.CreateTrader(cmd.Context(), trader); err != nil {
				return fmt.Errorf("create trader: %w", err)
			}
			display.Success(fmt.Sprintf("Created trader #%d %q with %s starting balance",
				trader.ID, trader.Name, trader.InitialBalance.StringFixed(2)))
			return nil
		},
	})

	tradersCmd.AddCommand(&cobra.Command{
		Use:   "trades TRADER_ID",
		Short: "Show a trader's recent trades",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid trader id %q", args[0])
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			trades, err := a.store.ListTrades(cmd.Context(), id, 20)
			if err != nil {
				return err
			}
			if len(trades) == 0 {
				fmt.Println("No trades yet.")
				return nil
			}
			for _, t := range trades {
				fmt.Printf("  %s  %-4s %-8s %4d × $%s  balance $%s  %s\n",
					t.ExecutedAt.Format("2006-01-02 15:04"), t.Action, t.Ticker,
					t.Quantity, t.Price.StringFixed(2), t.BalanceAfter.StringFixed(2), t.Notes)
			}
			return nil
		},
	})

	return tradersCmd
}

func newWatchlistCmd(cfg *config.Config) *cobra.Command {
	watchlistCmd := &cobra.Command{
		Use:   "watchlist",
		Short: "Manage a trader's custom watchlist",
	}

	watchlistCmd.AddCommand(&cobra.Command{
		Use:   "show TRADER_ID",
		Short: "Show a trader's watchlist configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, trader, err := loadTrader(cfg, cmd, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			if trader.UseCustomWatchlist {
				fmt.Printf("Custom watchlist (%d tickers): %v\n", len(trader.CustomWatchlist), trader.CustomWatchlist)
			} else {
				fmt.Printf("Discovery from the %s pool, %d tickers per session\n",
					trader.TradingTimezone, discoveryLimit(trader))
			}
			return nil
		},
	})

	watchlistCmd.AddCommand(&cobra.Command{
		Use:   "set TRADER_ID TICKER...",
		Short: "Replace a trader's custom watchlist",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, trader, err := loadTrader(cfg, cmd, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.selector.SetCustom(cmd.Context(), a.store, trader, args[1:]); err != nil {
				return err
			}
			display.Success(fmt.Sprintf("Watchlist for %q set to %v", trader.Name, trader.CustomWatchlist))
			return nil
		},
	})

	watchlistCmd.AddCommand(&cobra.Command{
		Use:   "clear TRADER_ID",
		Short: "Clear the custom watchlist and revert to pool discovery",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, trader, err := loadTrader(cfg, cmd, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.selector.ClearCustom(cmd.Context(), a.store, trader); err != nil {
				return err
			}
			display.Success(fmt.Sprintf("Watchlist for %q cleared", trader.Name))
			return nil
		},
	})

	return watchlistCmd
}

func loadTrader(cfg *config.Config, cmd *cobra.Command, rawID string) (*app, *models.Trader, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid trader id %q", rawID)
	}

	a, err := newApp(cfg)
	if err != nil {
		return nil, nil, err
	}

	trader, err := a.store.GetTrader(cmd.Context(), id)
	if err != nil {
		a.Close()
		return nil, nil, fmt.Errorf("load trader %d: %w", id, err)
	}
	return a, trader, nil
}

func discoveryLimit(t *models.Trader) int {
	if t.WatchlistSize > 0 {
		return t.WatchlistSize
	}
	return watchlist.DefaultDiscoveryLimit
}

package cli

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/shopspring/decimal"

	"github.com/vibetrade/papertrader/config"
	"github.com/vibetrade/papertrader/models"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.-]+$`)

// promptForTicker asks for a stock ticker symbol.
func promptForTicker() (string, error) {
	var ticker string
	prompt := &survey.Input{
		Message: "Enter the stock ticker symbol (e.g., AAPL, MSFT, GOOGL):",
		Help:    "Use the exchange suffix for non-US symbols, e.g. BARC.L or 7203.T",
	}

	err := survey.AskOne(prompt, &ticker, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(strings.ToUpper(val.(string)))
		if len(str) == 0 {
			return fmt.Errorf("ticker symbol cannot be empty")
		}
		if len(str) > 10 {
			return fmt.Errorf("ticker symbol too long (max 10 characters)")
		}
		if !tickerPattern.MatchString(str) {
			return fmt.Errorf("invalid ticker format (use letters, numbers, dots, and hyphens only)")
		}
		return nil
	}))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(strings.ToUpper(ticker)), nil
}

// promptForTrader interactively gathers a new trader's configuration.
func promptForTrader(cfg *config.Config) (*models.Trader, error) {
	var name string
	if err := survey.AskOne(&survey.Input{
		Message: "Trader name:",
	}, &name, survey.WithValidator(survey.Required)); err != nil {
		return nil, err
	}

	var balanceStr string
	if err := survey.AskOne(&survey.Input{
		Message: "Starting balance:",
		Default: "10000",
	}, &balanceStr, survey.WithValidator(func(val interface{}) error {
		d, err := decimal.NewFromString(strings.TrimSpace(val.(string)))
		if err != nil {
			return fmt.Errorf("enter a decimal amount, e.g. 10000 or 2500.50")
		}
		if d.Sign() <= 0 {
			return fmt.Errorf("balance must be positive")
		}
		return nil
	})); err != nil {
		return nil, err
	}
	balance := decimal.RequireFromString(strings.TrimSpace(balanceStr))

	var risk string
	if err := survey.AskOne(&survey.Select{
		Message: "Risk tolerance:",
		Options: []string{string(models.RiskLow), string(models.RiskMedium), string(models.RiskHigh)},
		Default: string(models.RiskMedium),
		Help:    "Controls buy/sell thresholds and position sizing (low 5%, medium 10%, high 15% of balance)",
	}, &risk); err != nil {
		return nil, err
	}

	var timezone string
	if err := survey.AskOne(&survey.Select{
		Message: "Trading timezone:",
		Options: sortedTimezones(),
		Default: config.DefaultTimezone,
	}, &timezone); err != nil {
		return nil, err
	}

	var sizeStr string
	if err := survey.AskOne(&survey.Input{
		Message: "Discovery watchlist size:",
		Default: strconv.Itoa(cfg.DefaultWatchlistSize),
		Help:    "How many non-held tickers to sample each session",
	}, &sizeStr, survey.WithValidator(func(val interface{}) error {
		n, err := strconv.Atoi(strings.TrimSpace(val.(string)))
		if err != nil || n <= 0 {
			return fmt.Errorf("enter a positive integer")
		}
		return nil
	})); err != nil {
		return nil, err
	}
	size, _ := strconv.Atoi(strings.TrimSpace(sizeStr))

	var ethos string
	if err := survey.AskOne(&survey.Input{
		Message: "Trading ethos (optional, free text):",
	}, &ethos); err != nil {
		return nil, err
	}

	return &models.Trader{
		Name:            strings.TrimSpace(name),
		TradingEthos:    strings.TrimSpace(ethos),
		Status:          models.TraderActive,
		InitialBalance:  balance,
		CurrentBalance:  balance,
		RiskTolerance:   models.RiskTolerance(risk),
		TradingTimezone: timezone,
		WatchlistSize:   size,
	}, nil
}

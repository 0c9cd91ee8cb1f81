// Package display renders trading results for the terminal.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/vibetrade/papertrader/internal/quota"
	"github.com/vibetrade/papertrader/internal/session"
	"github.com/vibetrade/papertrader/models"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Padding(0, 1).
		MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#3B82F6")).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(0, 2)

	panelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#10B981")).
		Padding(1, 2)

	gainStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	lossStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)

	dimStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))

	warnStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B")).
		Bold(true)
)

// SessionSummary prints the outcome of a trading session.
func SessionSummary(result *session.Result) {
	title := fmt.Sprintf("📊 Session: %s / %s", result.Timezone, result.TimeOfDay)
	fmt.Println(headerStyle.Render(title))

	var b strings.Builder
	status := result.Status
	if result.Status == session.StatusAborted {
		status = warnStyle.Render(result.Status)
	}
	fmt.Fprintf(&b, "Status:            %s\n", status)
	fmt.Fprintf(&b, "Traders processed: %d\n", result.TradersProcessed)
	fmt.Fprintf(&b, "Trades executed:   %d\n", result.TradesExecuted)
	fmt.Fprintf(&b, "API calls made:    %d", result.APICallsMade)
	if result.Message != "" {
		fmt.Fprintf(&b, "\n%s", dimStyle.Render(result.Message))
	}
	fmt.Println(panelStyle.Render(b.String()))

	for _, trade := range result.Trades {
		printTrade(trade)
	}
}

func printTrade(t *models.Trade) {
	arrow := gainStyle.Render("BUY ")
	if t.Action == models.TradeSell {
		arrow = lossStyle.Render("SELL")
	}
	fmt.Printf("  %s %-8s %4d × %s = %s (balance %s, confidence %d%%)\n",
		arrow, t.Ticker, t.Quantity, money(t.Price), money(t.TotalAmount), money(t.BalanceAfter), t.Confidence)
}

// HealthReport prints a valuation snapshot for every trader.
func HealthReport(report *session.HealthReport) {
	fmt.Println(headerStyle.Render("🏥 Trader Health Check"))
	fmt.Println(dimStyle.Render("Generated " + report.GeneratedAt.Format(time.RFC1123)))
	fmt.Println()

	for _, v := range report.Traders {
		pct := v.ReturnPct
		pctText := fmt.Sprintf("%+.2f%%", pct.InexactFloat64())
		styled := gainStyle.Render(pctText)
		if pct.Sign() < 0 {
			styled = lossStyle.Render(pctText)
		} else if pct.IsZero() {
			styled = dimStyle.Render(pctText)
		}

		fmt.Printf("  %-20s [%s]  cash %12s  holdings %12s (%d)  total %12s  %s\n",
			v.Name, v.Status, money(v.CashBalance), money(v.HoldingsValue), v.Positions, money(v.TotalValue), styled)
	}
}

// Analysis prints a decorated single-symbol analysis.
func Analysis(dec *models.Decision) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("📈 %s @ %s", dec.Ticker, money(dec.Price))))

	var b strings.Builder
	fmt.Fprintf(&b, "Recommendation: %s (confidence %d%%)\n", recommendationText(dec.Recommendation), dec.Confidence)
	fmt.Fprintf(&b, "Signal score:   %+d\n", dec.Score)
	if dec.RSI != nil {
		fmt.Fprintf(&b, "RSI(14):        %.1f\n", *dec.RSI)
	}
	if dec.SMA20 != nil && dec.SMA50 != nil {
		fmt.Fprintf(&b, "SMA 20/50:      %.2f / %.2f\n", *dec.SMA20, *dec.SMA50)
	}
	if dec.MACD != nil {
		fmt.Fprintf(&b, "MACD:           %.3f\n", *dec.MACD)
	}
	if dec.Momentum != nil {
		fmt.Fprintf(&b, "Momentum(10):   %+.1f%%\n", *dec.Momentum)
	}
	b.WriteString("\nSignals:")
	if len(dec.Signals) == 0 {
		b.WriteString("\n  (none fired)")
	}
	for _, s := range dec.Signals {
		b.WriteString("\n  " + s)
	}
	fmt.Println(panelStyle.Render(b.String()))
}

func recommendationText(rec string) string {
	switch rec {
	case "STRONG BUY", "BUY":
		return gainStyle.Render(rec)
	case "STRONG SELL", "SELL":
		return lossStyle.Render(rec)
	default:
		return dimStyle.Render(rec)
	}
}

// RefreshSummary prints the outcome of a price-cache refresh.
func RefreshSummary(result *session.RefreshResult) {
	fmt.Printf("✅ Updated %d ticker price(s)\n", result.UpdatedCount)
	for _, e := range result.Errors {
		fmt.Println(warnStyle.Render("  ⚠ " + e))
	}
}

// UsageStats prints quota usage for today and recent days.
func UsageStats(stats *quota.UsageStats) {
	fmt.Println(headerStyle.Render("🔌 API Quota"))

	today := 0
	if stats.Today != nil {
		today = stats.Today.CallCount
	}
	fmt.Printf("  Today:     %d / %d (buffer %d, %d usable remaining)\n",
		today, stats.Limits.Daily, stats.Limits.SafetyBuffer, stats.RemainingToday)
	fmt.Printf("  Burst:     %d per minute\n", stats.Limits.PerMinute)

	if len(stats.Recent) > 0 {
		fmt.Println("  Recent:")
		for _, u := range stats.Recent {
			fmt.Printf("    %s  %3d calls\n", u.Date, u.CallCount)
		}
	}
}

// TraderList prints a one-line summary per trader.
func TraderList(traders []*models.Trader) {
	fmt.Println(headerStyle.Render("👥 Traders"))
	if len(traders) == 0 {
		fmt.Println(dimStyle.Render("  (no traders yet — create one with `papertrader traders create`)"))
		return
	}
	for _, t := range traders {
		watchlist := "pool"
		if t.UseCustomWatchlist {
			watchlist = fmt.Sprintf("custom (%d)", len(t.CustomWatchlist))
		}
		fmt.Printf("  #%-3d %-20s [%s] %-6s risk, balance %12s, tz %s, watchlist %s\n",
			t.ID, t.Name, t.Status, t.RiskTolerance, money(t.CurrentBalance), t.TradingTimezone, watchlist)
	}
}

// Error prints a formatted error message.
func Error(err error, context string) {
	fmt.Println(lossStyle.Render(errorMessage(err, context)))
}

func errorMessage(err error, context string) string {
	return fmt.Sprintf("❌ %s: %v", context, err)
}

// Success prints a formatted success message.
func Success(message string) {
	fmt.Println(gainStyle.Render("✅ " + message))
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

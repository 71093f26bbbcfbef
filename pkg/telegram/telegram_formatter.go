package telegram

import (
	"fmt"
	"sort"
	"strings"
	"time"

	notificationdto "golang-orb-trader/internal/notification/dto"
	"golang-orb-trader/internal/trading/dto"
)

const maxMessageLen = 4090

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}

func sideIcon(side string) string {
	if side == "short" {
		return "🔻"
	}
	return "🔺"
}

func accountLabel(event dto.TradeEvent) string {
	if event.AccountName != "" {
		return escape(event.AccountName)
	}
	return fmt.Sprintf("#%d", event.AccountID)
}

// FormatTradeEvent renders one trade event as a Telegram Markdown message.
// Unknown event types yield an empty string.
func FormatTradeEvent(event dto.TradeEvent, loc *time.Location) string {
	var sb strings.Builder

	switch event.Type {
	case dto.EventOrderPlaced:
		sb.WriteString(fmt.Sprintf("%s *ORB Entry %s* `%s`\n", sideIcon(event.Side), strings.ToUpper(event.Side), event.Symbol))
		sb.WriteString(fmt.Sprintf("👤 Account: %s\n", accountLabel(event)))
		sb.WriteString(fmt.Sprintf("🏅 Rank: %d | Qty: %d\n", event.Rank, event.Qty))
		sb.WriteString(fmt.Sprintf("💵 Entry: $%.2f\n", event.Price))
		sb.WriteString(fmt.Sprintf("🛡 Stop: $%.2f\n", event.StopPrice))
		sb.WriteString(fmt.Sprintf("🎯 Target: $%.2f\n", event.TargetPrice))
		if event.R > 0 {
			sb.WriteString(fmt.Sprintf("📏 R: $%.2f\n", event.R))
		}
	case dto.EventOrderFailed:
		sb.WriteString(fmt.Sprintf("⚠️ *Order Rejected* `%s`\n", event.Symbol))
		sb.WriteString(fmt.Sprintf("👤 Account: %s\n", accountLabel(event)))
		sb.WriteString(fmt.Sprintf("%s %s %d @ $%.2f\n", sideIcon(event.Side), strings.ToUpper(event.Side), event.Qty, event.Price))
		sb.WriteString(fmt.Sprintf("💬 %s\n", escape(event.Reason)))
	case dto.EventRiskLocked:
		sb.WriteString("🔒 *Daily Loss Limit Hit*\n")
		sb.WriteString(fmt.Sprintf("👤 Account: %s\n", accountLabel(event)))
		sb.WriteString(fmt.Sprintf("💬 %s\n", escape(event.Reason)))
		sb.WriteString("No new entries today. Open positions are being flattened.\n")
	case dto.EventManualStop:
		sb.WriteString("⏸ *Trading Stopped*\n")
		sb.WriteString(fmt.Sprintf("👤 Account: %s\n", accountLabel(event)))
		if event.Reason != "" {
			sb.WriteString(fmt.Sprintf("💬 %s\n", escape(event.Reason)))
		}
	case dto.EventManualStart:
		sb.WriteString("▶️ *Trading Resumed*\n")
		sb.WriteString(fmt.Sprintf("👤 Account: %s\n", accountLabel(event)))
	case dto.EventPositionExtended:
		sb.WriteString(fmt.Sprintf("🚀 *Position Extended* `%s`\n", event.Symbol))
		sb.WriteString(fmt.Sprintf("👤 Account: %s\n", accountLabel(event)))
		sb.WriteString(fmt.Sprintf("%s %s %d | %.2fR at $%.2f\n", sideIcon(event.Side), strings.ToUpper(event.Side), event.Qty, event.R, event.Price))
		sb.WriteString(fmt.Sprintf("🛡 Trailing from: $%.2f\n", event.StopPrice))
	case dto.EventPositionFlattened:
		sb.WriteString(fmt.Sprintf("🏁 *Position Closed* `%s`\n", event.Symbol))
		sb.WriteString(fmt.Sprintf("👤 Account: %s\n", accountLabel(event)))
		sb.WriteString(fmt.Sprintf("%s %s %d @ $%.2f | %.2fR\n", sideIcon(event.Side), strings.ToUpper(event.Side), event.Qty, event.Price, event.R))
		sb.WriteString(fmt.Sprintf("💬 Reason: %s\n", escape(event.Reason)))
	case dto.EventSessionFlattened:
		sb.WriteString("🧹 *All Positions Flattened*\n")
		sb.WriteString(fmt.Sprintf("👤 Account: %s\n", accountLabel(event)))
		sb.WriteString(fmt.Sprintf("💬 Reason: %s\n", escape(event.Reason)))
		if len(event.Symbols) > 0 {
			sb.WriteString(fmt.Sprintf("📋 %s\n", strings.Join(event.Symbols, ", ")))
		}
	case dto.EventScanFallback:
		sb.WriteString("🟡 *Scan Fallback*\n")
		sb.WriteString(fmt.Sprintf("💬 %s\n", escape(event.Reason)))
		if len(event.Symbols) > 0 {
			sb.WriteString(fmt.Sprintf("📋 Trading: %s\n", strings.Join(event.Symbols, ", ")))
		}
	case dto.EventScanCompleted:
		sb.WriteString("📡 *ORB Watchlist Ready*\n")
		if len(event.Symbols) > 0 {
			for i, symbol := range event.Symbols {
				sb.WriteString(fmt.Sprintf("%d. `%s`\n", i+1, symbol))
			}
		} else {
			sb.WriteString("_No qualified symbols._\n")
		}
		if event.Reason != "" {
			sb.WriteString(fmt.Sprintf("📈 Regime: %s\n", escape(event.Reason)))
		}
	default:
		return ""
	}

	if !event.OccurredAt.IsZero() {
		sb.WriteString(fmt.Sprintf("🕒 %s\n", event.OccurredAt.In(loc).Format("2006-01-02 15:04:05 MST")))
	}
	return sb.String()
}

// FormatDailySummary renders the end-of-day report, split so each part fits one Telegram message.
func FormatDailySummary(summary notificationdto.DailySummary) []string {
	if len(summary.Accounts) == 0 {
		return []string{fmt.Sprintf("📊 *ORB Daily Summary %s*\n\n_No trades today._", summary.Date)}
	}

	var messages []string
	var current strings.Builder
	part := 1

	startNewPart := func() {
		current.Reset()
		if part == 1 {
			current.WriteString(fmt.Sprintf("📊 *ORB Daily Summary %s*\n", summary.Date))
			current.WriteString(fmt.Sprintf("💰 Total P&L: $%s\n\n", summary.TotalPnL.StringFixed(2)))
		} else {
			current.WriteString(fmt.Sprintf("--- *ORB Daily Summary %s Part %d* ---\n\n", summary.Date, part))
		}
	}
	startNewPart()

	for _, acc := range summary.Accounts {
		entry := formatAccountSummary(acc)
		if current.Len()+len(entry) > maxMessageLen {
			messages = append(messages, current.String())
			part++
			startNewPart()
		}
		current.WriteString(entry)
	}
	messages = append(messages, current.String())
	return messages
}

func formatAccountSummary(acc notificationdto.AccountSummary) string {
	var sb strings.Builder

	name := escape(acc.AccountName)
	if name == "" {
		name = fmt.Sprintf("#%d", acc.AccountID)
	}
	pnlIcon := "🟢"
	if acc.RealizedPnL.IsNegative() {
		pnlIcon = "🔴"
	}

	sb.WriteString(fmt.Sprintf("👤 *%s*\n", name))
	sb.WriteString(fmt.Sprintf("%s P&L: $%s\n", pnlIcon, acc.RealizedPnL.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("📈 Trades: %d | Wins: %d | Losses: %d | Win rate: %s%%\n", acc.Trades, acc.Wins, acc.Losses, acc.WinRate().StringFixed(1)))
	if acc.Open > 0 {
		sb.WriteString(fmt.Sprintf("⏳ Still open: %d\n", acc.Open))
	}
	if acc.Failed > 0 {
		sb.WriteString(fmt.Sprintf("⚠️ Rejected orders: %d\n", acc.Failed))
	}
	if acc.BestSymbol != "" {
		sb.WriteString(fmt.Sprintf("🏆 Best: `%s` $%s\n", acc.BestSymbol, acc.BestPnL.StringFixed(2)))
	}
	if acc.WorstSymbol != "" && acc.WorstSymbol != acc.BestSymbol {
		sb.WriteString(fmt.Sprintf("🥀 Worst: `%s` $%s\n", acc.WorstSymbol, acc.WorstPnL.StringFixed(2)))
	}
	if len(acc.ExitReasons) > 0 {
		reasons := make([]string, 0, len(acc.ExitReasons))
		for reason, n := range acc.ExitReasons {
			reasons = append(reasons, fmt.Sprintf("%s ×%d", escape(reason), n))
		}
		sort.Strings(reasons)
		sb.WriteString(fmt.Sprintf("🚪 Exits: %s\n", strings.Join(reasons, ", ")))
	}
	sb.WriteString("\n")
	return sb.String()
}

// FormatErrorAlertMessage renders an operational alert.
func FormatErrorAlertMessage(at time.Time, errType string, errMsg string, data string) string {
	return fmt.Sprintf("📛 [ERROR ALERT]\n%s\n🔧 %s\n⚠️ %s\n\n📄 Data: %s\n",
		at.Format("2006-01-02 15:04:05 MST"), escape(errType), escape(errMsg), escape(data))
}

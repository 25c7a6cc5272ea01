package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/survival-bro/internal/llm"
	"github.com/raine/survival-bro/internal/scan"
)

const (
	callbackView   = "view"
	callbackDelete = "del"
	callbackOpen   = "open"
)

var riskEmoji = map[llm.RiskLevel]string{
	llm.RiskLow:      "🟢",
	llm.RiskMedium:   "🟡",
	llm.RiskHigh:     "🟠",
	llm.RiskCritical: "🔴",
}

var actionLabels = map[llm.Action]string{
	llm.ActionBlur:        "一鍵模糊背景",
	llm.ActionMovePrivate: "移動至私隱空間",
	llm.ActionNone:        "唔使郁",
}

// riskLine renders "🔴 CRITICAL".
func riskLine(level llm.RiskLevel) string {
	return fmt.Sprintf("%s %s", riskEmoji[level], level)
}

func writeSection(sb *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	sb.WriteString("\n\n")
	sb.WriteString(title)
	for _, line := range lines {
		sb.WriteString("\n• ")
		sb.WriteString(escapeMarkdown(line))
	}
}

// formatReport renders an item for Telegram (Markdown V1). Pending and failed
// items render as their status message.
func formatReport(item scan.ScannedItem) string {
	switch item.Status {
	case scan.StatusPending:
		return MsgScanning
	case scan.StatusFailed:
		return failureText(item.Failure)
	}
	if item.Result == nil {
		return MsgReportFailed
	}

	r := item.Result
	var sb strings.Builder
	sb.WriteString(MsgReportTitle)
	sb.WriteString("\n")
	sb.WriteString(riskLine(r.RiskLevel))
	if r.Summary != "" {
		sb.WriteString("\n\n「")
		sb.WriteString(escapeMarkdown(r.Summary))
		sb.WriteString("」")
	}
	writeSection(&sb, MsgRiskSpotsTitle, r.RiskSpots)
	writeSection(&sb, MsgScriptsTitle, r.Scripts)
	writeSection(&sb, MsgExcusesTitle, r.Excuses)
	sb.WriteString("\n\n")
	sb.WriteString(MsgActionTitle)
	sb.WriteString("：")
	sb.WriteString(actionLabels[r.ActionNeeded])
	return sb.String()
}

func failureText(kind string) string {
	if kind == llm.KindConfiguration {
		return MsgConfigurationError
	}
	return MsgReportFailed
}

// listLine is one row of /list.
func listLine(i int, item scan.ScannedItem) string {
	switch item.Status {
	case scan.StatusAnalyzed:
		if item.Result != nil {
			return fmt.Sprintf("%d. %s %s", i, riskLine(item.Result.RiskLevel), escapeMarkdown(item.Result.Summary))
		}
	case scan.StatusPending:
		return fmt.Sprintf("%d. ⏳ %s", i, MsgScanning)
	}
	return fmt.Sprintf("%d. ⚠️ %s", i, failureText(item.Failure))
}

func reportKeyboard(itemID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(BtnView, callbackView+":"+itemID),
			tgbotapi.NewInlineKeyboardButtonData(BtnDelete, callbackDelete+":"+itemID),
		),
	)
}

func alertKeyboard(notificationID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(BtnView, callbackOpen+":"+notificationID),
		),
	)
}

// listKeyboard has one view button per listed item.
func listKeyboard(items []scan.ScannedItem) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(items))
	for i, item := range items {
		label := fmt.Sprintf("%d. %s", i+1, BtnView)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackView+":"+item.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

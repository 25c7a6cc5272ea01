package bot

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
)

func formatReplyText(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

func parseCommand(s string) (string, []string) {
	parts := strings.Split(s, " ")
	command := parts[0]
	// Commands in groups arrive as /list@botname
	if i := strings.Index(command, "@"); i >= 0 {
		command = command[:i]
	}
	return command, parts[1:]
}

// escapeMarkdown escapes special characters for Telegram Markdown V1
func escapeMarkdown(text string) string {
	text = strings.ReplaceAll(text, "*", "\\*")
	text = strings.ReplaceAll(text, "_", "\\_")
	text = strings.ReplaceAll(text, "`", "\\`")
	text = strings.ReplaceAll(text, "[", "\\[")
	return text
}

// parseCallbackData splits "action:payload".
func parseCallbackData(data string) (action, payload string) {
	action, payload, _ = strings.Cut(data, ":")
	return action, payload
}

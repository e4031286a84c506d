package ai

import (
	"strings"

	"github.com/zhouzirui/ai-collective/backend/internal/model/chat"
)

// DefaultHistoryLimit caps how many transcript lines are sent with each request.
const DefaultHistoryLimit = 15

// FormatHistory renders the last limit messages as "author: text" lines.
func FormatHistory(messages []chat.Message, limit int) string {
	tail := chat.Tail(messages, limit)
	if len(tail) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, msg := range tail {
		if i > 0 {
			builder.WriteByte('\n')
		}
		builder.WriteString(msg.Author)
		builder.WriteString(": ")
		builder.WriteString(msg.Text)
	}
	return builder.String()
}

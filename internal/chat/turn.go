package chat

import (
	"fmt"
	"strings"
)

// Turn is one user message and the reply it produced.
type Turn struct {
	UserMessage string `json:"user_message"`
	BotReply    string `json:"bot_reply"`
}

// History is the ordered, append-only list of turns in a conversation.
type History []Turn

// Append returns a new history with t at the end. The receiver is left
// untouched so callers holding an older history never see it change.
func (h History) Append(t Turn) History {
	out := make(History, len(h), len(h)+1)
	copy(out, h)
	return append(out, t)
}

// Render flattens h into the plain-text conversation log, one numbered
// question/answer block per turn.
func Render(h History) string {
	var b strings.Builder
	for i, t := range h {
		fmt.Fprintf(&b, "Q%d: %s\nA%d: %s\n\n", i+1, t.UserMessage, i+1, t.BotReply)
	}
	return b.String()
}

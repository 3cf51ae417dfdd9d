package retrieval

import (
	"strings"

	"github.com/fyrsmithlabs/askd/internal/memory"
)

// EnhanceQuery prefixes query with up to the last exchanges user/assistant
// pairs of history. The result is used for retrieval only, never shown. A
// trailing user message equal to query is the question itself and is not
// repeated.
func EnhanceQuery(query string, history []memory.Message, exchanges int) string {
	if n := len(history); n > 0 && history[n-1].Role == memory.RoleUser && history[n-1].Content == query {
		history = history[:n-1]
	}
	if len(history) == 0 || exchanges <= 0 {
		return query
	}
	if limit := 2 * exchanges; len(history) > limit {
		history = history[len(history)-limit:]
	}

	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, msg := range history {
		if msg.Role == memory.RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(msg.Content)
		b.WriteByte('\n')
	}
	b.WriteString("\nCurrent question: ")
	b.WriteString(query)
	return b.String()
}

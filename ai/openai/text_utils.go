package openai

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// cleanReply removes <think>...</think> blocks emitted by reasoning models
// and trims surrounding whitespace. An unterminated block drops the rest
// of the reply.
func cleanReply(s string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, thinkOpen)
		if start < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:start])
		end := strings.Index(s[start:], thinkClose)
		if end < 0 {
			break
		}
		s = s[start+end+len(thinkClose):]
	}
	return strings.TrimSpace(b.String())
}

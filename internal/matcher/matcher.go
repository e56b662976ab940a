// Package matcher decides which auto-reply rule answers a visitor message.
//
// Match is the authoritative decision used when persisting auto-replies: a rule
// applies when its keyword occurs, case-insensitively, anywhere in the message.
// Preview is a looser similarity search for the dashboard's "try it" box and is
// never used to produce stored replies.
package matcher

import (
	"strings"
	"unicode/utf8"

	"widget-chat-service/internal/models"
)

// Match returns the winning rule for text. The longest matching keyword wins;
// equal lengths fall back to the lowest rule id, then the lexically smallest keyword.
func Match(text string, rules []models.AutoReplyRule) (models.AutoReplyRule, bool) {
	if strings.TrimSpace(text) == "" || len(rules) == 0 {
		return models.AutoReplyRule{}, false
	}
	haystack := strings.ToLower(text)

	var (
		best    models.AutoReplyRule
		bestLen int
		found   bool
	)
	for _, rule := range rules {
		keyword := strings.ToLower(strings.TrimSpace(rule.Keyword))
		if keyword == "" || !strings.Contains(haystack, keyword) {
			continue
		}
		n := utf8.RuneCountInString(keyword)
		if !found || beats(rule, n, best, bestLen) {
			best, bestLen, found = rule, n, true
		}
	}
	return best, found
}

func beats(candidate models.AutoReplyRule, candidateLen int, current models.AutoReplyRule, currentLen int) bool {
	if candidateLen != currentLen {
		return candidateLen > currentLen
	}
	if candidate.ID != current.ID {
		return candidate.ID < current.ID
	}
	return candidate.Keyword < current.Keyword
}

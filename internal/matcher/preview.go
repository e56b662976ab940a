package matcher

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"widget-chat-service/internal/models"
)

// PreviewResult is an advisory match for the dashboard rule tester.
type PreviewResult struct {
	Rule models.AutoReplyRule `json:"rule"`
	// Score is 1 for a containment match, otherwise the best normalized
	// Levenshtein similarity between the keyword and a window of message words.
	Score float64 `json:"score"`
	// Exact reports whether Match would pick this rule for real.
	Exact bool `json:"exact"`
}

// Preview finds the best-scoring rule at or above threshold. A containment match
// always takes priority so a preview never contradicts Match when Match succeeds.
func Preview(text string, rules []models.AutoReplyRule, threshold float64) (PreviewResult, bool) {
	if rule, ok := Match(text, rules); ok {
		return PreviewResult{Rule: rule, Score: 1, Exact: true}, true
	}

	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return PreviewResult{}, false
	}

	var (
		best  PreviewResult
		found bool
	)
	for _, rule := range rules {
		keyword := strings.ToLower(strings.TrimSpace(rule.Keyword))
		if keyword == "" {
			continue
		}
		score := bestWindowScore(words, keyword)
		if score < threshold {
			continue
		}
		if !found || score > best.Score || (score == best.Score && rule.ID < best.Rule.ID) {
			best, found = PreviewResult{Rule: rule, Score: score}, true
		}
	}
	return best, found
}

// bestWindowScore compares keyword against every run of consecutive words that
// has the same word count as the keyword.
func bestWindowScore(words []string, keyword string) float64 {
	size := len(strings.Fields(keyword))
	if size == 0 {
		return 0
	}
	if size > len(words) {
		size = len(words)
	}

	best := 0.0
	for i := 0; i+size <= len(words); i++ {
		window := strings.Join(words[i:i+size], " ")
		if s := similarity(window, keyword); s > best {
			best = s
		}
	}
	return best
}

func similarity(a, b string) float64 {
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

package usecases

import (
	"strings"
	"unicode"
)

// FollowUpClassifier decides whether a question depends on prior conversation.
type FollowUpClassifier interface {
	IsFollowUp(question string) bool
}

// DefaultFollowUpKeywords are matched as whole words or phrases, case-insensitively.
var DefaultFollowUpKeywords = []string{"it", "that", "this", "its", "tell me more", "what about"}

// DefaultFollowUpMaxWords is the word count at or below which a question counts as a follow-up.
const DefaultFollowUpMaxWords = 4

// KeywordClassifier flags short questions and questions containing
// follow-up keywords. The two signals are OR'd, so short standalone
// questions such as "What is X?" are flagged purely by length.
type KeywordClassifier struct {
	MaxWords int
	Keywords []string
}

// NewKeywordClassifier returns a classifier with the default thresholds.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		MaxWords: DefaultFollowUpMaxWords,
		Keywords: DefaultFollowUpKeywords,
	}
}

// IsFollowUp reports whether question looks like a follow-up.
func (c *KeywordClassifier) IsFollowUp(question string) bool {
	q := strings.ToLower(question)

	if len(strings.Fields(q)) <= c.MaxWords {
		return true
	}

	// Pad so phrases only match on word boundaries: "it" must not hit "capital".
	words := strings.FieldsFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	padded := " " + strings.Join(words, " ") + " "
	for _, kw := range c.Keywords {
		if strings.Contains(padded, " "+strings.ToLower(kw)+" ") {
			return true
		}
	}
	return false
}

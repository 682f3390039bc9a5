package classify

import (
	"context"
	"strings"

	"github.com/spec-kit/smart-support/internal/domain"
)

// keywordRule maps problem-text substrings to a category. Rules are
// checked in order and the first hit wins.
type keywordRule struct {
	words    []string
	category domain.TicketCategory
}

var keywordRules = []keywordRule{
	{words: []string{"login", "log in", "signin", "sign in", "password"}, category: domain.CategoryLogin},
	{words: []string{"payment", "card", "charge", "billing"}, category: domain.CategoryPayment},
	{words: []string{"refund"}, category: domain.CategoryRefund},
	{words: []string{"error", "bug", "crash"}, category: domain.CategoryAppBug},
	{words: []string{"battery", "hang", "slow", "lag"}, category: domain.CategoryPerformance},
}

// KeywordClassifier categorizes by substring matching. It is the default
// backend and the fallback for the hosted-model backend.
type KeywordClassifier struct{}

// NewKeywordClassifier creates a keyword-based classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Classify never returns an error.
func (c *KeywordClassifier) Classify(_ context.Context, problem string) (domain.TicketCategory, error) {
	lowered := strings.ToLower(problem)
	for _, rule := range keywordRules {
		for _, word := range rule.words {
			if strings.Contains(lowered, word) {
				return rule.category, nil
			}
		}
	}
	return domain.CategoryOther, nil
}

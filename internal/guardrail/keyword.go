package guardrail

import (
	"context"
	"strings"
)

// KeywordFilter blocks text containing any of a fixed set of terms. It backs
// local and mock deployments where no Bedrock guardrail is configured.
type KeywordFilter struct {
	terms      []string
	substitute string
}

var _ Filter = (*KeywordFilter)(nil)

// DefaultBlockedTerms is a small starter list for local runs.
var DefaultBlockedTerms = []string{"kill", "bomb", "credit card number", "social security number"}

func NewKeywordFilter(terms []string, substitute string) *KeywordFilter {
	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(strings.ToLower(t)); t != "" {
			lowered = append(lowered, t)
		}
	}
	if substitute == "" {
		substitute = "Sorry, I can't help with that. Is there anything else about the event I can answer?"
	}
	return &KeywordFilter{terms: lowered, substitute: substitute}
}

func (f *KeywordFilter) Apply(_ context.Context, text string, source Source) (Verdict, error) {
	if err := checkSource(source); err != nil {
		return Verdict{}, err
	}
	lower := strings.ToLower(text)
	for _, t := range f.terms {
		if strings.Contains(lower, t) {
			return Verdict{Safe: false, Substitute: f.substitute}, nil
		}
	}
	return Verdict{Safe: true}, nil
}

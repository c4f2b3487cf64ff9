package agent

import (
	"context"
	"strings"

	"github.com/unclebandit/smsleopard-agent/internal/model"
)

// MockRuntime answers without calling a model. It backs local runs and
// demos where no provider credentials exist.
type MockRuntime struct{}

func NewMockRuntime() *MockRuntime {
	return &MockRuntime{}
}

var _ Runtime = (*MockRuntime)(nil)

var (
	handoffWords  = []string{"human", "person", "agent", "representative", "buy", "purchase"}
	positiveWords = []string{"thanks", "thank you", "great", "awesome", "love", "yes"}
	negativeWords = []string{"stop", "angry", "bad", "terrible", "hate", "no "}
)

func (m *MockRuntime) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	usage := req.usage()
	if err := usage.checkLimit(req.Limits); err != nil {
		return nil, err
	}
	usage.Requests++

	lower := strings.ToLower(req.Prompt)
	out := model.AgentResponse{
		ResponseText:  "Thanks for reaching out! Happy to help with any questions about the event.",
		UserSentiment: model.SentimentPtr(mockSentiment(lower)),
	}
	if containsAny(lower, handoffWords) {
		out.ResponseText = "Great, I'll have a teammate reach out to you shortly."
		out.ShouldHandoff = true
		out.HandoffReason = model.StringPtr("Customer asked to speak with a person")
	}

	usage.InputTokens += estimateTokens(req.Prompt) + historyTokens(req.History)
	usage.OutputTokens += estimateTokens(out.ResponseText)
	return &RunResult{Output: out, Usage: *usage}, nil
}

func mockSentiment(lower string) model.Sentiment {
	switch {
	case containsAny(lower, negativeWords):
		return model.SentimentNegative
	case containsAny(lower, positiveWords):
		return model.SentimentPositive
	default:
		return model.SentimentNeutral
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func estimateTokens(s string) int {
	return len(s)/4 + 1
}

func historyTokens(turns []Turn) int {
	n := 0
	for _, t := range turns {
		n += estimateTokens(t.Text)
	}
	return n
}

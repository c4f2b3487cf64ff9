// Package guardrail classifies text as safe or not before it reaches, or
// leaves, the sales agent.
package guardrail

import (
	"context"
	"fmt"
)

// Source says which side of the conversation the text came from.
type Source string

const (
	SourceInput  Source = "INPUT"
	SourceOutput Source = "OUTPUT"
)

// Verdict is the result of one check. Substitute is the text to send instead
// when Safe is false.
type Verdict struct {
	Safe       bool
	Substitute string
}

// Filter is the safety-filter capability consumed by the pipeline.
type Filter interface {
	Apply(ctx context.Context, text string, source Source) (Verdict, error)
}

// FallbackSubstitute is sent when the filter intervened but returned no text.
const FallbackSubstitute = "I'm experiencing high demand right now. Please try again in a few moments. Thanks for your patience!"

func checkSource(source Source) error {
	if source != SourceInput && source != SourceOutput {
		return fmt.Errorf("guardrail source must be %s or %s, got %q", SourceInput, SourceOutput, source)
	}
	return nil
}

package agent

import "fmt"

// StructuralValidationError means the model did not produce a usable
// AgentResponse after the allowed corrective turns.
type StructuralValidationError struct {
	Reason string
	Raw    string
}

func (e *StructuralValidationError) Error() string {
	return fmt.Sprintf("agent output failed validation: %s", e.Reason)
}

// UsageLimitExceededError means a run needed more model requests than its
// UsageLimits allow.
type UsageLimitExceededError struct {
	Limit    int
	Requests int
}

func (e *UsageLimitExceededError) Error() string {
	return fmt.Sprintf("request limit of %d exceeded after %d requests", e.Limit, e.Requests)
}

func (u Usage) checkLimit(l UsageLimits) error {
	if l.RequestLimit > 0 && u.Requests >= l.RequestLimit {
		return &UsageLimitExceededError{Limit: l.RequestLimit, Requests: u.Requests}
	}
	return nil
}

// internal/model/agent_response.go
package model

// AgentResponse is the structured reply produced by the agent runtime.
type AgentResponse struct {
	ResponseText  string     `json:"response_text"`
	ShouldHandoff bool       `json:"should_handoff"`
	HandoffReason *string    `json:"handoff_reason,omitempty"`
	UserSentiment *Sentiment `json:"user_sentiment,omitempty"`
}

// AgentResponseWrapper is what the pipeline hands to the outbound queue.
// Token counts, GuardrailsIntervened and CampaignID are always serialized.
type AgentResponseWrapper struct {
	AgentResponse
	GuardrailsIntervened bool    `json:"guardrails_intervened"`
	RequestTokens        int     `json:"request_tokens"`
	ResponseTokens       int     `json:"response_tokens"`
	CampaignID           *string `json:"campaign_id"`
}

func StringPtr(s string) *string { return &s }

func BoolPtr(b bool) *bool { return &b }

func SentimentPtr(s Sentiment) *Sentiment { return &s }

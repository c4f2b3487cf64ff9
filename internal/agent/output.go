package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/unclebandit/smsleopard-agent/internal/model"
)

// OutputToolName is the tool the model calls to hand back its reply.
const OutputToolName = "final_result"

const outputToolDescription = "The final response which ends this conversation turn"

// outputSchema is the JSON schema of model.AgentResponse.
var outputSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"response_text": map[string]any{
			"type":        "string",
			"description": "concise SMS-optimized message to send to user (under 160 characters)",
		},
		"should_handoff": map[string]any{
			"type":        "boolean",
			"description": "true when interaction with AI agent is complete and a human is taking over",
		},
		"handoff_reason": map[string]any{
			"type":        "string",
			"description": "reason that human handoff is needed when should_handoff is true",
		},
		"user_sentiment": map[string]any{
			"type":        "string",
			"enum":        []string{"positive", "neutral", "negative"},
			"description": "sentiment of the user's message",
		},
	},
	"required": []string{"response_text", "should_handoff"},
}

type rawOutput struct {
	ResponseText  *string `json:"response_text"`
	ShouldHandoff *bool   `json:"should_handoff"`
	HandoffReason *string `json:"handoff_reason"`
	UserSentiment *string `json:"user_sentiment"`
}

// DecodeOutput parses and validates the arguments of a final_result call.
func DecodeOutput(raw []byte) (model.AgentResponse, error) {
	var out rawOutput
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return model.AgentResponse{}, &StructuralValidationError{Reason: fmt.Sprintf("invalid json: %v", err), Raw: string(raw)}
	}

	fail := func(reason string) (model.AgentResponse, error) {
		return model.AgentResponse{}, &StructuralValidationError{Reason: reason, Raw: string(raw)}
	}

	if out.ResponseText == nil || strings.TrimSpace(*out.ResponseText) == "" {
		return fail("response_text is required")
	}
	if out.ShouldHandoff == nil {
		return fail("should_handoff is required")
	}

	resp := model.AgentResponse{
		ResponseText:  *out.ResponseText,
		ShouldHandoff: *out.ShouldHandoff,
	}

	if resp.ShouldHandoff {
		if out.HandoffReason == nil || strings.TrimSpace(*out.HandoffReason) == "" {
			return fail("handoff_reason is required when should_handoff is true")
		}
		resp.HandoffReason = out.HandoffReason
	}

	if out.UserSentiment != nil && *out.UserSentiment != "" {
		s := model.Sentiment(strings.ToLower(*out.UserSentiment))
		if !s.Valid() {
			return fail(fmt.Sprintf("user_sentiment %q is not one of positive, neutral, negative", *out.UserSentiment))
		}
		resp.UserSentiment = &s
	}

	return resp, nil
}

func correctionMessage(err error) string {
	return fmt.Sprintf("%v. Call %s again with valid arguments.", err, OutputToolName)
}

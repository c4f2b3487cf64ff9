// internal/model/chat_message.go
package model

import "time"

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type ResponseType string

const (
	ResponseTypeAutomated ResponseType = "automated"
	ResponseTypeAIAgent   ResponseType = "ai_agent"
	ResponseTypeManual    ResponseType = "manual"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether s is one of the known sentiments.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

type MessageStatus string

const (
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusFailed    MessageStatus = "failed"
)

// ChatMessage is one entry of the append-only conversation log.
type ChatMessage struct {
	ID                   string         `db:"id" json:"id"`
	PhoneNumber          string         `db:"phone_number" json:"phone_number"`
	CampaignID           *string        `db:"campaign_id" json:"campaign_id,omitempty"`
	Message              string         `db:"message" json:"message"`
	Direction            Direction      `db:"direction" json:"direction"`
	Timestamp            time.Time      `db:"timestamp" json:"timestamp"`
	ResponseType         *ResponseType  `db:"response_type" json:"response_type,omitempty"`
	GuardrailsIntervened *bool          `db:"guardrails_intervened" json:"guardrails_intervened,omitempty"`
	UserSentiment        *Sentiment     `db:"user_sentiment" json:"user_sentiment,omitempty"`
	ShouldHandoff        *bool          `db:"should_handoff" json:"should_handoff,omitempty"`
	Status               *MessageStatus `db:"status" json:"status,omitempty"`
	SentAt               *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
	ExternalMessageID    *string        `db:"external_message_id" json:"external_message_id,omitempty"`
	ErrorMessage         *string        `db:"error_message" json:"error_message,omitempty"`
}

// Flagged reports whether the safety filter intervened on this message.
func (m *ChatMessage) Flagged() bool {
	return m.GuardrailsIntervened != nil && *m.GuardrailsIntervened
}

// MessageAttributes is the allow-list of fields that may change after a
// message is stored. Nil fields are left untouched.
type MessageAttributes struct {
	GuardrailsIntervened *bool
	UserSentiment        *Sentiment
}

// Empty reports whether no attribute is set.
func (a MessageAttributes) Empty() bool {
	return a.GuardrailsIntervened == nil && a.UserSentiment == nil
}

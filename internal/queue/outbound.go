package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/unclebandit/smsleopard-agent/internal/model"
	"github.com/unclebandit/smsleopard-agent/internal/phone"
)

// Outbound message attributes.
const (
	AttrMessageType       = "messageType"
	AttrCampaignID        = "campaignId"
	MessageTypeAgentReply = "agent_response"
)

// OutboundBody is the JSON body of an outbound_sms message.
type OutboundBody struct {
	PhoneNumber   string                      `json:"phoneNumber"`
	AgentResponse *model.AgentResponseWrapper `json:"agentResponse"`
	CampaignID    *string                     `json:"campaignId"`
	Timestamp     string                      `json:"timestamp"`
}

// OutboundPublisher hands agent replies to the SMS sender.
type OutboundPublisher struct {
	Queue  Queue
	Logger *slog.Logger
	Now    func() time.Time
}

func NewOutboundPublisher(q Queue, logger *slog.Logger) *OutboundPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboundPublisher{Queue: q, Logger: logger, Now: time.Now}
}

// Send queues resp for phoneNumber. It reports whether the message was
// queued and the RFC 3339 UTC time the attempt was made.
func (p *OutboundPublisher) Send(ctx context.Context, phoneNumber string, resp *model.AgentResponseWrapper) (bool, string) {
	ts := p.Now().UTC().Format(time.RFC3339)
	if resp == nil {
		p.Logger.Error("agent response is nil, not sending to outbound queue", "phone", phone.Mask(phoneNumber))
		return false, ts
	}

	body, err := json.Marshal(OutboundBody{
		PhoneNumber:   phoneNumber,
		AgentResponse: resp,
		CampaignID:    resp.CampaignID,
		Timestamp:     ts,
	})
	if err != nil {
		p.Logger.Error("failed to encode outbound message", "phone", phone.Mask(phoneNumber), "error", err)
		return false, ts
	}

	attrs := map[string]string{AttrMessageType: MessageTypeAgentReply}
	if resp.CampaignID != nil && *resp.CampaignID != "" {
		attrs[AttrCampaignID] = *resp.CampaignID
	}

	msg := Message{Body: body, Attributes: attrs}
	if err := p.Queue.Publish(ctx, TopicOutbound, msg); err != nil {
		p.Logger.Error("failed to queue outbound message", "phone", phone.Mask(phoneNumber), "error", err)
		return false, ts
	}

	p.Logger.Info("message queued", "phone", phone.Mask(phoneNumber), "topic", TopicOutbound)
	return true, ts
}

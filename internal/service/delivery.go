package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/unclebandit/smsleopard-agent/internal/model"
	"github.com/unclebandit/smsleopard-agent/internal/phone"
	"github.com/unclebandit/smsleopard-agent/internal/queue"
)

// Delivery consumes queue.TopicOutbound when no SMS gateway is attached.
// Each reply is logged as sent and appended to the conversation so later
// turns see it as history.
type Delivery struct {
	Messages IntakeMessageStore
	Logger   *slog.Logger
	Now      func() time.Time
}

func NewDelivery(messages IntakeMessageStore, logger *slog.Logger) *Delivery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Delivery{Messages: messages, Logger: logger, Now: time.Now}
}

// Handle is the queue.Handler for queue.TopicOutbound.
func (d *Delivery) Handle(ctx context.Context, msg queue.Message) error {
	var body queue.OutboundBody
	if err := json.Unmarshal(msg.Body, &body); err != nil || body.AgentResponse == nil {
		d.Logger.Error("invalid outbound message", "message_id", msg.ID, "error", err)
		return nil
	}

	resp := body.AgentResponse
	sentAt := d.Now().UTC()
	record := &model.ChatMessage{
		PhoneNumber:          body.PhoneNumber,
		CampaignID:           body.CampaignID,
		Message:              resp.ResponseText,
		Direction:            model.DirectionOutbound,
		Timestamp:            sentAt,
		ResponseType:         ptr(model.ResponseTypeAIAgent),
		GuardrailsIntervened: model.BoolPtr(resp.GuardrailsIntervened),
		ShouldHandoff:        model.BoolPtr(resp.ShouldHandoff),
		Status:               ptr(model.MessageStatusSent),
		SentAt:               &sentAt,
	}
	if err := d.Messages.Add(ctx, record); err != nil {
		return fmt.Errorf("store outbound message: %w", err)
	}

	d.Logger.Info("sms sent", "phone", phone.Mask(body.PhoneNumber), "message_id", record.ID, "campaign_id", deref(body.CampaignID))
	return nil
}

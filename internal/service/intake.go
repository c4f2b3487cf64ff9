// internal/service/intake.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	appErrors "github.com/unclebandit/smsleopard-agent/internal/errors"
	"github.com/unclebandit/smsleopard-agent/internal/model"
	"github.com/unclebandit/smsleopard-agent/internal/phone"
	"github.com/unclebandit/smsleopard-agent/internal/queue"
)

// InboundRequest asks the agent to answer a stored inbound message.
type InboundRequest struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
	MessageID   string `json:"message_id"`
}

// Validate reports the first missing required field.
func (r InboundRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.PhoneNumber) == "":
		return appErrors.NewMissingField("phone_number")
	case strings.TrimSpace(r.Message) == "":
		return appErrors.NewMissingField("message")
	case strings.TrimSpace(r.MessageID) == "":
		return appErrors.NewMissingField("message_id")
	}
	return nil
}

// InboundSMS is a message received from the carrier.
type InboundSMS struct {
	FromPhoneNumber   string `json:"from_phone_number"`
	ToPhoneNumber     string `json:"to_phone_number,omitempty"`
	MessageBody       string `json:"message_body"`
	ExternalMessageID string `json:"external_message_id,omitempty"`
}

// IntakeCustomerStore is the customer access intake needs.
type IntakeCustomerStore interface {
	GetByPhone(ctx context.Context, phoneNumber string) (*model.Customer, error)
	Create(ctx context.Context, c *model.Customer) error
	UpdateStatus(ctx context.Context, phoneNumber string, status model.CustomerStatus) error
}

// IntakeMessageStore is the conversation access intake needs.
type IntakeMessageStore interface {
	Add(ctx context.Context, msg *model.ChatMessage) error
}

// Intake records inbound SMS and queues them for the agent.
type Intake struct {
	Customers IntakeCustomerStore
	Messages  IntakeMessageStore
	Queue     queue.Queue
	Logger    *slog.Logger
}

func NewIntake(customers IntakeCustomerStore, messages IntakeMessageStore, q queue.Queue, logger *slog.Logger) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{Customers: customers, Messages: messages, Queue: q, Logger: logger}
}

// Receive stores sms against its sender and publishes an InboundRequest on
// queue.TopicInbound. Unknown senders are created waiting for a human. A
// sender an operator is talking to is flagged as needing a response again.
//
// A failure to publish is logged, not returned: the message is already
// stored and visible to operators.
func (in *Intake) Receive(ctx context.Context, sms InboundSMS) (*model.ChatMessage, error) {
	if strings.TrimSpace(sms.FromPhoneNumber) == "" {
		return nil, appErrors.NewMissingField("from_phone_number")
	}
	if !phone.Validate(sms.FromPhoneNumber) {
		return nil, appErrors.NewInvalidPhoneNumber(sms.FromPhoneNumber)
	}
	normalized := phone.Normalize(sms.FromPhoneNumber)
	log := in.Logger.With("phone", phone.Mask(normalized))

	customer, err := in.resolveCustomer(ctx, log, normalized)
	if err != nil {
		return nil, err
	}

	msg := &model.ChatMessage{
		PhoneNumber: normalized,
		CampaignID:  customer.MostRecentCampaignID,
		Message:     sms.MessageBody,
		Direction:   model.DirectionInbound,
	}
	if sms.ExternalMessageID != "" {
		msg.ExternalMessageID = model.StringPtr(sms.ExternalMessageID)
	}
	if err := in.Messages.Add(ctx, msg); err != nil {
		return nil, fmt.Errorf("store inbound message: %w", err)
	}
	log.Info("stored inbound message", "message_id", msg.ID, "campaign_id", customer.CampaignID())

	body, err := json.Marshal(InboundRequest{PhoneNumber: normalized, Message: msg.Message, MessageID: msg.ID})
	if err != nil {
		return nil, err
	}
	if err := in.Queue.Publish(ctx, queue.TopicInbound, queue.Message{Body: body}); err != nil {
		log.Error("failed to trigger agent", "message_id", msg.ID, "error", err)
	}
	return msg, nil
}

func (in *Intake) resolveCustomer(ctx context.Context, log *slog.Logger, phoneNumber string) (*model.Customer, error) {
	customer, err := in.Customers.GetByPhone(ctx, phoneNumber)
	var notFound *appErrors.ErrCustomerNotFound
	switch {
	case errors.As(err, &notFound):
		customer = &model.Customer{
			PhoneNumber: phoneNumber,
			FirstName:   "Unknown",
			LastName:    "Customer",
			Status:      model.CustomerStatusNeedsResponse,
		}
		if err := in.Customers.Create(ctx, customer); err != nil {
			return nil, fmt.Errorf("create customer: %w", err)
		}
		log.Info("created new customer record")
		return customer, nil

	case err != nil:
		return nil, fmt.Errorf("get customer: %w", err)
	}

	if customer.Status == model.CustomerStatusAgentResponding {
		if err := in.Customers.UpdateStatus(ctx, phoneNumber, model.CustomerStatusNeedsResponse); err != nil {
			return nil, fmt.Errorf("update customer status: %w", err)
		}
		customer.Status = model.CustomerStatusNeedsResponse
		log.Info("updated customer status to needs_response")
	}
	return customer, nil
}

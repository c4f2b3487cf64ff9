// internal/service/pipeline.go
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/unclebandit/smsleopard-agent/internal/agent"
	appErrors "github.com/unclebandit/smsleopard-agent/internal/errors"
	"github.com/unclebandit/smsleopard-agent/internal/guardrail"
	"github.com/unclebandit/smsleopard-agent/internal/model"
	"github.com/unclebandit/smsleopard-agent/internal/phone"
	"github.com/unclebandit/smsleopard-agent/internal/retry"
)

// Fallback replies sent when the agent could not produce one.
const (
	HighDemandResponse          = "I'm experiencing high demand right now. Please try again in a few moments. Thanks for your patience!"
	TechnicalDifficultyResponse = "I apologize, but I'm experiencing technical difficulties. Please try again later."
)

// DefaultRequestLimit caps model requests per message.
const DefaultRequestLimit = 50

// CustomerStore is the customer access the pipeline needs.
type CustomerStore interface {
	GetOrCreate(ctx context.Context, phoneNumber string) (*model.Customer, error)
	UpdateStatus(ctx context.Context, phoneNumber string, status model.CustomerStatus) error
}

// MessageStore is the conversation access the pipeline needs.
type MessageStore interface {
	ListConversation(ctx context.Context, phoneNumber, campaignID string) ([]*model.ChatMessage, error)
	UpdateAttributes(ctx context.Context, id string, attrs model.MessageAttributes) error
}

// Pipeline turns one inbound customer message into the agent's reply.
type Pipeline struct {
	Customers CustomerStore
	Messages  MessageStore
	Filter    guardrail.Filter
	Agent     agent.Runtime
	Retry     retry.Policy
	Limits    agent.UsageLimits
	Logger    *slog.Logger
}

func NewPipeline(customers CustomerStore, messages MessageStore, filter guardrail.Filter, runtime agent.Runtime, policy retry.Policy, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.Logger == nil {
		policy.Logger = logger
	}
	return &Pipeline{
		Customers: customers,
		Messages:  messages,
		Filter:    filter,
		Agent:     runtime,
		Retry:     policy,
		Limits:    agent.UsageLimits{RequestLimit: DefaultRequestLimit},
		Logger:    logger,
	}
}

// ProcessMessage answers message from phoneNumber. messageID is the stored
// inbound ChatMessage and receives the guardrail and sentiment annotations.
//
// It returns ErrInvalidPhoneNumber for a malformed number and (nil, nil) when
// the agent must not answer. Every other failure is turned into a fallback
// reply, so any other result is a non-nil response and a nil error.
func (p *Pipeline) ProcessMessage(ctx context.Context, phoneNumber, message, messageID string) (resp *model.AgentResponseWrapper, err error) {
	if !phone.Validate(phoneNumber) {
		p.Logger.Error("invalid phone number", "phone", phone.Mask(phoneNumber))
		return nil, appErrors.NewInvalidPhoneNumber(phoneNumber)
	}
	normalized := phone.Normalize(phoneNumber)
	log := p.Logger.With("phone", phone.Mask(normalized), "message_id", messageID)

	var campaignID *string
	defer func() {
		if r := recover(); r != nil {
			log.Error("message processing panicked", "panic", r)
			resp, err = p.fallback(log, fmt.Errorf("panic: %v", r), campaignID), nil
		}
	}()

	resp, err = p.process(ctx, log, normalized, message, messageID, &campaignID)
	if err != nil {
		return p.fallback(log, err, campaignID), nil
	}
	return resp, nil
}

func (p *Pipeline) process(ctx context.Context, log *slog.Logger, phoneNumber, message, messageID string, campaignID **string) (*model.AgentResponseWrapper, error) {
	customer, err := p.Customers.GetOrCreate(ctx, phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("get or create customer: %w", err)
	}

	if customer.Status != model.CustomerStatusAutomated {
		log.Info("customer is not automated, not responding", "status", customer.Status)
		return nil, nil
	}

	if customer.CampaignID() == "" {
		log.Info("customer has no campaign, skipping agent")
		return nil, nil
	}
	*campaignID = model.StringPtr(customer.CampaignID())
	log = log.With("campaign_id", customer.CampaignID())

	verdict, err := p.Filter.Apply(ctx, message, guardrail.SourceInput)
	if err != nil {
		return nil, fmt.Errorf("apply guardrail: %w", err)
	}
	if !verdict.Safe {
		log.Info("guardrail intervened on inbound message")
		if err := p.annotate(ctx, messageID, model.MessageAttributes{
			GuardrailsIntervened: model.BoolPtr(true),
			UserSentiment:        model.SentimentPtr(model.SentimentNegative),
		}); err != nil {
			return nil, err
		}
		return &model.AgentResponseWrapper{
			AgentResponse:        model.AgentResponse{ResponseText: verdict.Substitute},
			GuardrailsIntervened: true,
			CampaignID:           *campaignID,
		}, nil
	}

	conversation, err := p.Messages.ListConversation(ctx, phoneNumber, customer.CampaignID())
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}

	req := agent.RunRequest{
		Prompt: message,
		Context: agent.Context{
			PhoneNumber:  phoneNumber,
			CustomerName: customer.DisplayName(),
			CampaignID:   customer.CampaignID(),
		},
		History: agent.HistoryFromMessages(conversation),
		Limits:  p.Limits,
		Usage:   &agent.Usage{},
	}
	result, err := retry.Do(ctx, p.Retry, func(ctx context.Context) (*agent.RunResult, error) {
		return p.Agent.Run(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("run agent: %w", err)
	}
	out := result.Output

	if out.ShouldHandoff {
		if err := p.Customers.UpdateStatus(ctx, phoneNumber, model.CustomerStatusNeedsResponse); err != nil {
			return nil, fmt.Errorf("hand off customer: %w", err)
		}
		log.Warn("handoff triggered", "customer", customer.DisplayName(), "reason", deref(out.HandoffReason))
	}

	if out.UserSentiment != nil {
		if err := p.annotate(ctx, messageID, model.MessageAttributes{UserSentiment: out.UserSentiment}); err != nil {
			return nil, err
		}
	}

	return &model.AgentResponseWrapper{
		AgentResponse:  out,
		RequestTokens:  result.Usage.InputTokens,
		ResponseTokens: result.Usage.OutputTokens,
		CampaignID:     *campaignID,
	}, nil
}

func (p *Pipeline) annotate(ctx context.Context, messageID string, attrs model.MessageAttributes) error {
	if messageID == "" {
		p.Logger.Warn("no message id, skipping annotation")
		return nil
	}
	if err := p.Messages.UpdateAttributes(ctx, messageID, attrs); err != nil {
		return fmt.Errorf("annotate message: %w", err)
	}
	return nil
}

// fallback builds the reply sent when processing failed.
func (p *Pipeline) fallback(log *slog.Logger, err error, campaignID *string) *model.AgentResponseWrapper {
	text := TechnicalDifficultyResponse
	throttled := retry.IsThrottling(err)
	if throttled {
		text = HighDemandResponse
		log.Error("agent throttled after retries", "error", err, "is_throttling", true)
	} else {
		log.Error("message processing failed", "error", err, "is_throttling", false)
	}
	return &model.AgentResponseWrapper{
		AgentResponse: model.AgentResponse{ResponseText: text},
		CampaignID:    campaignID,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

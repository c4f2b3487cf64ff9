package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	appErrors "github.com/unclebandit/smsleopard-agent/internal/errors"
	"github.com/unclebandit/smsleopard-agent/internal/model"
	"github.com/unclebandit/smsleopard-agent/internal/phone"
	"github.com/unclebandit/smsleopard-agent/internal/queue"
	"github.com/unclebandit/smsleopard-agent/internal/retry"
)

// DefaultSendRetries is how many more times a reply refused by the outbound
// queue is published before it is given up.
const DefaultSendRetries = 3

var errReplyNotQueued = errors.New("reply was not queued")

// MessageProcessor defines the method the worker needs from the pipeline
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, phoneNumber, message, messageID string) (*model.AgentResponseWrapper, error)
}

// ReplySender queues an agent reply for delivery.
type ReplySender interface {
	Send(ctx context.Context, phoneNumber string, resp *model.AgentResponseWrapper) (bool, string)
}

// TriggerResult reports what happened to one inbound request.
type TriggerResult struct {
	Error           string                      `json:"error,omitempty"`
	PhoneNumber     string                      `json:"phone_number"`
	IncomingMessage string                      `json:"incoming_message"`
	AIResponse      *model.AgentResponseWrapper `json:"ai_response"`
	SMSQueued       bool                        `json:"sms_queued"`
	Timestamp       string                      `json:"timestamp"`
}

// SystemErrorResponse is sent when the pipeline itself could not run.
func SystemErrorResponse() *model.AgentResponseWrapper {
	return &model.AgentResponseWrapper{AgentResponse: model.AgentResponse{
		ResponseText:  TechnicalDifficultyResponse,
		ShouldHandoff: true,
		HandoffReason: model.StringPtr("System error"),
	}}
}

// Worker answers inbound requests and queues the replies.
type Worker struct {
	Processor MessageProcessor
	Sender    ReplySender
	// SendRetry republishes a computed reply. The pipeline never runs twice
	// for one request.
	SendRetry retry.Policy
	Logger    *slog.Logger
}

// Constructor
func NewWorker(processor MessageProcessor, sender ReplySender, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		Processor: processor,
		Sender:    sender,
		SendRetry: SendRetryPolicy(logger),
		Logger:    logger,
	}
}

// SendRetryPolicy retries every publish failure with a one second base delay.
func SendRetryPolicy(logger *slog.Logger) retry.Policy {
	return retry.Policy{
		MaxRetries: DefaultSendRetries,
		BaseDelay:  time.Second,
		Classify:   func(error) bool { return true },
		Logger:     logger,
	}
}

// Respond runs req through the pipeline and queues the reply. Missing fields
// and invalid phone numbers are returned before anything is sent. Any other
// error means the pipeline could not run; the customer is then sent
// SystemErrorResponse and the error is returned alongside the result.
func (w *Worker) Respond(ctx context.Context, req InboundRequest) (*TriggerResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result := &TriggerResult{PhoneNumber: req.PhoneNumber, IncomingMessage: req.Message}
	recipient := phone.Normalize(req.PhoneNumber)

	resp, err := w.Processor.ProcessMessage(ctx, req.PhoneNumber, req.Message, req.MessageID)
	var invalid *appErrors.ErrInvalidPhoneNumber
	if errors.As(err, &invalid) {
		return nil, err
	}
	if err != nil {
		w.Logger.Error("message processing error", "phone", phone.Mask(recipient), "error", err)
		result.Error = fmt.Sprintf("Message processing failed: %v", err)
		resp = SystemErrorResponse()
	}

	result.AIResponse = resp
	if resp != nil {
		result.SMSQueued, result.Timestamp = w.send(ctx, recipient, resp)
	} else {
		w.Logger.Info("no agent response for message", "phone", phone.Mask(recipient), "message_id", req.MessageID)
		result.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	return result, err
}

// send publishes resp, retrying only the publish under w.SendRetry.
func (w *Worker) send(ctx context.Context, recipient string, resp *model.AgentResponseWrapper) (bool, string) {
	var ts string
	_, err := retry.Do(ctx, w.SendRetry, func(ctx context.Context) (struct{}, error) {
		var ok bool
		ok, ts = w.Sender.Send(ctx, recipient, resp)
		if !ok {
			return struct{}{}, errReplyNotQueued
		}
		return struct{}{}, nil
	})
	if err != nil {
		w.Logger.Error("giving up on reply", "phone", phone.Mask(recipient), "error", err)
		return false, ts
	}
	return true, ts
}

// Handle is the queue.Handler for queue.TopicInbound. It never asks the
// queue to redeliver: malformed jobs are dropped, and a reply the outbound
// queue kept refusing is logged by Respond.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	var req InboundRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		w.Logger.Error("invalid job", "message_id", msg.ID, "error", err)
		return nil
	}

	result, err := w.Respond(ctx, req)
	if result == nil {
		w.Logger.Error("rejected inbound request", "message_id", req.MessageID, "error", err)
		return nil
	}
	if result.AIResponse != nil && !result.SMSQueued {
		w.Logger.Error("reply dropped", "message_id", req.MessageID)
	}
	return nil
}

// Start subscribes to inbound jobs and blocks until ctx is done.
func (w *Worker) Start(ctx context.Context, q queue.Queue) error {
	if err := q.Subscribe(ctx, queue.TopicInbound, w.Handle); err != nil {
		return fmt.Errorf("subscribe to %s: %w", queue.TopicInbound, err)
	}
	w.Logger.Info("worker running, waiting for messages", "topic", queue.TopicInbound)
	<-ctx.Done()
	return nil
}

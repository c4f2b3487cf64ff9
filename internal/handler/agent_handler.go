// internal/handler/agent_handler.go
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/smsleopard-agent/internal/errors"
	"github.com/unclebandit/smsleopard-agent/internal/model"
	"github.com/unclebandit/smsleopard-agent/internal/service"
)

// Responder answers a stored inbound message.
type Responder interface {
	Respond(ctx context.Context, req service.InboundRequest) (*service.TriggerResult, error)
}

// Receiver records an SMS from the carrier.
type Receiver interface {
	Receive(ctx context.Context, sms service.InboundSMS) (*model.ChatMessage, error)
}

// AgentHandler holds the dependencies for the message-facing HTTP handlers
type AgentHandler struct {
	Worker Responder
	Intake Receiver
	Logger *slog.Logger
}

// NewAgentHandler creates a new AgentHandler
func NewAgentHandler(worker Responder, intake Receiver, logger *slog.Logger) *AgentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AgentHandler{Worker: worker, Intake: intake, Logger: logger}
}

// Routes registers the handlers on r.
func (h *AgentHandler) Routes(r chi.Router) {
	r.Get("/healthz", h.HealthHandler)
	r.Post("/agent/messages", h.TriggerHandler)
	r.Post("/sms/inbound", h.InboundSMSHandler)
}

func (h *AgentHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// TriggerHandler runs one stored inbound message through the agent and
// returns what was queued for the customer.
func (h *AgentHandler) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	var req service.InboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.Worker.Respond(r.Context(), req)
	if result == nil {
		if isClientError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.Logger.Error("trigger failed", "message_id", req.MessageID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// InboundSMSHandler stores an SMS received from the carrier and queues it
// for the agent.
func (h *AgentHandler) InboundSMSHandler(w http.ResponseWriter, r *http.Request) {
	var sms service.InboundSMS
	if err := json.NewDecoder(r.Body).Decode(&sms); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	msg, err := h.Intake.Receive(r.Context(), sms)
	if err != nil {
		if isClientError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.Logger.Error("failed to receive sms", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "received",
		"message_id": msg.ID,
	})
}

func isClientError(err error) bool {
	var missing *appErrors.ErrMissingField
	var invalid *appErrors.ErrInvalidPhoneNumber
	return errors.As(err, &missing) || errors.As(err, &invalid)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

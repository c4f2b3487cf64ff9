// internal/controller/operator_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/smsleopard-agent/internal/errors"
	"github.com/unclebandit/smsleopard-agent/internal/model"
	"github.com/unclebandit/smsleopard-agent/internal/service"
)

// OperatorController exposes what a human operator needs to take over or
// hand back a conversation.
type OperatorController struct {
	ConversationService *service.ConversationService
	Logger              *slog.Logger
}

// Routes registers the operator endpoints on r.
func (c *OperatorController) Routes(r chi.Router) {
	r.Get("/campaigns", c.ListCampaigns)
	r.Get("/campaigns/{id}", c.GetCampaign)
	r.Post("/campaigns/{id}/enroll", c.EnrollCustomer)
	r.Get("/customers", c.ListCustomers)
	r.Patch("/customers/{phone}/status", c.SetCustomerStatus)
	r.Get("/customers/{phone}/messages", c.Conversation)
}

func (c *OperatorController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	campaigns, pagination, err := c.ConversationService.ListCampaigns(r.Context(), page, pageSize)
	if err != nil {
		c.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *OperatorController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.ConversationService.GetCampaign(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		c.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// EnrollCustomer attaches a contact to the campaign and returns the opening
// message, if the campaign has one.
func (c *OperatorController) EnrollCustomer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PhoneNumber string `json:"phone_number"`
		FirstName   string `json:"first_name"`
		LastName    string `json:"last_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	opener, err := c.ConversationService.EnrollCustomer(r.Context(), service.EnrollRequest{
		PhoneNumber: body.PhoneNumber,
		FirstName:   body.FirstName,
		LastName:    body.LastName,
		CampaignID:  chi.URLParam(r, "id"),
	})
	if err != nil {
		c.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"opener": opener})
}

// ListCustomers defaults to the conversations waiting for a human.
func (c *OperatorController) ListCustomers(w http.ResponseWriter, r *http.Request) {
	status := model.CustomerStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = model.CustomerStatusNeedsResponse
	}

	customers, err := c.ConversationService.ListCustomers(r.Context(), status)
	if err != nil {
		c.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": customers})
}

func (c *OperatorController) SetCustomerStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status model.CustomerStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	customer, err := c.ConversationService.SetCustomerStatus(r.Context(), chi.URLParam(r, "phone"), body.Status)
	if err != nil {
		c.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

func (c *OperatorController) Conversation(w http.ResponseWriter, r *http.Request) {
	msgs, err := c.ConversationService.Conversation(r.Context(), chi.URLParam(r, "phone"), r.URL.Query().Get("campaign_id"))
	if err != nil {
		c.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": msgs})
}

func (c *OperatorController) fail(w http.ResponseWriter, err error) {
	var (
		invalidPhone     *appErrors.ErrInvalidPhoneNumber
		invalidStatus    *appErrors.ErrInvalidStatus
		customerNotFound *appErrors.ErrCustomerNotFound
		campaignNotFound *appErrors.ErrCampaignNotFound
	)
	switch {
	case errors.As(err, &invalidPhone), errors.As(err, &invalidStatus):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &customerNotFound), errors.As(err, &campaignNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		logger := c.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("operator request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// internal/service/conversation_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	appErrors "github.com/unclebandit/smsleopard-agent/internal/errors"
	"github.com/unclebandit/smsleopard-agent/internal/model"
	"github.com/unclebandit/smsleopard-agent/internal/phone"
	"github.com/unclebandit/smsleopard-agent/internal/repository"
)

// ConversationService backs the operator endpoints: campaign lookup,
// customer status changes and conversation history.
type ConversationService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	CustomerRepo repository.CustomerRepositoryInterface
	MessageRepo  repository.ChatMessageRepositoryInterface
	Logger       *slog.Logger
}

func (s *ConversationService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// ListCampaigns fetches campaigns with pagination
func (s *ConversationService) ListCampaigns(ctx context.Context, page, pageSize int) ([]*model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	campaigns, total, err := s.CampaignRepo.List(ctx, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// GetCampaign fetches a campaign by ID
func (s *ConversationService) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	return s.CampaignRepo.GetByID(ctx, id)
}

// ListCustomers returns customers in the given status, most recently updated first.
func (s *ConversationService) ListCustomers(ctx context.Context, status model.CustomerStatus) ([]*model.Customer, error) {
	if !status.Valid() {
		return nil, appErrors.NewInvalidStatus(string(status))
	}
	return s.CustomerRepo.ListByStatus(ctx, status)
}

// SetCustomerStatus is how an operator takes over a conversation or hands it
// back to the agent.
func (s *ConversationService) SetCustomerStatus(ctx context.Context, phoneNumber string, status model.CustomerStatus) (*model.Customer, error) {
	normalized, err := normalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, appErrors.NewInvalidStatus(string(status))
	}
	if err := s.CustomerRepo.UpdateStatus(ctx, normalized, status); err != nil {
		return nil, err
	}
	s.logger().Info("customer status changed by operator", "phone", phone.Mask(normalized), "status", status)
	return s.CustomerRepo.GetByPhone(ctx, normalized)
}

// Conversation returns the customer's messages for campaignID, oldest first.
// An empty campaignID means the customer's most recent campaign.
func (s *ConversationService) Conversation(ctx context.Context, phoneNumber, campaignID string) ([]*model.ChatMessage, error) {
	normalized, err := normalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}
	if campaignID == "" {
		customer, err := s.CustomerRepo.GetByPhone(ctx, normalized)
		if err != nil {
			return nil, err
		}
		campaignID = customer.CampaignID()
		if campaignID == "" {
			return []*model.ChatMessage{}, nil
		}
	}
	return s.MessageRepo.ListConversation(ctx, normalized, campaignID)
}

// EnrollRequest attaches a contact to a campaign.
type EnrollRequest struct {
	PhoneNumber string
	FirstName   string
	LastName    string
	CampaignID  string
}

// EnrollCustomer points the customer at a campaign, creating them as
// automated if needed, and records the campaign's opening message as the
// first outbound message of the conversation. The opener is nil when the
// campaign has no template.
func (s *ConversationService) EnrollCustomer(ctx context.Context, req EnrollRequest) (*model.ChatMessage, error) {
	normalized, err := normalizePhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	campaign, err := s.CampaignRepo.GetByID(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}

	customer := &model.Customer{
		PhoneNumber: normalized,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Status:      model.CustomerStatusAutomated,
	}
	if customer.FirstName == "" && customer.LastName == "" {
		customer.FirstName, customer.LastName = "Unknown", "Customer"
	}
	if err := s.CustomerRepo.Create(ctx, customer); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	if err := s.CustomerRepo.SetCampaign(ctx, normalized, campaign.CampaignID); err != nil {
		return nil, fmt.Errorf("set campaign: %w", err)
	}

	if strings.TrimSpace(campaign.MessageTemplate) == "" {
		return nil, nil
	}
	stored, err := s.CustomerRepo.GetByPhone(ctx, normalized)
	if err != nil {
		return nil, err
	}

	opener := &model.ChatMessage{
		PhoneNumber:  normalized,
		CampaignID:   model.StringPtr(campaign.CampaignID),
		Message:      RenderTemplate(campaign.MessageTemplate, customerFields(stored)),
		Direction:    model.DirectionOutbound,
		ResponseType: ptr(model.ResponseTypeAutomated),
		Status:       ptr(model.MessageStatusQueued),
	}
	if err := s.MessageRepo.Add(ctx, opener); err != nil {
		return nil, fmt.Errorf("store campaign message: %w", err)
	}
	s.logger().Info("customer enrolled", "phone", phone.Mask(normalized), "campaign_id", campaign.CampaignID)
	return opener, nil
}

func normalizePhone(raw string) (string, error) {
	if !phone.Validate(raw) {
		return "", appErrors.NewInvalidPhoneNumber(raw)
	}
	return phone.Normalize(raw), nil
}

func ptr[T any](v T) *T { return &v }

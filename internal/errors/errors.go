package appErrors

import "fmt"

// ErrCampaignNotFound is returned when a campaign id has no record.
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %s not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrCustomerNotFound carries the masked phone number only.
type ErrCustomerNotFound struct {
	MaskedPhone string
}

func (e *ErrCustomerNotFound) Error() string {
	return fmt.Sprintf("customer %s not found", e.MaskedPhone)
}

func NewCustomerNotFound(maskedPhone string) error {
	return &ErrCustomerNotFound{MaskedPhone: maskedPhone}
}

type ErrMessageNotFound struct {
	MessageID string
}

func (e *ErrMessageNotFound) Error() string {
	return fmt.Sprintf("message with ID %s not found", e.MessageID)
}

func NewMessageNotFound(id string) error {
	return &ErrMessageNotFound{MessageID: id}
}

// ErrInvalidPhoneNumber is the only error the pipeline returns to callers.
// It is raised before any store access.
type ErrInvalidPhoneNumber struct {
	PhoneNumber string
}

func (e *ErrInvalidPhoneNumber) Error() string {
	return fmt.Sprintf("invalid phone number format: %s", e.PhoneNumber)
}

func NewInvalidPhoneNumber(phone string) error {
	return &ErrInvalidPhoneNumber{PhoneNumber: phone}
}

// ErrMissingField is returned by the inbound trigger before processing.
type ErrMissingField struct {
	Field string
}

func (e *ErrMissingField) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

func NewMissingField(field string) error {
	return &ErrMissingField{Field: field}
}

// ErrInvalidStatus is returned when an operator asks for an unknown status.
type ErrInvalidStatus struct {
	Status string
}

func (e *ErrInvalidStatus) Error() string {
	return fmt.Sprintf("invalid customer status: %q", e.Status)
}

func NewInvalidStatus(status string) error {
	return &ErrInvalidStatus{Status: status}
}

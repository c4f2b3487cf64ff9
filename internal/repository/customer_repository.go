package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	appErrors "github.com/unclebandit/smsleopard-agent/internal/errors"
	"github.com/unclebandit/smsleopard-agent/internal/model"
	"github.com/unclebandit/smsleopard-agent/internal/phone"
)

// CustomerRepositoryInterface defines the customer store operations.
type CustomerRepositoryInterface interface {
	GetByPhone(ctx context.Context, phoneNumber string) (*model.Customer, error)
	Create(ctx context.Context, c *model.Customer) error
	GetOrCreate(ctx context.Context, phoneNumber string) (*model.Customer, error)
	UpdateStatus(ctx context.Context, phoneNumber string, status model.CustomerStatus) error
	SetCampaign(ctx context.Context, phoneNumber, campaignID string) error
	ListByStatus(ctx context.Context, status model.CustomerStatus) ([]*model.Customer, error)
}

// CustomerRepository is the concrete implementation
type CustomerRepository struct {
	DB *sql.DB
}

const customerColumns = `phone_number, first_name, last_name, status, most_recent_campaign_id, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (*model.Customer, error) {
	var c model.Customer
	var campaignID sql.NullString
	if err := row.Scan(&c.PhoneNumber, &c.FirstName, &c.LastName, &c.Status, &campaignID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if campaignID.Valid && campaignID.String != "" {
		c.MostRecentCampaignID = &campaignID.String
	}
	return &c, nil
}

// GetByPhone fetches a customer by E.164 phone number.
func (r *CustomerRepository) GetByPhone(ctx context.Context, phoneNumber string) (*model.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE phone_number = $1`
	c, err := scanCustomer(r.DB.QueryRowContext(ctx, query, phoneNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCustomerNotFound(phone.Mask(phoneNumber))
		}
		return nil, err
	}
	return c, nil
}

// Create inserts a customer. An existing row with the same phone number is kept.
func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	if c.Status == "" {
		c.Status = model.CustomerStatusAutomated
	}

	query := `
        INSERT INTO customers (phone_number, first_name, last_name, status, most_recent_campaign_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (phone_number) DO NOTHING
    `
	_, err := r.DB.ExecContext(ctx, query,
		c.PhoneNumber, c.FirstName, c.LastName, string(c.Status),
		nullString(c.MostRecentCampaignID), c.CreatedAt, c.UpdatedAt,
	)
	return err
}

// GetOrCreate returns the stored customer, creating an automated one with no
// campaign on first contact.
func (r *CustomerRepository) GetOrCreate(ctx context.Context, phoneNumber string) (*model.Customer, error) {
	c, err := r.GetByPhone(ctx, phoneNumber)
	if err == nil {
		return c, nil
	}
	var notFound *appErrors.ErrCustomerNotFound
	if !errors.As(err, &notFound) {
		return nil, err
	}

	c = &model.Customer{
		PhoneNumber: phoneNumber,
		FirstName:   "Unknown",
		LastName:    "Customer",
		Status:      model.CustomerStatusAutomated,
	}
	if err := r.Create(ctx, c); err != nil {
		return nil, err
	}
	// A concurrent insert may have won; read back whatever is stored.
	return r.GetByPhone(ctx, phoneNumber)
}

// UpdateStatus sets the status. Setting the current status again is a no-op
// apart from updated_at.
func (r *CustomerRepository) UpdateStatus(ctx context.Context, phoneNumber string, status model.CustomerStatus) error {
	if !status.Valid() {
		return appErrors.NewInvalidStatus(string(status))
	}
	query := `UPDATE customers SET status = $1, updated_at = $2 WHERE phone_number = $3`
	res, err := r.DB.ExecContext(ctx, query, string(status), time.Now().UTC(), phoneNumber)
	if err != nil {
		return err
	}
	return expectRow(res, appErrors.NewCustomerNotFound(phone.Mask(phoneNumber)))
}

// SetCampaign points the customer at a campaign.
func (r *CustomerRepository) SetCampaign(ctx context.Context, phoneNumber, campaignID string) error {
	query := `UPDATE customers SET most_recent_campaign_id = $1, updated_at = $2 WHERE phone_number = $3`
	res, err := r.DB.ExecContext(ctx, query, campaignID, time.Now().UTC(), phoneNumber)
	if err != nil {
		return err
	}
	return expectRow(res, appErrors.NewCustomerNotFound(phone.Mask(phoneNumber)))
}

// ListByStatus is used by operators to find conversations needing a human.
func (r *CustomerRepository) ListByStatus(ctx context.Context, status model.CustomerStatus) ([]*model.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE status = $1 ORDER BY updated_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := []*model.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

var _ CustomerRepositoryInterface = (*CustomerRepository)(nil)

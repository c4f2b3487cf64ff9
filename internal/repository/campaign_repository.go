package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/smsleopard-agent/internal/errors"
	"github.com/unclebandit/smsleopard-agent/internal/model"
)

// CampaignRepositoryInterface is read-mostly: campaigns are authored elsewhere
// and never change once stored.
type CampaignRepositoryInterface interface {
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	Create(ctx context.Context, c *model.Campaign) error
	List(ctx context.Context, offset, limit int) ([]*model.Campaign, int, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	query := `
        SELECT campaign_id, name, campaign_details, message_template, created_at
        FROM campaigns WHERE campaign_id = $1
    `
	var c model.Campaign
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&c.CampaignID, &c.Name, &c.CampaignDetails, &c.MessageTemplate, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return &c, nil
}

// Create stores a campaign, generating an id when none is set.
func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	if c.CampaignID == "" {
		c.CampaignID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	query := `
        INSERT INTO campaigns (campaign_id, name, campaign_details, message_template, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `
	_, err := r.DB.ExecContext(ctx, query, c.CampaignID, c.Name, c.CampaignDetails, c.MessageTemplate, c.CreatedAt)
	return err
}

// List returns one page of campaigns, newest first, and the total count.
func (r *CampaignRepository) List(ctx context.Context, offset, limit int) ([]*model.Campaign, int, error) {
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
        SELECT campaign_id, name, campaign_details, message_template, created_at
        FROM campaigns ORDER BY created_at DESC, campaign_id DESC LIMIT $1 OFFSET $2
    `
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c := &model.Campaign{}
		if err := rows.Scan(&c.CampaignID, &c.Name, &c.CampaignDetails, &c.MessageTemplate, &c.CreatedAt); err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, total, rows.Err()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)

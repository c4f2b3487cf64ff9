// internal/model/campaign.go
package model

import "time"

type Campaign struct {
	CampaignID      string    `db:"campaign_id" json:"campaign_id"`
	Name            string    `db:"name" json:"name"`
	CampaignDetails string    `db:"campaign_details" json:"campaign_details,omitempty"`
	MessageTemplate string    `db:"message_template" json:"message_template"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

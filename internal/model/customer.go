// internal/model/customer.go
package model

import "time"

// CustomerStatus decides who owns the conversation.
type CustomerStatus string

const (
	CustomerStatusAutomated       CustomerStatus = "automated"
	CustomerStatusNeedsResponse   CustomerStatus = "needs_response"
	CustomerStatusAgentResponding CustomerStatus = "agent_responding"
)

// Valid reports whether s is one of the known statuses.
func (s CustomerStatus) Valid() bool {
	switch s {
	case CustomerStatusAutomated, CustomerStatusNeedsResponse, CustomerStatusAgentResponding:
		return true
	}
	return false
}

type Customer struct {
	PhoneNumber          string         `db:"phone_number" json:"phone_number"`
	FirstName            string         `db:"first_name" json:"first_name"`
	LastName             string         `db:"last_name" json:"last_name"`
	Status               CustomerStatus `db:"status" json:"status"`
	MostRecentCampaignID *string        `db:"most_recent_campaign_id" json:"most_recent_campaign_id,omitempty"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// DisplayName is the name the agent addresses the customer by.
func (c *Customer) DisplayName() string {
	return c.FirstName + " " + c.LastName
}

// CampaignID returns the most recent campaign or "" when there is none.
func (c *Customer) CampaignID() string {
	if c.MostRecentCampaignID == nil {
		return ""
	}
	return *c.MostRecentCampaignID
}

// Package agent runs the LLM sales agent and returns its structured reply.
package agent

import (
	"context"

	"github.com/unclebandit/smsleopard-agent/internal/model"
)

// Context identifies who the agent is talking to.
type Context struct {
	PhoneNumber  string
	CustomerName string
	CampaignID   string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one prior message of the conversation.
type Turn struct {
	Role Role
	Text string
}

// UsageLimits caps the work a single run may do. Zero means unlimited.
type UsageLimits struct {
	RequestLimit int
}

// Usage is the token and request count of one run.
type Usage struct {
	InputTokens  int
	OutputTokens int
	Requests     int
}

type RunRequest struct {
	Prompt  string
	Context Context
	History []Turn
	Limits  UsageLimits
	// Usage accumulates across every run that shares it, so retries of one
	// invocation count against the same limit. Nil starts from zero.
	Usage *Usage
}

func (r RunRequest) usage() *Usage {
	if r.Usage == nil {
		return &Usage{}
	}
	return r.Usage
}

type RunResult struct {
	Output model.AgentResponse
	Usage  Usage
}

// Runtime is the agent capability consumed by the pipeline.
type Runtime interface {
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}

// CampaignLookup resolves the campaign whose details are added to the
// agent instructions.
type CampaignLookup interface {
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
}

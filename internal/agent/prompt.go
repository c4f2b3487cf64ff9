package agent

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

//go:embed prompts/system-prompt.md
var defaultSystemPrompt string

const noCampaignContext = "No campaign context available."

// LoadSystemPrompt reads the prompt at path, or returns the built-in prompt
// when path is empty.
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return defaultSystemPrompt, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	return string(b), nil
}

// Instructions builds the system text for one run: the system prompt, the
// customer's name and the details of their most recent campaign.
type Instructions struct {
	SystemPrompt string
	Campaigns    CampaignLookup
	Logger       *slog.Logger
}

func (in *Instructions) Build(ctx context.Context, ac Context) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(in.SystemPrompt))
	b.WriteString("\n\n")
	if ac.CustomerName != "" {
		fmt.Fprintf(&b, "<customer_name>%s</customer_name>\n", ac.CustomerName)
	}
	fmt.Fprintf(&b, "<campaign_context>%s</campaign_context>", in.campaignDetails(ctx, ac.CampaignID))
	return b.String()
}

func (in *Instructions) campaignDetails(ctx context.Context, campaignID string) string {
	if campaignID == "" || in.Campaigns == nil {
		return noCampaignContext
	}
	c, err := in.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		if in.Logger != nil {
			in.Logger.Warn("campaign context unavailable", "campaign_id", campaignID, "error", err)
		}
		return noCampaignContext
	}
	if strings.TrimSpace(c.CampaignDetails) == "" {
		return noCampaignContext
	}
	return c.CampaignDetails
}

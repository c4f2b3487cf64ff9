package agent

import (
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/unclebandit/smsleopard-agent/internal/config"
)

// NewRuntime creates the Runtime selected by cfg.AgentProvider. awsCfg is
// only used by the bedrock provider.
func NewRuntime(cfg *config.Config, awsCfg aws.Config, campaigns CampaignLookup, logger *slog.Logger) (Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AgentProvider == config.ProviderMock {
		logger.Info("agent provider is mock, using canned replies")
		return NewMockRuntime(), nil
	}

	prompt, err := LoadSystemPrompt(cfg.SystemPromptFile)
	if err != nil {
		return nil, err
	}
	instructions := &Instructions{SystemPrompt: prompt, Campaigns: campaigns, Logger: logger}

	switch cfg.AgentProvider {
	case config.ProviderBedrock:
		client := bedrockruntime.NewFromConfig(awsCfg)
		return NewBedrockRuntime(client, cfg.ModelName, instructions, cfg.OutputRetries, logger), nil

	case config.ProviderLangchainOpenAI, config.ProviderLangchainAnthropic, config.ProviderLangchainOllama:
		llm, err := NewLangchainModel(cfg)
		if err != nil {
			return nil, err
		}
		return NewLangchainRuntime(llm, instructions, cfg.OutputRetries, logger), nil

	default:
		return nil, fmt.Errorf("unsupported agent provider: %s", cfg.AgentProvider)
	}
}

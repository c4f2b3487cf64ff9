package guardrail

import (
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/unclebandit/smsleopard-agent/internal/config"
)

// New creates the Filter selected by cfg.GuardrailMode.
func New(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (Filter, error) {
	switch cfg.GuardrailMode {
	case config.GuardrailKeyword:
		return NewKeywordFilter(DefaultBlockedTerms, ""), nil
	case config.GuardrailBedrock:
		return NewBedrockFilter(bedrockruntime.NewFromConfig(awsCfg), cfg.GuardrailID, cfg.GuardrailVersion, logger)
	default:
		return nil, fmt.Errorf("unsupported guardrail mode: %s", cfg.GuardrailMode)
	}
}

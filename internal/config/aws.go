package config

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/pkg/errors"
)

// LoadAWS loads the shared AWS configuration. SDK-level retries are capped at
// AWSMaxAttempts so the pipeline's retry policy decides when to back off.
func (c *Config) LoadAWS(ctx context.Context) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(c.AWSRegion),
		awsconfig.WithRetryMaxAttempts(max(c.AWSMaxAttempts, 1)),
	)
	if err != nil {
		return aws.Config{}, errors.WithStack(err)
	}
	return awsCfg, nil
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.AgentProvider == ProviderBedrock || c.GuardrailMode == GuardrailBedrock
}

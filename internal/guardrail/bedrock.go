package guardrail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// GuardrailAPI is the subset of the Bedrock runtime client used here.
type GuardrailAPI interface {
	ApplyGuardrail(ctx context.Context, params *bedrockruntime.ApplyGuardrailInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ApplyGuardrailOutput, error)
}

// BedrockFilter runs text through a configured Bedrock guardrail.
type BedrockFilter struct {
	client  GuardrailAPI
	id      string
	version string
	logger  *slog.Logger
}

var _ Filter = (*BedrockFilter)(nil)

func NewBedrockFilter(client GuardrailAPI, id, version string, logger *slog.Logger) (*BedrockFilter, error) {
	if id == "" || version == "" {
		return nil, fmt.Errorf("guardrail id and version are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BedrockFilter{client: client, id: id, version: version, logger: logger}, nil
}

func (f *BedrockFilter) Apply(ctx context.Context, text string, source Source) (Verdict, error) {
	if err := checkSource(source); err != nil {
		return Verdict{}, err
	}

	out, err := f.client.ApplyGuardrail(ctx, &bedrockruntime.ApplyGuardrailInput{
		GuardrailIdentifier: aws.String(f.id),
		GuardrailVersion:    aws.String(f.version),
		Source:              types.GuardrailContentSource(source),
		Content: []types.GuardrailContentBlock{
			&types.GuardrailContentBlockMemberText{
				Value: types.GuardrailTextBlock{Text: aws.String(text)},
			},
		},
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("apply guardrail: %w", err)
	}

	if out.Action != types.GuardrailActionGuardrailIntervened {
		return Verdict{Safe: true}, nil
	}

	f.logger.Info("guardrail intervened", "source", source)
	return Verdict{Safe: false, Substitute: substituteText(out.Outputs)}, nil
}

func substituteText(outputs []types.GuardrailOutputContent) string {
	if len(outputs) > 0 && outputs[0].Text != nil && *outputs[0].Text != "" {
		return *outputs[0].Text
	}
	return FallbackSubstitute
}

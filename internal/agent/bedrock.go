package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/unclebandit/smsleopard-agent/internal/model"
)

// ConverseAPI is the subset of the Bedrock runtime client used here.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockRuntime runs the agent on a Bedrock model through the Converse API,
// forcing the reply through the final_result tool.
type BedrockRuntime struct {
	client        ConverseAPI
	modelID       string
	instructions  *Instructions
	outputRetries int
	logger        *slog.Logger
}

var _ Runtime = (*BedrockRuntime)(nil)

func NewBedrockRuntime(client ConverseAPI, modelID string, instructions *Instructions, outputRetries int, logger *slog.Logger) *BedrockRuntime {
	if logger == nil {
		logger = slog.Default()
	}
	return &BedrockRuntime{
		client:        client,
		modelID:       modelID,
		instructions:  instructions,
		outputRetries: max(outputRetries, 0),
		logger:        logger,
	}
}

func (r *BedrockRuntime) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId:    aws.String(r.modelID),
		System:     []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: r.instructions.Build(ctx, req.Context)}},
		Messages:   bedrockMessages(alternate(req.History, req.Prompt)),
		ToolConfig: bedrockToolConfig(),
	}

	usage := req.usage()
	for attempt := 0; ; attempt++ {
		if err := usage.checkLimit(req.Limits); err != nil {
			return nil, err
		}

		out, err := r.client.Converse(ctx, input)
		usage.Requests++
		if err != nil {
			return nil, fmt.Errorf("bedrock converse: %w", err)
		}
		if out.Usage != nil {
			usage.InputTokens += int(aws.ToInt32(out.Usage.InputTokens))
			usage.OutputTokens += int(aws.ToInt32(out.Usage.OutputTokens))
		}

		msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
		if !ok {
			return nil, &StructuralValidationError{Reason: "converse returned no message"}
		}

		toolUse := findToolUse(msg.Value.Content)
		resp, verr := decodeToolUse(toolUse)
		if verr == nil {
			return &RunResult{Output: resp, Usage: *usage}, nil
		}
		if attempt >= r.outputRetries {
			return nil, verr
		}

		r.logger.Debug("agent output rejected, asking for a correction", "attempt", attempt+1, "error", verr)
		input.Messages = append(input.Messages, msg.Value, correctionTurn(toolUse, verr))
	}
}

func bedrockToolConfig() *types.ToolConfiguration {
	return &types.ToolConfiguration{
		Tools: []types.Tool{
			&types.ToolMemberToolSpec{Value: types.ToolSpecification{
				Name:        aws.String(OutputToolName),
				Description: aws.String(outputToolDescription),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(outputSchema)},
			}},
		},
		ToolChoice: &types.ToolChoiceMemberTool{Value: types.SpecificToolChoice{Name: aws.String(OutputToolName)}},
	}
}

func bedrockMessages(turns []Turn) []types.Message {
	msgs := make([]types.Message, 0, len(turns))
	for _, t := range turns {
		role := types.ConversationRoleUser
		if t.Role == RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		msgs = append(msgs, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: t.Text}},
		})
	}
	return msgs
}

func findToolUse(blocks []types.ContentBlock) *types.ToolUseBlock {
	for _, b := range blocks {
		if tu, ok := b.(*types.ContentBlockMemberToolUse); ok && aws.ToString(tu.Value.Name) == OutputToolName {
			return &tu.Value
		}
	}
	return nil
}

func decodeToolUse(tu *types.ToolUseBlock) (model.AgentResponse, error) {
	var resp model.AgentResponse
	if tu == nil || tu.Input == nil {
		return resp, &StructuralValidationError{Reason: "model did not call " + OutputToolName}
	}
	var args map[string]any
	if err := tu.Input.UnmarshalSmithyDocument(&args); err != nil {
		return resp, &StructuralValidationError{Reason: fmt.Sprintf("unreadable tool input: %v", err)}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return resp, &StructuralValidationError{Reason: fmt.Sprintf("unreadable tool input: %v", err)}
	}
	return DecodeOutput(raw)
}

func correctionTurn(tu *types.ToolUseBlock, verr error) types.Message {
	text := correctionMessage(verr)
	if tu == nil {
		return types.Message{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
		}
	}
	return types.Message{
		Role: types.ConversationRoleUser,
		Content: []types.ContentBlock{&types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
			ToolUseId: tu.ToolUseId,
			Status:    types.ToolResultStatusError,
			Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: text}},
		}}},
	}
}

// IsStructural reports whether err is a StructuralValidationError.
func IsStructural(err error) bool {
	var sve *StructuralValidationError
	return errors.As(err, &sve)
}

package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/unclebandit/smsleopard-agent/internal/config"
	"github.com/unclebandit/smsleopard-agent/internal/model"
)

// NewLangchainModel creates a langchaingo model for the configured provider.
func NewLangchainModel(cfg *config.Config) (llms.Model, error) {
	switch cfg.AgentProvider {
	case config.ProviderLangchainOllama:
		m, err := ollama.New(
			ollama.WithModel(cfg.ModelName),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
		return m, nil

	case config.ProviderLangchainOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		m, err := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.ModelName),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return m, nil

	case config.ProviderLangchainAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		m, err := anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.ModelName),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unsupported langchain provider: %s", cfg.AgentProvider)
	}
}

// LangchainRuntime runs the agent on any langchaingo model that supports
// tool calling.
type LangchainRuntime struct {
	llm           llms.Model
	instructions  *Instructions
	outputRetries int
	logger        *slog.Logger
}

var _ Runtime = (*LangchainRuntime)(nil)

func NewLangchainRuntime(llm llms.Model, instructions *Instructions, outputRetries int, logger *slog.Logger) *LangchainRuntime {
	if logger == nil {
		logger = slog.Default()
	}
	return &LangchainRuntime{
		llm:           llm,
		instructions:  instructions,
		outputRetries: max(outputRetries, 0),
		logger:        logger,
	}
}

var langchainOutputTool = llms.Tool{
	Type: "function",
	Function: &llms.FunctionDefinition{
		Name:        OutputToolName,
		Description: outputToolDescription,
		Parameters:  outputSchema,
	},
}

// langchainOutputChoice forces final_result on providers that honour
// tool_choice. The others fall back to the bare JSON reply path.
var langchainOutputChoice = llms.ToolChoice{
	Type:     "function",
	Function: &llms.FunctionReference{Name: OutputToolName},
}

func (r *LangchainRuntime) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, r.instructions.Build(ctx, req.Context)),
	}
	for _, t := range alternate(req.History, req.Prompt) {
		role := llms.ChatMessageTypeHuman
		if t.Role == RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, t.Text))
	}

	usage := req.usage()
	for attempt := 0; ; attempt++ {
		if err := usage.checkLimit(req.Limits); err != nil {
			return nil, err
		}

		resp, err := r.llm.GenerateContent(ctx, messages,
			llms.WithTools([]llms.Tool{langchainOutputTool}),
			llms.WithToolChoice(langchainOutputChoice),
		)
		usage.Requests++
		if err != nil {
			return nil, fmt.Errorf("generate content: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, &StructuralValidationError{Reason: "no response choices"}
		}

		choice := resp.Choices[0]
		usage.InputTokens += infoInt(choice.GenerationInfo, "PromptTokens", "InputTokens", "prompt_tokens")
		usage.OutputTokens += infoInt(choice.GenerationInfo, "CompletionTokens", "OutputTokens", "completion_tokens")

		call := findToolCall(choice.ToolCalls)
		out, verr := decodeToolCall(call, choice.Content)
		if verr == nil {
			return &RunResult{Output: out, Usage: *usage}, nil
		}
		if attempt >= r.outputRetries {
			return nil, verr
		}

		r.logger.Debug("agent output rejected, asking for a correction", "attempt", attempt+1, "error", verr)
		messages = append(messages, langchainCorrection(call, choice.Content, verr)...)
	}
}

func findToolCall(calls []llms.ToolCall) *llms.ToolCall {
	for i := range calls {
		if calls[i].FunctionCall != nil && calls[i].FunctionCall.Name == OutputToolName {
			return &calls[i]
		}
	}
	return nil
}

// decodeToolCall accepts the tool call arguments, or a bare JSON reply from
// models that answer in text.
func decodeToolCall(call *llms.ToolCall, content string) (model.AgentResponse, error) {
	if call != nil {
		return DecodeOutput([]byte(call.FunctionCall.Arguments))
	}
	if content != "" && content[0] == '{' {
		return DecodeOutput([]byte(content))
	}
	return model.AgentResponse{}, &StructuralValidationError{Reason: "model did not call " + OutputToolName, Raw: content}
}

func langchainCorrection(call *llms.ToolCall, content string, verr error) []llms.MessageContent {
	text := correctionMessage(verr)
	if call == nil {
		return []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeAI, content),
			llms.TextParts(llms.ChatMessageTypeHuman, text),
		}
	}
	return []llms.MessageContent{
		{Role: llms.ChatMessageTypeAI, Parts: []llms.ContentPart{*call}},
		{Role: llms.ChatMessageTypeTool, Parts: []llms.ContentPart{llms.ToolCallResponse{
			ToolCallID: call.ID,
			Name:       OutputToolName,
			Content:    text,
		}}},
	}
}

// infoInt reads the first numeric value found under keys. Providers report
// token counts under different names and types.
func infoInt(info map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

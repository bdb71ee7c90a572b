// Package anthropic provides Claude-backed providers: a chat model for the
// tutoring agents and the age-appropriate rewriter behind the safety
// pipeline.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/chriscow/tutor-agents-go/pkg/ai"
	"github.com/chriscow/tutor-agents-go/pkg/ai/llm"
)

// DefaultChatModel is the chat model used when none is configured.
const DefaultChatModel = "claude-sonnet-4-5-20250929"

// LLM implements the llm.LLM interface using the Anthropic Messages API.
type LLM struct {
	client *sdk.Client
	model  string
}

// NewLLM creates a Claude chat provider. Model defaults to DefaultChatModel.
func NewLLM(client *sdk.Client, model string) *LLM {
	if model == "" {
		model = DefaultChatModel
	}
	return &LLM{client: client, model: model}
}

var _ llm.LLM = (*LLM)(nil)

// Chat performs a chat completion request.
func (a *LLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: int64(req.MaxTokens),
	}
	if params.MaxTokens == 0 {
		params.MaxTokens = 1024
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(float64(req.Temperature))
	}
	if req.TopP > 0 {
		params.TopP = sdk.Float(float64(req.TopP))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			params.System = append(params.System, sdk.TextBlockParam{Text: msg.Content})
		case llm.RoleAssistant:
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(msg.Content)))
		}
	}

	for _, fn := range req.Functions {
		params.Tools = append(params.Tools, encodeTool(fn))
	}

	slog.Debug("anthropic chat request",
		slog.String("model", a.model),
		slog.Int("messages", len(params.Messages)),
		slog.Int("tools", len(params.Tools)))

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return llm.ChatResponse{}, classifyErr("chat completion", err)
	}

	resp := llm.ChatResponse{
		Message:      llm.Message{Role: llm.RoleAssistant},
		TokensUsed:   int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		FinishReason: string(msg.StopReason),
	}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if resp.Message.Content == "" {
				resp.Message.Content = block.Text
			}
		case "tool_use":
			if resp.FunctionCall == nil {
				resp.FunctionCall = &llm.FunctionCall{
					Name:      block.Name,
					Arguments: string(block.Input),
				}
			}
		}
	}
	return resp, nil
}

func encodeTool(fn llm.FunctionDefinition) sdk.ToolUnionParam {
	schema := sdk.ToolInputSchemaParam{}
	if props, ok := fn.Parameters["properties"]; ok {
		schema.Properties = props
	}
	if required, ok := fn.Parameters["required"]; ok {
		schema.ExtraFields = map[string]any{"required": required}
	}
	tool := sdk.ToolUnionParamOfTool(schema, fn.Name)
	if fn.Description != "" {
		tool.OfTool.Description = sdk.String(fn.Description)
	}
	return tool
}

// classifyErr sorts an API failure into the retry taxonomy. Overload and
// rate-limit responses are worth one more attempt; anything else carrying a
// status code is permanent. Transport failures with no status are treated
// as transient.
func classifyErr(op string, err error) error {
	msg := fmt.Sprintf("anthropic: %s: %v", op, err)
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode >= http.StatusInternalServerError:
			return ai.NewRecoverableError(err, msg)
		}
		return ai.NewFatalError(err, msg)
	}
	return ai.NewRecoverableError(err, msg)
}

// Capabilities returns the provider's capabilities.
func (a *LLM) Capabilities() llm.LLMCapabilities {
	return llm.LLMCapabilities{
		SupportsFunctions:  true,
		SupportsStreaming:  false,
		MaxTokens:          64000,
		SupportedModels:    []string{DefaultChatModel, DefaultRewriteModel},
		SupportsSystemRole: true,
	}
}

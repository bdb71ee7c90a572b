// Package llm defines the chat-completion surface the tutoring agents speak
// through. Providers translate ChatRequest into their wire format and hand
// back one assistant turn, either text for the voice pipeline or a function
// call for the routing table.
package llm

import (
	"context"

	"github.com/chriscow/tutor-agents-go/pkg/ai"
)

// Classification sentinels re-exported so callers need only this package.
var (
	// ErrRecoverable marks failures worth one more attempt: rate limits,
	// upstream 5xx, timeouts.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal marks failures a retry cannot fix: a bad API key, an unknown
	// model, a policy rejection.
	ErrFatal = ai.ErrFatal
)

// MessageRole identifies who produced a message in the conversation.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleFunction  MessageRole = "function"
)

// Message is one turn of conversation context.
type Message struct {
	Role    MessageRole
	Content string
	Name    string // set on RoleFunction messages only
}

// FunctionCall is the model's request to invoke a registered tool.
type FunctionCall struct {
	Name      string
	Arguments string // JSON object, decoded by the tool's handler
}

// FunctionDefinition advertises one callable tool to the model.
type FunctionDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema for the arguments
}

// ChatRequest carries the conversation and sampling parameters for one
// completion.
type ChatRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
	TopP        float32
	Functions   []FunctionDefinition
}

// ChatResponse is one assistant turn. When the model chose a tool instead
// of answering, FunctionCall is set and Message.Content is usually empty.
type ChatResponse struct {
	Message      Message
	FunctionCall *FunctionCall
	TokensUsed   int
	FinishReason string
}

// LLMCapabilities describes what a provider's models can do.
type LLMCapabilities struct {
	SupportsFunctions  bool
	SupportsStreaming  bool
	MaxTokens          int
	SupportedModels    []string
	SupportsSystemRole bool
}

// LLM is implemented by every chat-completion provider.
type LLM interface {
	// Chat performs one completion. Implementations classify transport and
	// API failures against the package sentinels.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// Capabilities reports what the provider supports.
	Capabilities() LLMCapabilities
}

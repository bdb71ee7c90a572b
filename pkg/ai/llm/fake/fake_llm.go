package fake

import (
	"context"
	"sync"

	"github.com/chriscow/tutor-agents-go/pkg/ai/llm"
)

// FakeLLM is a scripted LLM for testing. Each Chat call returns the next
// configured response; when the script runs out, the last response repeats.
type FakeLLM struct {
	mu        sync.Mutex
	responses []llm.ChatResponse
	callCount int
	requests  []llm.ChatRequest

	// Err, when set, is returned by every Chat call.
	Err error

	// ErrOnce, when set, is returned by the next Chat call and then
	// cleared. The scripted response at that position is not consumed.
	ErrOnce error
}

// NewFakeLLM creates a fake LLM that plays back the given responses in
// order.
func NewFakeLLM(responses ...llm.ChatResponse) *FakeLLM {
	if len(responses) == 0 {
		responses = []llm.ChatResponse{Text("Okay, let's keep going.")}
	}
	return &FakeLLM{responses: responses}
}

// Text builds a plain assistant text response.
func Text(content string) llm.ChatResponse {
	return llm.ChatResponse{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: content},
		FinishReason: "stop",
	}
}

// ToolCall builds a response that invokes the named tool with JSON-encoded
// arguments.
func ToolCall(name, arguments string) llm.ChatResponse {
	return llm.ChatResponse{
		Message:      llm.Message{Role: llm.RoleAssistant},
		FunctionCall: &llm.FunctionCall{Name: name, Arguments: arguments},
		FinishReason: "tool_calls",
	}
}

// Chat records the request and returns the next scripted response.
func (f *FakeLLM) Chat(_ context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	if f.ErrOnce != nil {
		err := f.ErrOnce
		f.ErrOnce = nil
		return llm.ChatResponse{}, err
	}
	if f.Err != nil {
		return llm.ChatResponse{}, f.Err
	}

	idx := f.callCount
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	f.callCount++
	return f.responses[idx], nil
}

// Requests returns the chat requests seen so far.
func (f *FakeLLM) Requests() []llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.ChatRequest(nil), f.requests...)
}

// Capabilities returns the fake LLM capabilities.
func (f *FakeLLM) Capabilities() llm.LLMCapabilities {
	return llm.LLMCapabilities{
		SupportsFunctions:  true,
		MaxTokens:          4096,
		SupportedModels:    []string{"fake-model"},
		SupportsSystemRole: true,
	}
}

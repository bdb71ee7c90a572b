// Package agent defines the tutoring agents that drive the pipeline session.
// An Agent is a description, not a running entity: the voice session holds
// the chat history and swaps agents on handoff, keeping the history intact.
package agent

import (
	"github.com/chriscow/tutor-agents-go/pkg/ai/llm"
	"github.com/chriscow/tutor-agents-go/pkg/session"
)

// Agent names as they appear in spans, audit records, and the transcript.
const (
	NameOrchestrator = "orchestrator"
	NameMath         = "math"
	NameHistory      = "history"
	NameEnglish      = "english"
)

// Each agent speaks with its own TTS voice so the student hears the handoff.
const (
	VoiceOrchestrator = "alloy"
	VoiceMath         = "onyx"
	VoiceHistory      = "fable"

	// VoiceEnglish is the realtime model's voice, not a TTS voice.
	VoiceEnglish = "shimmer"
)

// Agent is one tutor: a name, its instructions, the model that drives it,
// and the tools its model may call.
type Agent struct {
	Name         string
	Subject      session.Subject
	Instructions string
	Voice        string
	LLM          llm.LLM
	Temperature  float32
	Tools        []llm.FunctionDefinition

	// PendingQuestion seeds the agent's first reply after a handoff. The
	// activation path consumes it exactly once.
	PendingQuestion string
}

// ConsumePendingQuestion returns the pending question and clears it.
func (a *Agent) ConsumePendingQuestion() string {
	q := a.PendingQuestion
	a.PendingQuestion = ""
	return q
}

// Factory builds agents with their models already bound. The voice session
// and routing controller create agents only through a Factory so every
// handoff target carries the right model and tool set.
type Factory struct {
	// OrchestratorLLM should be a fast, cheap classifier model; routing
	// latency sits directly in the conversation.
	OrchestratorLLM llm.LLM
	MathLLM         llm.LLM
	HistoryLLM      llm.LLM

	// EnglishLLM backs the degraded text-path English tutor used when the
	// realtime dispatch fails.
	EnglishLLM llm.LLM

	// Tools returns the routing tool definitions available to the named
	// agent. Nil means the agent gets no tools.
	Tools func(agentName string) []llm.FunctionDefinition
}

func (f Factory) tools(name string) []llm.FunctionDefinition {
	if f.Tools == nil {
		return nil
	}
	return f.Tools(name)
}

// Orchestrator builds the routing classifier.
func (f Factory) Orchestrator() *Agent {
	return &Agent{
		Name:         NameOrchestrator,
		Subject:      session.SubjectOrchestrator,
		Instructions: orchestratorPrompt,
		Voice:        VoiceOrchestrator,
		LLM:          f.OrchestratorLLM,
		Temperature:  0.1,
		Tools:        f.tools(NameOrchestrator),
	}
}

// Math builds the mathematics specialist.
func (f Factory) Math() *Agent {
	return &Agent{
		Name:         NameMath,
		Subject:      session.SubjectMath,
		Instructions: mathPrompt,
		Voice:        VoiceMath,
		LLM:          f.MathLLM,
		Temperature:  0.3,
		Tools:        f.tools(NameMath),
	}
}

// History builds the history specialist.
func (f Factory) History() *Agent {
	return &Agent{
		Name:         NameHistory,
		Subject:      session.SubjectHistory,
		Instructions: historyPrompt,
		Voice:        VoiceHistory,
		LLM:          f.HistoryLLM,
		Tools:        f.tools(NameHistory),
	}
}

// EnglishFallback builds the text-path English tutor used when the realtime
// worker cannot be dispatched. It runs through the same guarded synthesis
// path as the other pipeline agents.
func (f Factory) EnglishFallback() *Agent {
	return &Agent{
		Name:         NameEnglish,
		Subject:      session.SubjectEnglish,
		Instructions: EnglishPrompt,
		Voice:        VoiceEnglish,
		LLM:          f.EnglishLLM,
		Tools:        f.tools(NameEnglish),
	}
}

// BySubject builds the agent for a subject. Used when reconstructing the
// active agent after a return-from-english handoff.
func (f Factory) BySubject(subject session.Subject) *Agent {
	switch subject {
	case session.SubjectMath:
		return f.Math()
	case session.SubjectHistory:
		return f.History()
	case session.SubjectEnglish:
		return f.EnglishFallback()
	default:
		return f.Orchestrator()
	}
}

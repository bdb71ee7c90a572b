package routing

import (
	"encoding/json"
	"fmt"

	"github.com/chriscow/tutor-agents-go/pkg/agent"
	"github.com/chriscow/tutor-agents-go/pkg/ai/llm"
)

// Tool names exposed to the agent models.
const (
	ToolRouteToMath             = "route_to_math"
	ToolRouteToHistory          = "route_to_history"
	ToolRouteToEnglish          = "route_to_english"
	ToolRouteBackToOrchestrator = "route_back_to_orchestrator"
	ToolEscalateToTeacher       = "escalate_to_teacher"
)

// ToolCall is the sealed set of routing operations. The model's tool-call
// payload is decoded into exactly one of these variants before dispatch.
type ToolCall interface {
	toolName() string
}

// RouteToMath hands the session to the mathematics specialist.
type RouteToMath struct {
	QuestionSummary string `json:"question_summary"`
}

// RouteToHistory hands the session to the history specialist.
type RouteToHistory struct {
	QuestionSummary string `json:"question_summary"`
}

// RouteToEnglish dispatches the realtime English worker into the room.
type RouteToEnglish struct {
	QuestionSummary string `json:"question_summary"`
}

// RouteBackToOrchestrator returns control to the classifier.
type RouteBackToOrchestrator struct {
	Reason string `json:"reason"`
}

// EscalateToTeacher brings a human teacher into the room.
type EscalateToTeacher struct {
	Reason string `json:"reason"`
}

func (RouteToMath) toolName() string             { return ToolRouteToMath }
func (RouteToHistory) toolName() string          { return ToolRouteToHistory }
func (RouteToEnglish) toolName() string          { return ToolRouteToEnglish }
func (RouteBackToOrchestrator) toolName() string { return ToolRouteBackToOrchestrator }
func (EscalateToTeacher) toolName() string       { return ToolEscalateToTeacher }

// ParseToolCall decodes a model tool call into its typed variant.
func ParseToolCall(call llm.FunctionCall) (ToolCall, error) {
	decode := func(v any) error {
		if call.Arguments == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(call.Arguments), v); err != nil {
			return fmt.Errorf("routing: decode %s arguments: %w", call.Name, err)
		}
		return nil
	}

	switch call.Name {
	case ToolRouteToMath:
		var t RouteToMath
		return t, decode(&t)
	case ToolRouteToHistory:
		var t RouteToHistory
		return t, decode(&t)
	case ToolRouteToEnglish:
		var t RouteToEnglish
		return t, decode(&t)
	case ToolRouteBackToOrchestrator:
		var t RouteBackToOrchestrator
		return t, decode(&t)
	case ToolEscalateToTeacher:
		var t EscalateToTeacher
		return t, decode(&t)
	default:
		return nil, fmt.Errorf("routing: unknown tool %q", call.Name)
	}
}

func questionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question_summary": map[string]any{
				"type":        "string",
				"description": "Short summary of the student's question for the receiving tutor",
			},
		},
		"required": []string{"question_summary"},
	}
}

func reasonSchema(description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reason": map[string]any{
				"type":        "string",
				"description": description,
			},
		},
		"required": []string{"reason"},
	}
}

var toolDefs = map[string]llm.FunctionDefinition{
	ToolRouteToMath: {
		Name:        ToolRouteToMath,
		Description: "Route the student to the mathematics specialist",
		Parameters:  questionSchema(),
	},
	ToolRouteToHistory: {
		Name:        ToolRouteToHistory,
		Description: "Route the student to the history specialist",
		Parameters:  questionSchema(),
	},
	ToolRouteToEnglish: {
		Name:        ToolRouteToEnglish,
		Description: "Route the student to the English language and literature specialist",
		Parameters:  questionSchema(),
	},
	ToolRouteBackToOrchestrator: {
		Name: ToolRouteBackToOrchestrator,
		Description: "Route back to the orchestrator when: the student asks about a different " +
			"subject (maths, history, etc.); OR the student says goodbye, thanks, or " +
			"wants to end or pause the tutoring session.",
		Parameters: reasonSchema("Why control is being handed back, including the student's new question if any"),
	},
	ToolEscalateToTeacher: {
		Name: ToolEscalateToTeacher,
		Description: "Escalate to a human teacher when the student is distressed, " +
			"asks something inappropriate, or you are unable to help effectively",
		Parameters: reasonSchema("Why a human teacher is needed"),
	},
}

// Definitions returns the tool set for the named agent. The classifier can
// reach every subject; specialists can cross-route and escalate but never
// route to themselves; the English tutor only hands control back.
func Definitions(agentName string) []llm.FunctionDefinition {
	var names []string
	switch agentName {
	case agent.NameOrchestrator:
		names = []string{ToolRouteToEnglish, ToolRouteToMath, ToolRouteToHistory, ToolEscalateToTeacher}
	case agent.NameMath:
		names = []string{ToolRouteToHistory, ToolRouteToEnglish, ToolEscalateToTeacher}
	case agent.NameHistory:
		names = []string{ToolRouteToMath, ToolRouteToEnglish, ToolEscalateToTeacher}
	case agent.NameEnglish:
		names = []string{ToolRouteBackToOrchestrator}
	default:
		return nil
	}

	defs := make([]llm.FunctionDefinition, 0, len(names))
	for _, n := range names {
		defs = append(defs, toolDefs[n])
	}
	return defs
}

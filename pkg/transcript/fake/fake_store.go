package fake

import (
	"context"
	"sync"

	"github.com/chriscow/tutor-agents-go/pkg/session"
	"github.com/chriscow/tutor-agents-go/pkg/transcript"
)

// FakeStore is an in-memory transcript store for testing. All slices are
// safe for concurrent append; audit writes are fire-and-forget goroutines in
// production code.
type FakeStore struct {
	mu sync.Mutex

	Sessions    []string
	Reports     map[string]session.Snapshot
	Turns       []transcript.Turn
	Routings    []transcript.RoutingDecision
	Escalations []transcript.EscalationEvent
	Guardrails  []transcript.GuardrailEvent

	// Err, when set, is returned by every write.
	Err error
}

var _ transcript.Store = (*FakeStore)(nil)

// NewFakeStore creates an empty in-memory store.
func NewFakeStore() *FakeStore {
	return &FakeStore{Reports: make(map[string]session.Snapshot)}
}

func (f *FakeStore) CreateSession(_ context.Context, sessionID, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Sessions = append(f.Sessions, sessionID)
	return nil
}

func (f *FakeStore) CloseSession(_ context.Context, sessionID string, report session.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Reports[sessionID] = report
	return nil
}

func (f *FakeStore) SaveTurn(_ context.Context, turn transcript.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Turns = append(f.Turns, turn)
	return nil
}

func (f *FakeStore) SaveRoutingDecision(_ context.Context, d transcript.RoutingDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Routings = append(f.Routings, d)
	return nil
}

func (f *FakeStore) SaveEscalation(_ context.Context, e transcript.EscalationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Escalations = append(f.Escalations, e)
	return nil
}

func (f *FakeStore) SaveGuardrailEvent(_ context.Context, e transcript.GuardrailEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Guardrails = append(f.Guardrails, e)
	return nil
}

// SavedTurns returns a copy of the recorded turns.
func (f *FakeStore) SavedTurns() []transcript.Turn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transcript.Turn(nil), f.Turns...)
}

// SavedRoutings returns a copy of the recorded routing decisions.
func (f *FakeStore) SavedRoutings() []transcript.RoutingDecision {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transcript.RoutingDecision(nil), f.Routings...)
}

// SavedEscalations returns a copy of the recorded escalations.
func (f *FakeStore) SavedEscalations() []transcript.EscalationEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transcript.EscalationEvent(nil), f.Escalations...)
}

// SavedGuardrails returns a copy of the recorded guardrail events.
func (f *FakeStore) SavedGuardrails() []transcript.GuardrailEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transcript.GuardrailEvent(nil), f.Guardrails...)
}

package fake

import (
	"context"
	"sync"

	"github.com/chriscow/tutor-agents-go/pkg/dispatch"
)

// Call records one dispatch request received by the fake.
type Call struct {
	AgentName string
	Room      string
	Metadata  dispatch.Metadata
}

// FakeClient is a dispatch client for testing. It records every call and can
// be configured to fail.
type FakeClient struct {
	mu    sync.Mutex
	calls []Call

	// Err, when set, is returned by every Dispatch call.
	Err error
}

// NewFakeClient creates a fake dispatch client that records calls.
func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

// Dispatch records the call and returns the configured error, if any.
func (f *FakeClient) Dispatch(_ context.Context, agentName, room string, md dispatch.Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.calls = append(f.calls, Call{AgentName: agentName, Room: room, Metadata: md})
	return nil
}

// Calls returns a copy of the recorded calls.
func (f *FakeClient) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

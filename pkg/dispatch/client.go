package dispatch

import (
	"context"
	"fmt"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
)

// Registered worker names. The student's room token embeds a dispatch for
// the pipeline worker; the english worker only ever arrives via an explicit
// dispatch from the pipeline side.
const (
	WorkerOrchestrator = "learning-orchestrator"
	WorkerEnglish      = "learning-english"
)

// Client issues agent dispatches against the control plane.
//
// Dispatches must go through the typed CreateAgentDispatchRequest; the
// control plane rejects loose key-value forms.
type Client interface {
	Dispatch(ctx context.Context, agentName, room string, md Metadata) error
}

// LiveKitClient is the production Client backed by the LiveKit agent
// dispatch service.
type LiveKitClient struct {
	svc *lksdk.AgentDispatchClient
}

var _ Client = (*LiveKitClient)(nil)

// NewLiveKitClient creates a dispatch client. The URL is the LiveKit server
// HTTP endpoint; key and secret are the API credentials.
func NewLiveKitClient(url, apiKey, apiSecret string) *LiveKitClient {
	return &LiveKitClient{
		svc: lksdk.NewAgentDispatchServiceClient(url, apiKey, apiSecret),
	}
}

// Dispatch asks the control plane to drop the named worker into the room,
// carrying the encoded metadata.
func (c *LiveKitClient) Dispatch(ctx context.Context, agentName, room string, md Metadata) error {
	_, err := c.svc.CreateDispatch(ctx, &livekit.CreateAgentDispatchRequest{
		AgentName: agentName,
		Room:      room,
		Metadata:  md.Format(),
	})
	if err != nil {
		return fmt.Errorf("dispatch: create dispatch for %s in %s: %w", agentName, room, err)
	}
	return nil
}

// Package clients holds lazily constructed shared service clients. Both
// worker types run many concurrent jobs in one process; API clients and the
// database pool are created once on first use and shared across sessions.
package clients

import (
	"context"
	"fmt"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/jackc/pgx/v5/pgxpool"
	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/tutor-agents-go/pkg/dispatch"
)

var (
	mu sync.Mutex

	openaiClient    *openai.Client
	anthropicClient *sdk.Client
	pool            *pgxpool.Pool
	dispatchClient  dispatch.Client
)

// OpenAI returns the shared OpenAI client, creating it on first call.
func OpenAI(apiKey string) *openai.Client {
	mu.Lock()
	defer mu.Unlock()
	if openaiClient == nil {
		openaiClient = openai.NewClient(apiKey)
	}
	return openaiClient
}

// Anthropic returns the shared Anthropic client, creating it on first call.
func Anthropic(apiKey string) *sdk.Client {
	mu.Lock()
	defer mu.Unlock()
	if anthropicClient == nil {
		c := sdk.NewClient(option.WithAPIKey(apiKey))
		anthropicClient = &c
	}
	return anthropicClient
}

// Pool returns the shared pgx connection pool, dialing on first call.
func Pool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	mu.Lock()
	defer mu.Unlock()
	if pool == nil {
		p, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("clients: connect postgres: %w", err)
		}
		pool = p
	}
	return pool, nil
}

// Dispatch returns the shared agent dispatch client.
func Dispatch(url, apiKey, apiSecret string) dispatch.Client {
	mu.Lock()
	defer mu.Unlock()
	if dispatchClient == nil {
		dispatchClient = dispatch.NewLiveKitClient(url, apiKey, apiSecret)
	}
	return dispatchClient
}

// Reset drops all cached clients, closing the pool if open. Test isolation
// only; production code never calls this.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	if pool != nil {
		pool.Close()
	}
	openaiClient = nil
	anthropicClient = nil
	pool = nil
	dispatchClient = nil
}

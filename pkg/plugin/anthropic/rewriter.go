package anthropic

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
)

// DefaultRewriteModel is the fast model used for safety rewrites; rewrite
// latency sits on the speech path, so it stays on Haiku.
const DefaultRewriteModel = "claude-haiku-4-5-20251001"

const rewriteMaxTokens = 512

const rewriteSystemPrompt = `You are a safe content rewriter for an educational platform.
Rewrite the given text for primary/secondary school children aged 8-16.
Use simple, age-appropriate vocabulary.
Do NOT mention the original problematic content or that it was rewritten.
Keep the educational intent and factual accuracy intact.
Be clear, friendly, and encouraging.
Respond with ONLY the rewritten text - no preamble, no explanation.`

// Rewriter produces age-appropriate rewrites of flagged text.
type Rewriter struct {
	client *sdk.Client
	model  string
}

// NewRewriter creates a rewriter. Model defaults to DefaultRewriteModel.
func NewRewriter(client *sdk.Client, model string) *Rewriter {
	if model == "" {
		model = DefaultRewriteModel
	}
	return &Rewriter{client: client, model: model}
}

// Rewrite returns the age-appropriate version of the text.
func (r *Rewriter) Rewrite(ctx context.Context, text string) (string, error) {
	msg, err := r.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(r.model),
		MaxTokens: rewriteMaxTokens,
		System:    []sdk.TextBlockParam{{Text: rewriteSystemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(text)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: rewrite: %w", err)
	}
	for _, block := range msg.Content {
		if block.Type == "text" {
			rewritten := strings.TrimSpace(block.Text)
			if rewritten == "" {
				break
			}
			return rewritten, nil
		}
	}
	return "", fmt.Errorf("anthropic: rewrite: empty response")
}

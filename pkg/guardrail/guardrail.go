// Package guardrail is the per-sentence content safety pipeline: an external
// moderation check, an age-appropriate rewrite when flagged, and a
// fire-and-forget audit record.
package guardrail

import (
	"context"
	"log/slog"
	"time"

	"github.com/chriscow/tutor-agents-go/internal/observe"
	"github.com/chriscow/tutor-agents-go/pkg/transcript"
)

// Categories is the moderation vocabulary. Exactly thirteen categories;
// adding or removing one is a contract break with the audit schema and must
// fail the regression test.
var Categories = []string{
	"harassment",
	"harassment/threatening",
	"hate",
	"hate/threatening",
	"sexual",
	"sexual/minors",
	"violence",
	"violence/graphic",
	"self-harm",
	"self-harm/intent",
	"self-harm/instructions",
	"illicit",
	"illicit/violent",
}

// FallbackSentence is spoken in place of flagged text when the rewriter is
// unavailable.
const FallbackSentence = "I'm here to help you learn. Let me rephrase that in a better way."

// CheckResult is the outcome of one moderation call. PeakScore is the
// maximum per-category score across all categories, flagged or not, so
// dashboards see true moderation pressure.
type CheckResult struct {
	Flagged    bool
	Categories []string
	PeakScore  float64
}

// Moderator classifies text against the 13-category vocabulary.
type Moderator interface {
	Moderate(ctx context.Context, text string) (CheckResult, error)
}

// Rewriter produces an age-appropriate rewrite of flagged text.
type Rewriter interface {
	Rewrite(ctx context.Context, text string) (string, error)
}

// Guardrail combines moderation, rewriting, and audit logging. The zero
// value is not usable; construct with New.
type Guardrail struct {
	moderator Moderator
	rewriter  Rewriter
	store     transcript.Store
}

// New creates a Guardrail. The store receives audit events and may be nil
// when auditing is not wired (tests).
func New(moderator Moderator, rewriter Rewriter, store transcript.Store) *Guardrail {
	return &Guardrail{moderator: moderator, rewriter: rewriter, store: store}
}

// Check runs the moderation endpoint over the text and emits a
// guardrail.check span. Moderation failure fails open: the text passes as
// not flagged.
func (g *Guardrail) Check(ctx context.Context, text string) CheckResult {
	start := time.Now()
	result, err := g.moderator.Moderate(ctx, text)
	checkMS := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		observe.Logger(ctx).Error("moderation check failed, letting content through",
			slog.String("error", err.Error()))
		result = CheckResult{}
	}
	observe.GuardrailCheck(ctx, len(text), result.Flagged, result.PeakScore, checkMS)
	return result
}

// Rewrite asks the rewriter for an age-appropriate version of the text and
// emits a guardrail.rewrite span. On any rewriter error the fixed fallback
// sentence is returned.
func (g *Guardrail) Rewrite(ctx context.Context, text string) string {
	start := time.Now()
	rewritten, err := g.rewriter.Rewrite(ctx, text)
	rewriteMS := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		observe.Logger(ctx).Error("guardrail rewrite failed, using fallback",
			slog.String("error", err.Error()))
		rewritten = FallbackSentence
	}
	observe.GuardrailRewrite(ctx, len(text), len(rewritten), rewriteMS)
	return rewritten
}

// CheckAndRewrite is the combined per-sentence path called from the guarded
// synthesis hook. Clean text passes through unchanged. Flagged text is
// rewritten and audited; the audit write is fire-and-forget so it never
// blocks the speech path. Returns the safe text and whether a rewrite
// happened.
func (g *Guardrail) CheckAndRewrite(ctx context.Context, text, sessionID, agentName string) (string, bool) {
	result := g.Check(ctx, text)
	if !result.Flagged {
		return text, false
	}

	observe.Logger(ctx).Warn("content flagged",
		slog.String("session_id", sessionID),
		slog.String("agent", agentName),
		slog.Any("categories", result.Categories))

	safe := g.Rewrite(ctx, text)
	g.audit(ctx, transcript.GuardrailEvent{
		SessionID:         sessionID,
		AgentName:         agentName,
		OriginalText:      text,
		RewrittenText:     safe,
		CategoriesFlagged: result.Categories,
		ModerationScore:   result.PeakScore,
		ActionTaken:       "rewrite",
	})
	return safe, true
}

// Audit records a safety event without rewriting, used by the realtime
// worker's post-hoc check where the audio has already played.
func (g *Guardrail) Audit(ctx context.Context, sessionID, agentName, text string, result CheckResult) {
	g.audit(ctx, transcript.GuardrailEvent{
		SessionID:         sessionID,
		AgentName:         agentName,
		OriginalText:      text,
		RewrittenText:     text,
		CategoriesFlagged: result.Categories,
		ModerationScore:   result.PeakScore,
		ActionTaken:       "audit_only",
	})
}

func (g *Guardrail) audit(ctx context.Context, event transcript.GuardrailEvent) {
	if g.store == nil {
		return
	}
	logger := observe.Logger(ctx)
	go func() {
		auditCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := g.store.SaveGuardrailEvent(auditCtx, event); err != nil {
			logger.Error("failed to log guardrail event",
				slog.String("session_id", event.SessionID),
				slog.String("error", err.Error()))
		}
	}()
}

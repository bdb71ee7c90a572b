package guardrail_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/tutor-agents-go/pkg/guardrail"
	gfake "github.com/chriscow/tutor-agents-go/pkg/guardrail/fake"
	tfake "github.com/chriscow/tutor-agents-go/pkg/transcript/fake"
)

func TestCategoryVocabularyIsFixed(t *testing.T) {
	is := is.New(t)

	// The audit schema and dashboards depend on exactly these thirteen.
	is.Equal(len(guardrail.Categories), 13)

	seen := map[string]bool{}
	for _, c := range guardrail.Categories {
		is.True(!seen[c])
		seen[c] = true
	}
	is.True(seen["illicit"])
	is.True(seen["illicit/violent"])
	is.True(seen["self-harm/instructions"])
}

func TestCleanTextPassesThrough(t *testing.T) {
	is := is.New(t)

	g := guardrail.New(gfake.NewFakeModerator("worthless"), gfake.NewFakeRewriter(""), tfake.NewFakeStore())
	safe, rewritten := g.CheckAndRewrite(context.Background(), "Seven times eight is 56.", "sess-1", "math")
	is.Equal(safe, "Seven times eight is 56.")
	is.True(!rewritten)
}

func TestFlaggedTextIsRewrittenAndAudited(t *testing.T) {
	is := is.New(t)

	store := tfake.NewFakeStore()
	g := guardrail.New(
		gfake.NewFakeModerator("worthless"),
		gfake.NewFakeRewriter("Everyone learns at their own pace."),
		store,
	)

	safe, rewritten := g.CheckAndRewrite(context.Background(),
		"I hate you, you are worthless and stupid.", "sess-1", "math")
	is.Equal(safe, "Everyone learns at their own pace.")
	is.True(rewritten)

	// Audit write is fire-and-forget; give it a moment.
	waitFor(t, func() bool { return len(store.SavedGuardrails()) == 1 })
	events := store.SavedGuardrails()
	is.Equal(events[0].SessionID, "sess-1")
	is.Equal(events[0].AgentName, "math")
	is.Equal(events[0].CategoriesFlagged, []string{"harassment"})
	is.Equal(events[0].ActionTaken, "rewrite")
}

func TestModerationFailureFailsOpen(t *testing.T) {
	is := is.New(t)

	mod := gfake.NewFakeModerator("anything")
	mod.Err = errors.New("moderation endpoint down")
	g := guardrail.New(mod, gfake.NewFakeRewriter(""), tfake.NewFakeStore())

	safe, rewritten := g.CheckAndRewrite(context.Background(), "anything goes", "sess-1", "math")
	is.Equal(safe, "anything goes")
	is.True(!rewritten)
}

func TestRewriterFailureReturnsFallback(t *testing.T) {
	is := is.New(t)

	rw := gfake.NewFakeRewriter("")
	rw.Err = errors.New("rewriter down")
	store := tfake.NewFakeStore()
	g := guardrail.New(gfake.NewFakeModerator("worthless"), rw, store)

	safe, rewritten := g.CheckAndRewrite(context.Background(), "you are worthless", "sess-1", "math")
	is.Equal(safe, guardrail.FallbackSentence)
	is.True(rewritten)

	// The audit record is still emitted on rewriter failure.
	waitFor(t, func() bool { return len(store.SavedGuardrails()) == 1 })
}

func TestAuditOnly(t *testing.T) {
	is := is.New(t)

	store := tfake.NewFakeStore()
	g := guardrail.New(gfake.NewFakeModerator(), gfake.NewFakeRewriter(""), store)

	g.Audit(context.Background(), "sess-1", "english", "flagged realtime text", guardrail.CheckResult{
		Flagged:    true,
		Categories: []string{"violence"},
		PeakScore:  0.8,
	})

	waitFor(t, func() bool { return len(store.SavedGuardrails()) == 1 })
	events := store.SavedGuardrails()
	is.Equal(events[0].ActionTaken, "audit_only")
	is.Equal(events[0].RewrittenText, events[0].OriginalText)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

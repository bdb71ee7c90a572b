package fake

import (
	"context"
	"strings"
	"sync"

	"github.com/chriscow/tutor-agents-go/pkg/guardrail"
)

// FakeModerator flags any text containing one of the configured trigger
// substrings (case-insensitive). With no triggers, nothing is flagged.
type FakeModerator struct {
	mu       sync.Mutex
	triggers []string
	calls    []string

	// Err, when set, is returned by every Moderate call.
	Err error
}

// NewFakeModerator creates a moderator that flags text containing any of the
// given substrings.
func NewFakeModerator(triggers ...string) *FakeModerator {
	return &FakeModerator{triggers: triggers}
}

// Moderate records the call and flags on trigger match.
func (f *FakeModerator) Moderate(_ context.Context, text string) (guardrail.CheckResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()

	if f.Err != nil {
		return guardrail.CheckResult{}, f.Err
	}
	lower := strings.ToLower(text)
	for _, trigger := range f.triggers {
		if strings.Contains(lower, strings.ToLower(trigger)) {
			return guardrail.CheckResult{
				Flagged:    true,
				Categories: []string{"harassment"},
				PeakScore:  0.97,
			}, nil
		}
	}
	return guardrail.CheckResult{PeakScore: 0.01}, nil
}

// Calls returns a copy of the texts moderated so far.
func (f *FakeModerator) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// FakeRewriter returns a fixed rewrite for every input.
type FakeRewriter struct {
	// Rewritten is the text returned for every call. Defaults to a benign
	// sentence when empty.
	Rewritten string

	// Err, when set, is returned by every Rewrite call.
	Err error
}

// NewFakeRewriter creates a rewriter returning the given text.
func NewFakeRewriter(rewritten string) *FakeRewriter {
	return &FakeRewriter{Rewritten: rewritten}
}

// Rewrite returns the configured text or error.
func (f *FakeRewriter) Rewrite(_ context.Context, _ string) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	if f.Rewritten == "" {
		return "Let's keep learning together.", nil
	}
	return f.Rewritten, nil
}

package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/tutor-agents-go/pkg/guardrail"
)

// DefaultModerationModel is the multimodal moderation model.
const DefaultModerationModel = "omni-moderation-latest"

// Moderation classifies text using the OpenAI moderation endpoint.
type Moderation struct {
	client *openai.Client
	model  string
}

// NewModeration creates a moderation provider. Model defaults to
// omni-moderation-latest.
func NewModeration(client *openai.Client, model string) *Moderation {
	if model == "" {
		model = DefaultModerationModel
	}
	return &Moderation{client: client, model: model}
}

var _ guardrail.Moderator = (*Moderation)(nil)

// Moderate runs one moderation call. The peak score spans every category,
// not just flagged ones.
func (m *Moderation) Moderate(ctx context.Context, text string) (guardrail.CheckResult, error) {
	resp, err := m.client.Moderations(ctx, openai.ModerationRequest{
		Model: m.model,
		Input: text,
	})
	if err != nil {
		return guardrail.CheckResult{}, fmt.Errorf("openai: moderation: %w", err)
	}
	if len(resp.Results) == 0 {
		return guardrail.CheckResult{}, fmt.Errorf("openai: moderation: empty result")
	}

	r := resp.Results[0]
	flags := map[string]bool{
		"harassment":             r.Categories.Harassment,
		"harassment/threatening": r.Categories.HarassmentThreatening,
		"hate":                   r.Categories.Hate,
		"hate/threatening":       r.Categories.HateThreatening,
		"sexual":                 r.Categories.Sexual,
		"sexual/minors":          r.Categories.SexualMinors,
		"violence":               r.Categories.Violence,
		"violence/graphic":       r.Categories.ViolenceGraphic,
		"self-harm":              r.Categories.SelfHarm,
		"self-harm/intent":       r.Categories.SelfHarmIntent,
		"self-harm/instructions": r.Categories.SelfHarmInstructions,
		"illicit":                r.Categories.Illicit,
		"illicit/violent":        r.Categories.IllicitViolent,
	}
	scores := map[string]float64{
		"harassment":             float64(r.CategoryScores.Harassment),
		"harassment/threatening": float64(r.CategoryScores.HarassmentThreatening),
		"hate":                   float64(r.CategoryScores.Hate),
		"hate/threatening":       float64(r.CategoryScores.HateThreatening),
		"sexual":                 float64(r.CategoryScores.Sexual),
		"sexual/minors":          float64(r.CategoryScores.SexualMinors),
		"violence":               float64(r.CategoryScores.Violence),
		"violence/graphic":       float64(r.CategoryScores.ViolenceGraphic),
		"self-harm":              float64(r.CategoryScores.SelfHarm),
		"self-harm/intent":       float64(r.CategoryScores.SelfHarmIntent),
		"self-harm/instructions": float64(r.CategoryScores.SelfHarmInstructions),
		"illicit":                float64(r.CategoryScores.Illicit),
		"illicit/violent":        float64(r.CategoryScores.IllicitViolent),
	}

	result := guardrail.CheckResult{Flagged: r.Flagged}
	for _, cat := range guardrail.Categories {
		if flags[cat] {
			result.Categories = append(result.Categories, cat)
		}
		if s := scores[cat]; s > result.PeakScore {
			result.PeakScore = s
		}
	}
	return result, nil
}

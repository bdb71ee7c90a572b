package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"
	openai "github.com/sashabaranov/go-openai"
)

func moderationServer(t *testing.T, body string) *openai.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func TestModeration_Flagged(t *testing.T) {
	is := is.New(t)

	client := moderationServer(t, `{
		"id": "modr-1",
		"model": "omni-moderation-latest",
		"results": [{
			"flagged": true,
			"categories": {"harassment": true, "violence": false},
			"category_scores": {"harassment": 0.97, "violence": 0.12}
		}]
	}`)

	mod := NewModeration(client, "")
	result, err := mod.Moderate(context.Background(), "some text")
	is.NoErr(err)
	is.True(result.Flagged)
	is.Equal(result.Categories, []string{"harassment"})
	is.True(result.PeakScore > 0.96 && result.PeakScore < 0.98)
}

func TestModeration_PeakScoreIncludesUnflagged(t *testing.T) {
	is := is.New(t)

	// Nothing crosses the flag threshold, but the peak score still
	// reflects the highest category score.
	client := moderationServer(t, `{
		"id": "modr-2",
		"model": "omni-moderation-latest",
		"results": [{
			"flagged": false,
			"categories": {},
			"category_scores": {"violence": 0.44, "hate": 0.03}
		}]
	}`)

	mod := NewModeration(client, "")
	result, err := mod.Moderate(context.Background(), "borderline text")
	is.NoErr(err)
	is.True(!result.Flagged)
	is.Equal(len(result.Categories), 0)
	is.True(result.PeakScore > 0.43 && result.PeakScore < 0.45)
}

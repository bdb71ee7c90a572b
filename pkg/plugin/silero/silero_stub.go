//go:build !silero

package silero

import (
	"fmt"

	"github.com/chriscow/tutor-agents-go/pkg/plugin"
)

// newSileroVAD refuses to construct on builds without the silero tag. The
// runtime treats the error as "no VAD" and runs the gap heuristic instead.
func newSileroVAD(cfg map[string]any) (any, error) {
	return nil, fmt.Errorf("silero VAD plugin not available (build with -tags=silero)")
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        "vad",
		Name:        "silero",
		Factory:     newSileroVAD,
		Description: "Silero VAD (disabled, build with -tags=silero to enable)",
		Version:     "1.0.0",
		Config: map[string]interface{}{
			"note": "requires a -tags=silero build",
		},
		// The model can be fetched ahead of a tagged build.
		Downloader: &ModelDownloader{},
	})
}

// Package silero registers the silero voice activity detector with the
// plugin registry. Default builds register a stub factory that refuses to
// construct; -tags=silero builds the real detector.
package silero

import (
	"os"
	"path/filepath"
)

const (
	// ModelFileName is the ONNX model file looked up under the model
	// directory.
	ModelFileName = "silero_vad.onnx"

	// DefaultThreshold is the speech probability cutoff.
	DefaultThreshold = 0.5
)

// defaultModelPath resolves the model location: TUTOR_MODEL_PATH when set,
// otherwise ~/.tutor-agents/models.
func defaultModelPath() string {
	dir := os.Getenv("TUTOR_MODEL_PATH")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".tutor-agents", "models")
	}
	return filepath.Join(dir, ModelFileName)
}

package silero

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

// modelURL is the published ONNX model, about 1.7 MB.
const modelURL = "https://github.com/snakers4/silero-vad/raw/master/src/silero_vad/data/silero_vad.onnx"

// ModelDownloader fetches the VAD model into the model directory. The
// download-models command runs it for every registered plugin that carries
// one.
type ModelDownloader struct{}

// Download fetches the model unless it is already on disk.
func (d *ModelDownloader) Download() error {
	path := defaultModelPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("silero: create model directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		slog.Info("Silero VAD model already present", slog.String("path", path))
		return nil
	}

	slog.Info("Downloading Silero VAD model",
		slog.String("url", modelURL),
		slog.String("path", path))

	resp, err := http.Get(modelURL)
	if err != nil {
		return fmt.Errorf("silero: download model: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("silero: download model: HTTP %d", resp.StatusCode)
	}

	// Write to a partial file and rename, so a cut download never looks
	// like a model.
	tmp := path + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("silero: create model file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("silero: write model file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("silero: close model file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("silero: install model file: %w", err)
	}

	slog.Info("Silero VAD model downloaded", slog.String("path", path))
	return nil
}

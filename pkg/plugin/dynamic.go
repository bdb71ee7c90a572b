// Dynamic provider loading through Go's plugin system. Linux only, behind
// the plugindyn build tag.
//go:build plugindyn && linux

package plugin

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"plugin"
)

// LoadDynamicPlugins opens every .so file in dir and runs its exported
// RegisterPlugins() error function, which is expected to call Register for
// each provider it contributes. A file that fails to load or register aborts
// the whole pass: a worker with half its providers should refuse to start.
func LoadDynamicPlugins(dir string) error {
	soFiles, err := filepath.Glob(filepath.Join(dir, "*.so"))
	if err != nil {
		return fmt.Errorf("plugin: scan %s: %w", dir, err)
	}
	if len(soFiles) == 0 {
		slog.Warn("No provider plugins found", slog.String("directory", dir))
		return nil
	}

	for _, soFile := range soFiles {
		if err := loadOne(soFile); err != nil {
			return fmt.Errorf("plugin: load %s: %w", filepath.Base(soFile), err)
		}
	}

	slog.Info("Loaded provider plugins",
		slog.Int("count", len(soFiles)),
		slog.String("directory", dir))
	return nil
}

func loadOne(soFile string) error {
	p, err := plugin.Open(soFile)
	if err != nil {
		return err
	}

	sym, err := p.Lookup("RegisterPlugins")
	if err != nil {
		return fmt.Errorf("missing RegisterPlugins export: %w", err)
	}
	register, ok := sym.(func() error)
	if !ok {
		return fmt.Errorf("RegisterPlugins has wrong signature %T", sym)
	}
	return register()
}

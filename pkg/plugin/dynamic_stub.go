// Stub for builds without dynamic provider loading.
//go:build !plugindyn || !linux

package plugin

import "fmt"

// LoadDynamicPlugins fails on builds without plugin support. Workers that
// set TUTOR_PLUGIN_PATH must be built with -tags=plugindyn on Linux.
func LoadDynamicPlugins(dir string) error {
	return fmt.Errorf("plugin: dynamic loading requires a -tags=plugindyn Linux build (directory %s)", dir)
}

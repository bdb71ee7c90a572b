// Package plugin is the provider registry for the voice stack. STT, TTS,
// LLM, and VAD implementations register themselves under a (kind, name) pair
// at init time, and workers resolve providers by name when building an agent
// session. Compiled-in providers arrive through blank imports; Linux builds
// with the plugindyn tag can also load .so bundles at startup.
package plugin

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a provider instance from plugin configuration. Callers
// assert the result to the interface matching the plugin's kind: stt.STT,
// tts.TTS, llm.LLM, or vad.VAD.
type Factory func(cfg map[string]any) (any, error)

// Downloader fetches model files a provider needs before first use.
// Providers without local models leave it nil.
type Downloader interface {
	Download() error
}

// Plugin describes one registered provider.
type Plugin struct {
	Kind        string // provider category: "stt", "tts", "llm", "vad"
	Name        string // registry key within the kind, e.g. "openai"
	Factory     Factory
	Description string
	Version     string
	Config      map[string]any // documented config keys and their defaults
	Downloader  Downloader     // nil when the provider ships no model files
}

// Registry indexes plugins by kind and name and is safe for concurrent use.
// The zero value is ready to use. The package-level functions operate on a
// single process-wide instance shared by all provider packages.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]map[string]*Plugin
}

var globalRegistry Registry

// Register adds a bare plugin to the shared registry. Provider packages call
// it (or RegisterWithMetadata) from init, so registration mistakes panic: a
// worker must not start with an ambiguous provider table.
func Register(kind, name string, factory Factory) {
	globalRegistry.Register(kind, name, factory)
}

// RegisterWithMetadata adds a fully described plugin to the shared registry.
func RegisterWithMetadata(p *Plugin) {
	globalRegistry.RegisterWithMetadata(p)
}

// Get looks up a factory in the shared registry.
func Get(kind, name string) (Factory, bool) {
	return globalRegistry.Get(kind, name)
}

// List returns the shared registry's plugins of one kind, or every plugin
// when kind is empty.
func List(kind string) []*Plugin {
	return globalRegistry.List(kind)
}

// ListKinds returns the kinds present in the shared registry.
func ListKinds() []string {
	return globalRegistry.ListKinds()
}

// Register records factory under (kind, name) with no further metadata.
func (r *Registry) Register(kind, name string, factory Factory) {
	r.RegisterWithMetadata(&Plugin{Kind: kind, Name: name, Factory: factory})
}

// RegisterWithMetadata records a plugin. It panics when the kind or name is
// empty, the factory is nil, or the slot is already taken; duplicate
// registration means two packages claim the same provider name and there is
// no sensible winner.
func (r *Registry) RegisterWithMetadata(p *Plugin) {
	switch {
	case p.Kind == "":
		panic("plugin kind cannot be empty")
	case p.Name == "":
		panic("plugin name cannot be empty")
	case p.Factory == nil:
		panic("plugin factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.plugins == nil {
		r.plugins = make(map[string]map[string]*Plugin)
	}
	byName := r.plugins[p.Kind]
	if byName == nil {
		byName = make(map[string]*Plugin)
		r.plugins[p.Kind] = byName
	}
	if prev, ok := byName[p.Name]; ok {
		panic(fmt.Sprintf("plugin %s/%s already registered (existing version: %s, new version: %s)",
			p.Kind, p.Name, prev.Version, p.Version))
	}
	byName[p.Name] = p
}

// Get returns the factory registered under (kind, name). The second result
// reports whether the plugin exists.
func (r *Registry) Get(kind, name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[kind][name]
	if !ok {
		return nil, false
	}
	return p.Factory, true
}

// List returns the plugins of one kind, or every plugin when kind is empty,
// sorted by kind then name so listing output stays stable.
func (r *Registry) List(kind string) []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Plugin
	for k, byName := range r.plugins {
		if kind != "" && k != kind {
			continue
		}
		for _, p := range byName {
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ListKinds returns the registered kinds in sorted order.
func (r *Registry) ListKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.plugins))
	for kind := range r.plugins {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Clear drops every registration. Tests use it to isolate registry state.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = nil
}

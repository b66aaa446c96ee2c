package job

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hearthdata/hearth/pkg/errors"
)

// Pipeline is a three-phase data job. The engine drives the phases strictly
// in order and feeds each phase's output to the next.
type Pipeline interface {
	// Extract pulls raw data from upstream sources.
	Extract(ctx context.Context) (interface{}, error)
	// Transform cleans and reshapes the extracted data.
	Transform(ctx context.Context, raw interface{}) (interface{}, error)
	// Load persists the transformed data and returns per-run counters that
	// are merged into the job result.
	Load(ctx context.Context, processed interface{}) (map[string]interface{}, error)
}

// Factory builds a pipeline instance from a job's config map.
type Factory func(cfg map[string]interface{}) (Pipeline, error)

// PluginInfo describes a registered pipeline plugin.
type PluginInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type registration struct {
	info    PluginInfo
	factory Factory
}

// Registry maps plugin names to pipeline factories. Plugins register at
// startup; lookups at job-start time are read-only.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]registration
}

// NewRegistry creates an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]registration)}
}

// Register adds a plugin factory under its name.
func (r *Registry) Register(info PluginInfo, factory Factory) error {
	if info.Name == "" {
		return errors.New(errors.ErrorTypeValidation, "plugin name is required")
	}
	if factory == nil {
		return errors.New(errors.ErrorTypeValidation, "plugin factory is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[info.Name]; exists {
		return errors.New(errors.ErrorTypeConfig,
			fmt.Sprintf("plugin %q is already registered", info.Name))
	}
	r.plugins[info.Name] = registration{info: info, factory: factory}
	return nil
}

// Create builds a pipeline for the named plugin.
func (r *Registry) Create(name string, cfg map[string]interface{}) (Pipeline, error) {
	r.mu.RLock()
	reg, ok := r.plugins[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrorTypeNotFound,
			fmt.Sprintf("unknown plugin: %s", name))
	}
	return reg.factory(cfg)
}

// List returns registered plugins sorted by name.
func (r *Registry) List() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]PluginInfo, 0, len(r.plugins))
	for _, reg := range r.plugins {
		infos = append(infos, reg.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Has reports whether a plugin is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.plugins[name]
	return ok
}

// Package registry manages connector registration and instantiation.
// Connector packages register a factory from their init function; the
// process wires instances explicitly at startup, so discovery is a
// compile-time map lookup rather than runtime type scanning.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hearthdata/hearth/pkg/config"
	"github.com/hearthdata/hearth/pkg/connector/core"
	"github.com/hearthdata/hearth/pkg/errors"
	"github.com/hearthdata/hearth/pkg/logger"
)

// Factory is a function that creates connector instances.
// It takes a ConnectorConfig and returns a configured Connector or an error.
type Factory func(cfg *config.ConnectorConfig) (core.Connector, error)

// Registry manages connector factories keyed by type name.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
	logger    *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new connector registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// Register registers a connector factory under a type name
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("connector type %s already registered", name))
	}

	r.factories[name] = factory
	r.logger.Info("connector type registered", zap.String("name", name))
	return nil
}

// Create creates a connector instance of the configured type
func (r *Registry) Create(cfg *config.ConnectorConfig) (core.Connector, error) {
	r.mu.RLock()
	factory, exists := r.factories[cfg.Type]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeNotFound, fmt.Sprintf("connector type %s not found", cfg.Type))
	}

	conn, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create connector %s", cfg.Name))
	}

	return conn, nil
}

// List returns the registered connector type names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has checks if a connector type is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[name]
	return exists
}

// Clear removes all registered factories (mainly for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]Factory)
}

// Global registry functions

// Register registers a connector factory in the global registry
func Register(name string, factory Factory) error {
	return globalRegistry.Register(name, factory)
}

// Create creates a connector from the global registry
func Create(cfg *config.ConnectorConfig) (core.Connector, error) {
	return globalRegistry.Create(cfg)
}

// List returns registered connector types from the global registry
func List() []string {
	return globalRegistry.List()
}

// Has checks if a connector type is registered in the global registry
func Has(name string) bool {
	return globalRegistry.Has(name)
}

// GetRegistry returns the global registry instance
func GetRegistry() *Registry {
	return globalRegistry
}

package depthsensor

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/depthmesh/logging"
)

// A BackendConstructor builds a backend for a validated config.
type BackendConstructor func(ctx context.Context, conf *Config, logger logging.Logger) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]BackendConstructor{}
)

// RegisterBackend associates a model name with its constructor. It is meant to be called
// from init functions and panics on duplicate or nil registrations.
func RegisterBackend(model string, constructor BackendConstructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, old := registry[model]; old {
		panic(errors.Errorf("trying to register two backends with same model: %q", model))
	}
	if constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for model: %q", model))
	}
	registry[model] = constructor
}

func lookupBackend(model string) (BackendConstructor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	constructor, ok := registry[model]
	return constructor, ok
}

// RegisteredModels lists every registered model in sorted order.
func RegisteredModels() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	models := lo.Keys(registry)
	sort.Strings(models)
	return models
}

// NewBackend constructs the backend registered for conf.Model.
func NewBackend(ctx context.Context, conf *Config, logger logging.Logger) (Backend, error) {
	constructor, ok := lookupBackend(conf.Model)
	if !ok {
		return nil, errors.Errorf("no backend registered for model %q", conf.Model)
	}
	return constructor(ctx, conf, logger.Sublogger(conf.Model))
}

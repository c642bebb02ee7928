package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrUnknownProvider is returned when no store registered under the requested name.
var ErrUnknownProvider = errors.New("unknown store provider")

// ProviderConfig names a store and carries its provider-specific settings
type ProviderConfig struct {
	Type   string          `yaml:"type" json:"type"`
	Config json.RawMessage `yaml:"config" json:"config"`
}

// PluginConfig is what a store factory receives
type PluginConfig struct {
	// Config is ProviderConfig.Config, passed through untouched
	Config json.RawMessage

	// Timezone used for record timestamps
	Timezone *time.Location
}

// PluginFactory opens a store from its configuration
type PluginFactory func(config PluginConfig) (PluginPersistence, error)

var (
	providersMu sync.RWMutex
	providers   = make(map[string]PluginFactory)
)

// RegisterProvider makes a store available under name. Stores call it from
// init; a nil factory panics.
func RegisterProvider(name string, factory PluginFactory) {
	if factory == nil {
		panic("persistence: RegisterProvider factory is nil for " + name)
	}
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// NewPersistence opens the store named by providerConfig.Type
func NewPersistence(providerConfig ProviderConfig, pluginConfig PluginConfig) (PluginPersistence, error) {
	providersMu.RLock()
	factory, ok := providers[providerConfig.Type]
	providersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %s)", ErrUnknownProvider, providerConfig.Type, strings.Join(ListProviders(), ", "))
	}

	pluginConfig.Config = providerConfig.Config
	if pluginConfig.Timezone == nil {
		pluginConfig.Timezone = time.UTC
	}
	return factory(pluginConfig)
}

// ListProviders returns registered store names, sorted
func ListProviders() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

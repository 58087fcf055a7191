package llm

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrUnknownProvider is returned when no provider is registered under a name
	ErrUnknownProvider = errors.New("llm: provider not registered")
	// ErrProviderNotConfigured is returned when a provider lacks credentials
	ErrProviderNotConfigured = errors.New("llm: provider not configured")
)

// Router holds the chat providers and picks the one answering a request
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
	preferred string
}

// NewRouter creates a router that prefers the named provider
func NewRouter(preferred string) *Router {
	return &Router{
		providers: make(map[string]Provider),
		preferred: preferred,
	}
}

// RegisterProvider adds p under its name, replacing any earlier registration
func (r *Router) RegisterProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Resolve returns the named provider, or the preferred one for an empty name.
// When that provider is missing or unconfigured, the first configured provider
// in name order answers instead.
func (r *Router) Resolve(name string) (Provider, error) {
	if name == "" {
		name = r.preferred
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if ok && p.IsConfigured() {
		return p, nil
	}

	for _, candidate := range r.configuredLocked() {
		log.Warn().Str("requested", name).Str("provider", candidate).Msg("falling back to another chat provider")
		return r.providers[candidate], nil
	}

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, name)
}

// Configured returns the names of providers with credentials, sorted
func (r *Router) Configured() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.configuredLocked()
}

func (r *Router) configuredLocked() []string {
	var names []string
	for name, p := range r.providers {
		if p.IsConfigured() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Preferred returns the provider tried first
func (r *Router) Preferred() string {
	return r.preferred
}

// ProviderInfo describes a registered provider
type ProviderInfo struct {
	Name       string   `json:"name"`
	Models     []string `json:"models"`
	Preferred  bool     `json:"preferred"`
	Configured bool     `json:"configured"`
}

// Providers describes every registered provider, sorted by name
func (r *Router) Providers() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(r.providers))
	for name, p := range r.providers {
		infos = append(infos, ProviderInfo{
			Name:       name,
			Models:     p.AvailableModels(),
			Preferred:  name == r.preferred,
			Configured: p.IsConfigured(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

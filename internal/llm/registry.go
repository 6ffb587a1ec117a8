package llm

import (
	"sort"
	"strings"
)

// Registry holds the configured judge providers keyed by lowercased name.
// Registration is finished before any lookup; no locking.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its lowercased name. Nil providers and
// providers with a blank name are ignored; a later registration with the
// same name wins.
func (r *Registry) Register(p Provider) {
	if r == nil || p == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(p.Name()))
	if key == "" {
		return
	}
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[key] = p
}

// Get looks up a provider by name, case-insensitively.
func (r *Registry) Get(name string) (Provider, bool) {
	if r == nil || r.providers == nil {
		return nil, false
	}
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Len reports the number of registered providers.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.providers)
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	if r == nil || len(r.providers) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

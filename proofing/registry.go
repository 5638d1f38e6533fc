package proofing

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Skryldev/proofing-amp/repo"
)

// Registry maps context names to Contexts. Contexts are registered during
// startup; Resolve is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	contexts map[string]*Context
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{contexts: make(map[string]*Context)}
}

// Register builds a Context and adds it under name. Stored values reach the
// whitelist rule as they are unless WithUpgrades attaches format upgrades.
func (r *Registry) Register(name string, store repo.UserRepository, setWhitelist, unsetWhitelist []string, opts ...Option) (*Context, error) {
	if name == "" {
		return nil, fmt.Errorf("proofing: context name must not be empty")
	}
	if store == nil {
		return nil, fmt.Errorf("proofing: context %q: store must not be nil", name)
	}
	if err := checkWhitelist(name, "set", setWhitelist); err != nil {
		return nil, err
	}
	if err := checkWhitelist(name, "unset", unsetWhitelist); err != nil {
		return nil, err
	}

	c := &Context{
		name:           name,
		store:          store,
		setWhitelist:   slices.Clone(setWhitelist),
		unsetWhitelist: slices.Clone(unsetWhitelist),
	}
	for _, opt := range opts {
		opt(c)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contexts[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateContext, name)
	}
	r.contexts[name] = c
	return c, nil
}

// Resolve returns the Context registered under name, or an error wrapping
// ErrUnknownContext.
func (r *Registry) Resolve(name string) (*Context, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contexts[name]
	if !ok {
		return nil, unknownContext(name)
	}
	return c, nil
}

// Names returns the registered context names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.contexts))
	for n := range r.contexts {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func checkWhitelist(ctxName, kind string, attrs []string) error {
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		if a == "" {
			return fmt.Errorf("proofing: context %q: empty attribute in %s whitelist", ctxName, kind)
		}
		if seen[a] {
			return fmt.Errorf("proofing: context %q: %q listed twice in %s whitelist", ctxName, a, kind)
		}
		seen[a] = true
	}
	return nil
}

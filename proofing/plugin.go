package proofing

import (
	"context"

	"github.com/Skryldev/proofing-amp/models"
)

// Plugin is the entry point the attribute manager calls.
type Plugin struct {
	registry *Registry
	fetcher  *Fetcher
}

// NewPlugin returns a Plugin serving the contexts in reg. A nil fetcher gets
// the defaults of NewFetcher.
func NewPlugin(reg *Registry, fetcher *Fetcher) *Plugin {
	if fetcher == nil {
		fetcher = NewFetcher()
	}
	return &Plugin{registry: reg, fetcher: fetcher}
}

// Registry returns the registry the plugin resolves contexts from.
func (p *Plugin) Registry() *Registry { return p.registry }

// AttributeFetcher returns the patch for userID in the named context. It
// fails with ErrUnknownContext, a NotFound error from the store, or
// *models.UnknownFieldError.
func (p *Plugin) AttributeFetcher(ctx context.Context, contextName, userID string) (models.Patch, error) {
	pc, err := p.registry.Resolve(contextName)
	if err != nil {
		return models.Patch{}, err
	}
	return p.fetcher.FetchAndDiff(ctx, pc, userID)
}

// Package proofing turns the private user documents of the identity
// proofing services into attribute-manager patches.
//
// Each proofing method owns one Context: a store plus the attributes it may
// set on, and remove from, the central user record. The Fetcher reads a user
// from a context's store and diffs it against the context's whitelists.
package proofing

import (
	"slices"
	"time"

	"github.com/Skryldev/proofing-amp/models"
	"github.com/Skryldev/proofing-amp/repo"
)

// Context is the immutable configuration of one proofing context.
type Context struct {
	name           string
	store          repo.UserRepository
	setWhitelist   []string
	unsetWhitelist []string
	schema         *models.Schema
	legacy         bool
	cutover        time.Time
	filters        map[string]ValueFilter
	upgrades       []models.Upgrade
}

// Option configures a Context at registration.
type Option func(*Context)

// WithSchema records the document schema the context's store enforces.
func WithSchema(s *models.Schema) Option {
	return func(c *Context) { c.schema = s }
}

// WithLegacyCutover marks the context as legacy: stored documents keep their
// old attribute layout until cutover, and are upgraded from then on.
func WithLegacyCutover(cutover time.Time) Option {
	return func(c *Context) {
		c.legacy = true
		c.cutover = cutover.UTC()
	}
}

// WithValueFilter registers f for attr. Attributes without a filter pass
// through unchanged.
func WithValueFilter(attr string, f ValueFilter) Option {
	return func(c *Context) {
		if c.filters == nil {
			c.filters = make(map[string]ValueFilter)
		}
		c.filters[attr] = f
	}
}

// WithUpgrades sets the format upgrades applied to fetched records. A
// context registered without it applies none.
func WithUpgrades(u ...models.Upgrade) Option {
	return func(c *Context) { c.upgrades = slices.Clone(u) }
}

func (c *Context) Name() string { return c.name }

// Store returns the repository the context reads from.
func (c *Context) Store() repo.UserRepository { return c.store }

// SetWhitelist returns the attributes the context may set, in order.
func (c *Context) SetWhitelist() []string { return slices.Clone(c.setWhitelist) }

// UnsetWhitelist returns the attributes the context may remove.
func (c *Context) UnsetWhitelist() []string { return slices.Clone(c.unsetWhitelist) }

// Schema may be nil when the context was registered without one.
func (c *Context) Schema() *models.Schema { return c.schema }

// Legacy reports whether the context has a format cutover.
func (c *Context) Legacy() bool { return c.legacy }

// Cutover is zero for non-legacy contexts.
func (c *Context) Cutover() time.Time { return c.cutover }

// Upgrades returns the format upgrades applied once the context is past its
// cutover.
func (c *Context) Upgrades() []models.Upgrade { return slices.Clone(c.upgrades) }

// upgradesAt reports whether records fetched at now get their formats
// upgraded.
func (c *Context) upgradesAt(now time.Time) bool {
	return !c.legacy || !now.Before(c.cutover)
}

func (c *Context) filter(attr string) ValueFilter {
	if f, ok := c.filters[attr]; ok {
		return f
	}
	return Identity
}

func (c *Context) canUnset(attr string) bool {
	return slices.Contains(c.unsetWhitelist, attr)
}

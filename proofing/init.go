package proofing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Skryldev/proofing-amp/config"
	"github.com/Skryldev/proofing-amp/models"
	"github.com/Skryldev/proofing-amp/repo"
)

// StoreOpener opens the store of one context. *repo.Connector implements it.
type StoreOpener interface {
	Open(ctx context.Context, uri string, ns repo.Namespace, schema *models.Schema) (repo.Store, error)
}

var _ StoreOpener = (*repo.Connector)(nil)

// InitContext opens the store of the preconfigured context name and
// registers it in reg. cfg.URI is required; legacy contexts without a
// cutover keep their default one.
func InitContext(ctx context.Context, reg *Registry, opener StoreOpener, name string, cfg config.Context) (*Context, error) {
	def, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if cfg.URI == "" {
		return nil, fmt.Errorf("proofing: context %q: storage uri is required", name)
	}

	opts := []Option{WithSchema(def.Schema), WithUpgrades(models.LegacyUpgrades...)}
	cutover, hasCutover, err := cfg.CutoverTime()
	if err != nil {
		return nil, fmt.Errorf("proofing: context %q: cutover must be YYYY-MM-DD: %w", name, err)
	}
	switch {
	case def.Legacy && hasCutover:
		opts = append(opts, WithLegacyCutover(cutover))
	case def.Legacy:
		opts = append(opts, WithLegacyCutover(def.DefaultCutover))
	case hasCutover:
		return nil, fmt.Errorf("proofing: context %q has no legacy format; cutover does not apply", name)
	}

	ns := def.Namespace
	if cfg.Database != "" {
		ns.Database = cfg.Database
	}
	if cfg.Collection != "" {
		ns.Collection = cfg.Collection
	}

	store, err := opener.Open(ctx, cfg.URI, ns, def.Schema)
	if err != nil {
		return nil, fmt.Errorf("proofing: context %q: %w", name, err)
	}
	return reg.Register(def.Name, store, def.SetWhitelist, def.UnsetWhitelist, opts...)
}

// InitContextFromMap is InitContext for a loosely typed configuration
// mapping. Recognised keys are "uri" (or "MONGO_URI"), "cutover" as a
// YYYY-MM-DD string or time.Time, "database" and "collection".
func InitContextFromMap(ctx context.Context, reg *Registry, opener StoreOpener, name string, m map[string]any) (*Context, error) {
	var cfg config.Context
	var err error
	if cfg.URI, err = stringKey(m, "uri", "MONGO_URI", "mongo_uri"); err != nil {
		return nil, err
	}
	if cfg.Database, err = stringKey(m, "database"); err != nil {
		return nil, err
	}
	if cfg.Collection, err = stringKey(m, "collection"); err != nil {
		return nil, err
	}
	switch v := m["cutover"].(type) {
	case nil:
	case string:
		cfg.Cutover = v
	case time.Time:
		cfg.Cutover = v.UTC().Format(config.CutoverLayout)
	default:
		return nil, fmt.Errorf("proofing: cutover must be a YYYY-MM-DD string, got %T", v)
	}
	return InitContext(ctx, reg, opener, name, cfg)
}

func stringKey(m map[string]any, keys ...string) (string, error) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("proofing: %s must be a string, got %T", k, v)
		}
		if s != "" {
			return s, nil
		}
	}
	return "", nil
}

// InitRegistry registers every preconfigured context that cfg enables and
// gives a storage uri. It fails when no context could be registered.
func InitRegistry(ctx context.Context, cfg *config.Config, opener StoreOpener, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(ContextNames()...); err != nil {
		return nil, fmt.Errorf("proofing: invalid configuration: %w", err)
	}

	reg := NewRegistry()
	var errs []error
	for _, name := range ContextNames() {
		cc := cfg.Context(name)
		switch {
		case cc.Disabled:
			logger.InfoContext(ctx, "proofing: context disabled", slog.String("context", name))
			continue
		case cc.URI == "":
			logger.WarnContext(ctx, "proofing: context has no storage uri, skipping", slog.String("context", name))
			continue
		}
		pc, err := InitContext(ctx, reg, opener, name, cc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		logger.InfoContext(ctx, "proofing: context registered",
			slog.String("context", name),
			slog.Bool("legacy", pc.Legacy()),
		)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if len(reg.Names()) == 0 {
		return nil, errors.New("proofing: no contexts configured; set mongo_uri or contexts.<name>.uri")
	}
	return reg, nil
}

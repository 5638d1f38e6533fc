package proofing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Skryldev/proofing-amp/db"
	"github.com/Skryldev/proofing-amp/metrics"
	"github.com/Skryldev/proofing-amp/models"
	"github.com/Skryldev/proofing-amp/tracing"
)

// Fetcher reads users from a context's store and computes their patches.
// It holds no per-call state and is safe for concurrent use.
type Fetcher struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  *tracing.Tracer
	now     func() time.Time
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithMetrics records fetch latency and outcomes.
func WithMetrics(m *metrics.Metrics) FetcherOption {
	return func(f *Fetcher) { f.metrics = m }
}

// WithTracer opens one span per fetch.
func WithTracer(t *tracing.Tracer) FetcherOption {
	return func(f *Fetcher) {
		if t != nil {
			f.tracer = t
		}
	}
}

// WithClock replaces time.Now when deciding whether a cutover has passed.
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFetcher returns a Fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		logger: slog.Default(),
		tracer: tracing.New(nil),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAndDiff loads userID from pc's store and returns the patch for it.
// Errors from the store, such as NotFound and *models.UnknownFieldError,
// are returned unchanged; no partial patch is ever returned.
func (f *Fetcher) FetchAndDiff(ctx context.Context, pc *Context, userID string) (patch models.Patch, err error) {
	start := time.Now()
	ctx, span := f.tracer.StartFetch(ctx, pc.Name())
	defer func() {
		tracing.End(span, err)
		f.metrics.ObserveFetch(pc.Name(), time.Since(start))
		f.metrics.ObserveOutcome(pc.Name(), outcome(patch, err))
	}()

	f.logger.DebugContext(ctx, "proofing: fetching user",
		slog.String("context", pc.Name()),
		slog.String("user_id", userID),
	)
	record, err := pc.Store().GetByID(ctx, userID)
	if err != nil {
		f.logger.DebugContext(ctx, "proofing: fetch failed",
			slog.String("context", pc.Name()),
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return models.Patch{}, err
	}
	f.logger.DebugContext(ctx, "proofing: user found",
		slog.String("context", pc.Name()),
		slog.String("user_id", userID),
	)

	patch = Diff(pc, record, f.now())

	f.metrics.ObserveAttributes(pc.Name(), len(patch.Set), len(patch.Unset))
	f.logger.DebugContext(ctx, "proofing: will set attributes",
		slog.String("context", pc.Name()),
		slog.Any("attributes", patch.SetMap()),
	)
	f.logger.DebugContext(ctx, "proofing: will remove attributes",
		slog.String("context", pc.Name()),
		slog.Any("attributes", patch.Unset),
	)
	return patch, nil
}

// Diff computes the patch for an already fetched record. It is pure: the
// same context, record and time always give the same patch.
//
// For each attribute in set-whitelist order the filtered value goes to Set
// when truthy. Otherwise the attribute goes to Unset if the context may
// remove it, and is left out if not.
func Diff(pc *Context, record models.Record, now time.Time) models.Patch {
	if pc.upgradesAt(now) {
		record = models.UpgradeRecord(record, pc.upgrades)
	}

	var patch models.Patch
	for _, attr := range pc.setWhitelist {
		value := pc.filter(attr)(record[attr])
		switch {
		case models.Truthy(value):
			patch.Set = append(patch.Set, models.Attribute{Name: attr, Value: value})
		case pc.canUnset(attr):
			patch.Unset = append(patch.Unset, attr)
		}
	}
	return patch
}

func outcome(p models.Patch, err error) string {
	switch {
	case err == nil && p.IsEmpty():
		return metrics.OutcomeEmpty
	case err == nil:
		return metrics.OutcomePatch
	case db.IsNotFound(err):
		return metrics.OutcomeNotFound
	case errors.Is(err, models.ErrUnknownField):
		return metrics.OutcomeUnknownField
	}
	return metrics.OutcomeError
}

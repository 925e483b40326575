// Package resolver turns SSIDs into locations through the lookup cache,
// issuing at most one live query per name across runs.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/yourorg/ssidmap/internal/cache"
	"github.com/yourorg/ssidmap/internal/wigle"
	"github.com/yourorg/ssidmap/pkg/types"
)

// Lookuper queries the external geolocation service for one SSID.
type Lookuper interface {
	Lookup(ctx context.Context, ssid string) (wigle.Result, error)
}

// Observer receives one outcome per processed name.
type Observer func(types.QueryOutcome)

// Options configures a Resolver.
type Options struct {
	// Mock disables live lookups. Set it when no credentials are configured.
	Mock     bool
	Delay    time.Duration
	Logger   *slog.Logger
	Observer Observer
}

// Resolver resolves names sequentially, pacing live queries by Delay.
type Resolver struct {
	store    cache.Store
	lookup   Lookuper
	mock     bool
	delay    time.Duration
	logger   *slog.Logger
	observer Observer
}

var (
	sleepFn = sleepContext
	nowFn   = time.Now
)

// New builds a Resolver. lookup may be nil only in mock mode.
func New(store cache.Store, lookup Lookuper, opts Options) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if lookup == nil && !opts.Mock {
		return nil, errors.New("lookup is nil outside mock mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:    store,
		lookup:   lookup,
		mock:     opts.Mock,
		delay:    opts.Delay,
		logger:   logger,
		observer: opts.Observer,
	}, nil
}

// Mock reports whether live lookups are disabled.
func (r *Resolver) Mock() bool { return r.mock }

// ResolveAll resolves names in order and returns the resolved locations.
// Cached failures are skipped without a query, cached successes are reused,
// and mock mode neither queries nor caches. If ctx is cancelled the
// locations resolved so far are returned with ctx.Err().
func (r *Resolver) ResolveAll(ctx context.Context, names []string) ([]types.Location, error) {
	if r.mock {
		r.logger.Info("no lookup credentials, running in mock mode", "names", len(names))
	}
	var out []types.Location
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if rec, ok := r.store.Get(name); ok {
			if rec.IsFailed() {
				reason := rec.Reason()
				r.logger.Debug("skipping memoized failure", "ssid", name, "reason", reason.String())
				r.report(types.QueryOutcome{SSID: name, Source: types.SourceCacheFailed, Reason: &reason, Error: reason.String()})
				continue
			}
			loc := rec.Location()
			r.logger.Debug("cache hit", "ssid", name)
			r.report(types.QueryOutcome{SSID: name, Source: types.SourceCache, Success: true, Location: &loc})
			out = append(out, loc)
			continue
		}

		if r.mock {
			r.report(types.QueryOutcome{SSID: name, Source: types.SourceMock, Error: "mock mode"})
			continue
		}

		loc, ok, err := r.resolveLive(ctx, name)
		if err != nil {
			return out, err
		}
		if ok {
			out = append(out, loc)
		}

		if i < len(names)-1 && r.delay > 0 {
			if err := sleepFn(ctx, r.delay); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

// resolveLive queries name and memoizes the outcome. A lookup cut short by
// ctx is neither cached nor reported; ctx.Err() is returned instead.
func (r *Resolver) resolveLive(ctx context.Context, name string) (types.Location, bool, error) {
	r.logger.Info("querying location", "ssid", name)
	res, err := r.lookup.Lookup(ctx, name)
	if err != nil && ctx.Err() != nil {
		r.logger.Debug("lookup interrupted", "ssid", name, "err", err)
		return types.Location{}, false, ctx.Err()
	}
	if err == nil {
		if verr := types.ValidCoordinates(res.Lat, res.Lon); verr != nil {
			err = &wigle.LookupError{Kind: types.FailureNoResult, Err: verr}
		}
	}
	if err != nil {
		le := wigle.AsLookupError(err)
		reason := le.Reason()
		r.logger.Warn("lookup failed", "ssid", name, "reason", reason.String(), "err", err)
		r.persist(name, types.Failed(name, reason))
		r.report(types.QueryOutcome{SSID: name, Source: types.SourceLive, Reason: &reason, Error: reason.String()})
		return types.Location{}, false, nil
	}

	loc := types.Location{SSID: name, Lat: res.Lat, Lon: res.Lon, Address: res.Address}
	r.persist(name, types.Resolved(loc))
	r.report(types.QueryOutcome{SSID: name, Source: types.SourceLive, Success: true, Location: &loc})
	return loc, true, nil
}

// persist writes rec through to the store. A failed write is logged; the
// store keeps the record in memory so the name is not queried again this run.
func (r *Resolver) persist(name string, rec types.Record) {
	if err := r.store.Put(name, rec); err != nil {
		r.logger.Error("cache persist failed", "ssid", name, "err", err)
	}
}

func (r *Resolver) report(o types.QueryOutcome) {
	if r.observer == nil {
		return
	}
	o.Time = nowFn().UTC()
	r.observer(o)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

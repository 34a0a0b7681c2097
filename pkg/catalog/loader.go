package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	KindCohorts   = "cohorts"
	KindLocations = "locations"
	KindGroups    = "location_groups"
)

// CohortSource lists every media-plan cohort.
type CohortSource interface {
	AllCohorts(ctx context.Context) ([]CohortInfo, error)
}

// LocationSource lists locations and location groups.
type LocationSource interface {
	AllLocations(ctx context.Context) ([]LocationRef, error)
	AllGroups(ctx context.Context) (map[string]LocationGroup, error)
}

// SnapshotStore persists the last good copy of each catalog kind.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, kind string, payload []byte) error
	LoadSnapshot(ctx context.Context, kind string) ([]byte, time.Time, error)
}

// Logger abstracts logging so callers can plug logrus in.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Loader fetches the catalogs and keeps an in-memory copy for TTL.
// A failed fetch falls back to the stored snapshot, then to the previous
// in-memory copy, then to an empty list.
type Loader struct {
	Cohorts   CohortSource
	Locations LocationSource
	Store     SnapshotStore // optional
	Presets   []PresetInfo
	TTL       time.Duration // 0 = never expires once loaded
	Log       Logger

	mu        sync.Mutex
	cached    *Catalog
	fetchedAt time.Time
	now       func() time.Time
}

func (l *Loader) log() Logger {
	if l.Log == nil {
		return nopLogger{}
	}
	return l.Log
}

func (l *Loader) clock() time.Time {
	if l.now != nil {
		return l.now()
	}
	return time.Now()
}

// Get returns a private copy of the catalog, refreshing it when stale.
// The catalog is always usable; err reports which fetches degraded.
func (l *Loader) Get(ctx context.Context) (*Catalog, error) {
	l.mu.Lock()
	fresh := l.cached != nil && (l.TTL <= 0 || l.clock().Sub(l.fetchedAt) < l.TTL)
	if fresh {
		c := l.cached.Clone()
		l.mu.Unlock()
		return c, nil
	}
	l.mu.Unlock()
	return l.Refresh(ctx)
}

// FetchError reports a catalog kind whose source failed.
type FetchError struct {
	Kind string
	Err  error
}

func (e *FetchError) Error() string {
	return e.Kind + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Refresh fetches every catalog kind in parallel. Kinds whose source fails
// are served from the stored snapshot; the returned error joins one
// *FetchError per failed kind.
func (l *Loader) Refresh(ctx context.Context) (*Catalog, error) {
	var (
		cohorts   []CohortInfo
		locations []LocationRef
		groups    map[string]LocationGroup

		cohortErr, locationErr, groupErr error
	)

	var g errgroup.Group
	if l.Cohorts != nil {
		g.Go(func() error {
			cohorts, cohortErr = l.Cohorts.AllCohorts(ctx)
			return wrapFetch(KindCohorts, cohortErr)
		})
	}
	if l.Locations != nil {
		g.Go(func() error {
			locations, locationErr = l.Locations.AllLocations(ctx)
			return wrapFetch(KindLocations, locationErr)
		})
		g.Go(func() error {
			groups, groupErr = l.Locations.AllGroups(ctx)
			return wrapFetch(KindGroups, groupErr)
		})
	}
	waitErr := g.Wait()

	l.mu.Lock()
	prev := l.cached
	l.mu.Unlock()

	next := &Catalog{
		Cohorts:   cohorts,
		Locations: locations,
		Groups:    groups,
		Presets:   append([]PresetInfo(nil), l.presets()...),
	}

	var err error
	if waitErr != nil {
		var errs []error
		if cohortErr != nil {
			errs = append(errs, wrapFetch(KindCohorts, cohortErr))
			next.Cohorts = fallback(ctx, l, KindCohorts, prevCohorts(prev))
		}
		if locationErr != nil {
			errs = append(errs, wrapFetch(KindLocations, locationErr))
			next.Locations = fallback(ctx, l, KindLocations, prevLocations(prev))
		}
		if groupErr != nil {
			errs = append(errs, wrapFetch(KindGroups, groupErr))
			next.Groups = fallback(ctx, l, KindGroups, prevGroups(prev))
		}
		err = errors.Join(errs...)
		l.log().Warnf("Catalog refresh degraded, using stored copies: %v", err)
	}

	if cohortErr == nil && l.Cohorts != nil {
		l.save(ctx, KindCohorts, cohorts)
	}
	if locationErr == nil && l.Locations != nil {
		l.save(ctx, KindLocations, locations)
	}
	if groupErr == nil && l.Locations != nil {
		l.save(ctx, KindGroups, groups)
	}
	if next.Groups == nil {
		next.Groups = map[string]LocationGroup{}
	}

	l.mu.Lock()
	l.cached = next
	l.fetchedAt = l.clock()
	out := next.Clone()
	l.mu.Unlock()

	if err != nil {
		return out, err
	}
	l.log().Debugf("Catalog refreshed: %d cohorts, %d locations, %d groups", len(out.Cohorts), len(out.Locations), len(out.Groups))
	return out, nil
}

func wrapFetch(kind string, err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{Kind: kind, Err: err}
}

// Update applies fn to the cached catalog, for locations and groups the
// operator just persisted.
func (l *Loader) Update(fn func(c *Catalog)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cached == nil {
		l.cached = &Catalog{Presets: append([]PresetInfo(nil), l.presets()...), Groups: map[string]LocationGroup{}}
	}
	fn(l.cached)
}

// FetchedAt reports when the in-memory copy was last refreshed.
func (l *Loader) FetchedAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fetchedAt
}

func (l *Loader) presets() []PresetInfo {
	if len(l.Presets) == 0 {
		return DefaultPresets
	}
	return l.Presets
}

func (l *Loader) save(ctx context.Context, kind string, v interface{}) {
	if l.Store == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		l.log().Warnf("Could not encode %s snapshot: %v", kind, err)
		return
	}
	if err := l.Store.SaveSnapshot(ctx, kind, payload); err != nil {
		l.log().Warnf("Could not save %s snapshot: %v", kind, err)
	}
}

func fallback[T any](ctx context.Context, l *Loader, kind string, prev T) T {
	if l.Store != nil {
		payload, fetchedAt, err := l.Store.LoadSnapshot(ctx, kind)
		if err == nil && len(payload) > 0 {
			var v T
			if err := json.Unmarshal(payload, &v); err == nil {
				l.log().Infof("Using %s snapshot from %s", kind, fetchedAt.Format(time.RFC3339))
				return v
			}
		}
	}
	return prev
}

func prevCohorts(c *Catalog) []CohortInfo {
	if c == nil {
		return nil
	}
	return c.Cohorts
}

func prevLocations(c *Catalog) []LocationRef {
	if c == nil {
		return nil
	}
	return c.Locations
}

func prevGroups(c *Catalog) map[string]LocationGroup {
	if c == nil {
		return nil
	}
	return c.Groups
}

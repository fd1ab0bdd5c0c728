// Package catalog holds the loaded hazard collections and answers nearest
// hazard queries against an immutable snapshot of them.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/hazard-proximity-service/internal/domain"
	"github.com/couchcryptid/hazard-proximity-service/internal/observability"
)

// Finder answers nearest-hazard queries over one set of collections.
type Finder interface {
	Nearest(point domain.Geo) (domain.NearestResult, bool, error)
}

// Snapshot is one immutable load of the hazard collections.
type Snapshot struct {
	Collections []domain.Collection
	LoadedAt    time.Time
	Source      string
	finder      Finder
}

// Located returns the number of located points per category.
func (s *Snapshot) Located() map[string]int {
	out := make(map[string]int, len(s.Collections))
	for _, c := range s.Collections {
		out[c.Category] += c.Located()
	}
	return out
}

type bruteForce struct {
	resolver    *domain.Resolver
	collections []domain.Collection
}

func (b bruteForce) Nearest(point domain.Geo) (domain.NearestResult, bool, error) {
	return b.resolver.Resolve(point, b.collections)
}

// Catalog swaps snapshots atomically so queries never observe a partial load.
type Catalog struct {
	source   Source
	resolver *domain.Resolver
	indexed  bool
	metrics  *observability.Metrics
	logger   *slog.Logger

	snap   atomic.Pointer[Snapshot]
	loadMu sync.Mutex
}

// New creates an empty catalog. Call Load before serving queries.
func New(source Source, resolver *domain.Resolver, indexed bool, metrics *observability.Metrics, logger *slog.Logger) *Catalog {
	if resolver == nil {
		resolver = domain.NewResolver(nil, nil)
	}
	return &Catalog{
		source:   source,
		resolver: resolver,
		indexed:  indexed,
		metrics:  metrics,
		logger:   logger,
	}
}

// Resolver returns the resolver used for every snapshot.
func (c *Catalog) Resolver() *domain.Resolver {
	return c.resolver
}

// Load reads the source and replaces the active snapshot. A failed load keeps
// the previous snapshot.
func (c *Catalog) Load(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	start := time.Now()
	collections, err := c.source.Load(ctx)
	if err != nil {
		c.metrics.CatalogReloads.WithLabelValues("error").Inc()
		return fmt.Errorf("load hazards from %s: %w", c.source.Name(), err)
	}

	snap := c.Replace(collections)
	c.metrics.CatalogReloads.WithLabelValues("success").Inc()

	located := snap.Located()
	c.metrics.LoadedPoints.Reset()
	for category, n := range located {
		c.metrics.LoadedPoints.WithLabelValues(category).Set(float64(n))
	}
	c.logger.Info("hazard catalog loaded",
		"source", snap.Source,
		"collections", len(snap.Collections),
		"located_points", located,
		"indexed", c.indexed,
		"duration", time.Since(start),
	)
	return nil
}

// Replace installs collections as the active snapshot without consulting the source.
func (c *Catalog) Replace(collections []domain.Collection) *Snapshot {
	snap := &Snapshot{
		Collections: collections,
		LoadedAt:    domain.Now(),
		Source:      c.source.Name(),
	}
	if c.indexed {
		snap.finder = domain.NewIndexedResolver(c.resolver, collections)
	} else {
		snap.finder = bruteForce{resolver: c.resolver, collections: collections}
	}
	c.snap.Store(snap)
	return snap
}

// Snapshot returns the active snapshot, or ErrNotLoaded before the first load.
func (c *Catalog) Snapshot() (*Snapshot, error) {
	snap := c.snap.Load()
	if snap == nil {
		return nil, domain.ErrNotLoaded
	}
	return snap, nil
}

// Nearest resolves point against the active snapshot.
func (c *Catalog) Nearest(point domain.Geo) (domain.NearestResult, bool, error) {
	snap, err := c.Snapshot()
	if err != nil {
		return domain.NearestResult{}, false, err
	}
	return snap.finder.Nearest(point)
}

// CheckReadiness reports ready once a snapshot is loaded.
func (c *Catalog) CheckReadiness(_ context.Context) error {
	if c.snap.Load() == nil {
		return domain.ErrNotLoaded
	}
	return nil
}

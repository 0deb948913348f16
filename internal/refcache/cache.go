// Package refcache is the process-wide read-through cache for derived catalog
// reference data. Entries are keyed by catalog-entity id; invalidation is the
// only removal trigger, there is no TTL. A miss is cold and reloads from the
// catalog store.
package refcache

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/promdetal/costing/internal/costing"
	"github.com/promdetal/costing/internal/infra/metrics"
)

type Kind string

const (
	KindWorkCenter Kind = "work_center"
	KindMaterial   Kind = "material_category"
)

// Invalidator is the invalidation entry point catalog mutation paths call
// before their transaction completes.
type Invalidator interface {
	Invalidate(kind Kind, id int64)
}

// RatesLoader pulls fresh work-center rates from the catalog store on a cache
// miss. The bool result distinguishes "absent" from a store failure.
type RatesLoader interface {
	LoadWorkCenterRates(ctx context.Context, id int64) (costing.WorkCenterRates, bool, error)
}

// TiersLoader pulls the full price-band set of a material category.
type TiersLoader interface {
	LoadMaterialTiers(ctx context.Context, categoryID int64) ([]costing.PriceTier, error)
}

type Cache struct {
	ratesLoader RatesLoader
	tiersLoader TiersLoader
	m           *metrics.Registry

	mu    sync.Mutex
	rates map[int64]costing.WorkCenterRates
	tiers map[int64][]costing.PriceTier
	// Generation per key, bumped on Invalidate. A load that started before an
	// invalidation must not repopulate the entry with pre-mutation data.
	gen map[key]uint64
}

type key struct {
	kind Kind
	id   int64
}

func New(m *metrics.Registry) *Cache {
	return &Cache{
		m:     m,
		rates: make(map[int64]costing.WorkCenterRates),
		tiers: make(map[int64][]costing.PriceTier),
		gen:   make(map[key]uint64),
	}
}

// Bind attaches the catalog loaders. The catalog repos themselves hold the
// cache as their invalidator, so loaders arrive in a second wiring step.
func (c *Cache) Bind(rates RatesLoader, tiers TiersLoader) {
	c.ratesLoader = rates
	c.tiersLoader = tiers
}

// WorkCenterRates returns the hourly-rate components for a work-center,
// loading through to the catalog store on a miss. An absent work-center
// surfaces as costing.MissingRateError.
func (c *Cache) WorkCenterRates(ctx context.Context, id int64) (costing.WorkCenterRates, error) {
	c.mu.Lock()
	if r, ok := c.rates[id]; ok {
		c.mu.Unlock()
		c.hit()
		return r, nil
	}
	g := c.gen[key{KindWorkCenter, id}]
	c.mu.Unlock()
	c.miss()

	r, ok, err := c.ratesLoader.LoadWorkCenterRates(ctx, id)
	if err != nil {
		return costing.WorkCenterRates{}, err
	}
	if !ok {
		return costing.WorkCenterRates{}, &costing.MissingRateError{WorkCenterID: id}
	}

	c.mu.Lock()
	if c.gen[key{KindWorkCenter, id}] == g {
		c.rates[id] = r
	}
	c.mu.Unlock()
	return r, nil
}

// MaterialPricePerKg resolves the price band for the given category and
// weight. An absent category or uncovered weight surfaces as
// costing.MissingPriceError.
func (c *Cache) MaterialPricePerKg(ctx context.Context, categoryID int64, weightKg decimal.Decimal) (decimal.Decimal, error) {
	c.mu.Lock()
	tiers, ok := c.tiers[categoryID]
	g := c.gen[key{KindMaterial, categoryID}]
	c.mu.Unlock()

	if ok {
		c.hit()
	} else {
		c.miss()
		var err error
		tiers, err = c.tiersLoader.LoadMaterialTiers(ctx, categoryID)
		if err != nil {
			return decimal.Zero, err
		}
		c.mu.Lock()
		if c.gen[key{KindMaterial, categoryID}] == g {
			c.tiers[categoryID] = tiers
		}
		c.mu.Unlock()
	}

	tier, found := costing.SelectTier(tiers, weightKg)
	if !found {
		return decimal.Zero, &costing.MissingPriceError{CategoryID: categoryID, WeightKg: weightKg}
	}
	return tier.PricePerKg, nil
}

// Invalidate drops the cached entry for a catalog entity. It never
// repopulates; the next read reloads from the catalog store.
func (c *Cache) Invalidate(kind Kind, id int64) {
	c.mu.Lock()
	switch kind {
	case KindWorkCenter:
		delete(c.rates, id)
	case KindMaterial:
		delete(c.tiers, id)
	}
	c.gen[key{kind, id}]++
	c.mu.Unlock()
	if c.m != nil {
		c.m.CacheInvalidated.Inc()
	}
}

func (c *Cache) hit() {
	if c.m != nil {
		c.m.CacheHits.Inc()
	}
}

func (c *Cache) miss() {
	if c.m != nil {
		c.m.CacheMisses.Inc()
	}
}

package vm

import "golang.org/x/sync/singleflight"

// CachedValue computes a value once and serves it until the guarding
// assumption is invalidated, then recomputes on the next Get. Concurrent
// recomputations share one call to compute.
type CachedValue[V any] struct {
	name    string
	guard   *CyclicAssumption
	compute func() (V, error)
	site    *Site[struct{}, V]
	group   singleflight.Group
}

type guardedResult[V any] struct {
	value      V
	assumption *Assumption
}

// NewCachedValue creates a cached value named name. compute runs under the
// assumption current at the time it starts.
func NewCachedValue[V any](name string, guard *CyclicAssumption, compute func() (V, error), cfg SiteConfig) *CachedValue[V] {
	return &CachedValue[V]{
		name:    name,
		guard:   guard,
		compute: compute,
		site:    NewSite[struct{}, V](name, cfg),
	}
}

// Get returns the cached value, computing it if needed.
func (c *CachedValue[V]) Get() (V, error) {
	return c.site.Lookup(struct{}{}, func(struct{}) (V, *Assumption, error) {
		for {
			res, err, _ := c.group.Do(c.name, func() (interface{}, error) {
				a := c.guard.Assumption()
				v, err := c.compute()
				if err != nil {
					return nil, err
				}
				return guardedResult[V]{value: v, assumption: a}, nil
			})
			if err != nil {
				var zero V
				return zero, nil, err
			}
			// A flight joined after an invalidation carries the old token.
			if r := res.(guardedResult[V]); r.assumption.IsValid() {
				return r.value, r.assumption, nil
			}
			c.group.Forget(c.name)
		}
	})
}

// Invalidate discards the cached value for every holder of the guard.
func (c *CachedValue[V]) Invalidate() { c.guard.Invalidate() }

func (c *CachedValue[V]) State() SiteState { return c.site.State() }
func (c *CachedValue[V]) Stats() SiteStats { return c.site.Stats() }

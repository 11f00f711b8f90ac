package vm

import "sync/atomic"

// Speculative dispatch
//
// A Site caches the result of a slow computation for one static location,
// keyed on the value it last observed there. Most locations observe a single
// key for their whole life, so after the first call the result comes from
// the cache with one assumption check and one comparison:
//
//	Uninitialized -> Cached -> (assumption invalid | key mismatch) -> Uninitialized
//	any state -> Generic (terminal)
//
// The active specialization is immutable and swapped with compare-and-swap.
// A caller that loaded a specialization finishes with that snapshot even if
// another goroutine replaces it meanwhile.

// SiteState is the kind of a site's active specialization.
type SiteState uint8

const (
	StateUninitialized SiteState = iota // nothing cached; next call specializes
	StateCached                         // one (key, payload) pair cached
	StateGeneric                        // never caches again
)

func (s SiteState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCached:
		return "cached"
	case StateGeneric:
		return "generic"
	}
	return "unknown"
}

// SitePolicy tunes when a site gives up on caching.
type SitePolicy struct {
	// MaxRewrites is the number of specializations after which the site
	// goes Generic. Zero never gives up.
	MaxRewrites int

	// WarnAfter is the number of key-mismatch fall-backs after which one
	// warning is logged. Zero disables the warning.
	WarnAfter int
}

// DefaultSitePolicy returns the policy used when none is configured.
func DefaultSitePolicy() SitePolicy {
	return SitePolicy{MaxRewrites: 8, WarnAfter: 3}
}

// SiteHooks observe a site. Either field may be nil.
type SiteHooks struct {
	// SlowPath runs each time the site computes instead of using its cache.
	SlowPath func(site string)

	// Transition runs after each successful state change.
	Transition func(site string, from, to SiteState)
}

// SiteConfig bundles the settings shared by every site kind.
type SiteConfig struct {
	Policy SitePolicy
	Hooks  SiteHooks

	// Generic installs the site in the Generic state, for instrumentation
	// that must see every call.
	Generic bool
}

// DefaultSiteConfig returns a config with DefaultSitePolicy.
func DefaultSiteConfig() SiteConfig {
	return SiteConfig{Policy: DefaultSitePolicy()}
}

type specialization[K comparable, V any] struct {
	state      SiteState
	key        K
	payload    V
	assumption *Assumption
}

// Site is the generic specializing cell behind every dispatch kind.
type Site[K comparable, V any] struct {
	name   string
	policy SitePolicy
	hooks  SiteHooks

	active  atomic.Pointer[specialization[K, V]]
	blank   *specialization[K, V]
	generic *specialization[K, V]

	hits      atomic.Uint64
	misses    atomic.Uint64
	rewrites  atomic.Int64
	fallbacks atomic.Int64
}

// NewSite creates a site in the Uninitialized state, or Generic if cfg asks.
func NewSite[K comparable, V any](name string, cfg SiteConfig) *Site[K, V] {
	s := &Site[K, V]{
		name:    name,
		policy:  cfg.Policy,
		hooks:   cfg.Hooks,
		blank:   &specialization[K, V]{state: StateUninitialized},
		generic: &specialization[K, V]{state: StateGeneric},
	}
	if cfg.Generic {
		s.active.Store(s.generic)
	} else {
		s.active.Store(s.blank)
	}
	return s
}

// Name returns the site's name.
func (s *Site[K, V]) Name() string { return s.name }

// State returns the kind of the active specialization.
func (s *Site[K, V]) State() SiteState { return s.active.Load().state }

// Cached returns the cached key and payload when the site is Cached.
func (s *Site[K, V]) Cached() (key K, payload V, ok bool) {
	spec := s.active.Load()
	if spec.state != StateCached {
		return key, payload, false
	}
	return spec.key, spec.payload, true
}

// Lookup returns the payload for key. On a miss it calls resolve, which
// returns the payload and the assumption guarding it (nil for none). A
// failed resolve is returned without caching.
func (s *Site[K, V]) Lookup(key K, resolve func(K) (V, *Assumption, error)) (V, error) {
	for {
		spec := s.active.Load()
		switch spec.state {
		case StateCached:
			if !spec.assumption.IsValid() {
				s.fallBack(spec, false)
				continue
			}
			if spec.key != key {
				s.fallBack(spec, true)
				continue
			}
			s.hits.Add(1)
			return spec.payload, nil

		case StateGeneric:
			s.miss()
			v, _, err := resolve(key)
			return v, err

		default:
			s.miss()
			v, a, err := resolve(key)
			if err != nil {
				return v, err
			}
			s.specialize(spec, key, v, a)
			return v, nil
		}
	}
}

// Deoptimize moves the site to Generic permanently.
func (s *Site[K, V]) Deoptimize() {
	for {
		cur := s.active.Load()
		if cur.state == StateGeneric {
			return
		}
		if s.active.CompareAndSwap(cur, s.generic) {
			s.transition(cur.state, StateGeneric)
			return
		}
	}
}

func (s *Site[K, V]) miss() {
	s.misses.Add(1)
	if s.hooks.SlowPath != nil {
		s.hooks.SlowPath(s.name)
	}
}

// specialize replaces old with a Cached specialization, or with Generic once
// the rewrite budget is spent. If another writer replaced old first, that
// writer's specialization stays.
func (s *Site[K, V]) specialize(old *specialization[K, V], key K, v V, a *Assumption) {
	n := s.rewrites.Add(1)
	next := &specialization[K, V]{state: StateCached, key: key, payload: v, assumption: a}
	if limit := s.policy.MaxRewrites; limit > 0 && n > int64(limit) {
		next = s.generic
	}
	if !s.active.CompareAndSwap(old, next) {
		return
	}
	if next.state == StateGeneric {
		dispatchLog().Warningf("%s: respecialized %d times, going generic", s.name, n-1)
	}
	s.transition(old.state, next.state)
}

// fallBack returns a stale Cached site to Uninitialized.
func (s *Site[K, V]) fallBack(old *specialization[K, V], mismatch bool) {
	if !s.active.CompareAndSwap(old, s.blank) {
		return
	}
	s.transition(StateCached, StateUninitialized)
	if !mismatch {
		return
	}
	if n := s.fallbacks.Add(1); s.policy.WarnAfter > 0 && n == int64(s.policy.WarnAfter) {
		dispatchLog().Warningf("%s: dispatch site re-specializing, may run in a loop", s.name)
	}
}

func (s *Site[K, V]) transition(from, to SiteState) {
	if log := dispatchLog(); log.AllowLevel(debugLevel) {
		log.Debugf("%s: %s -> %s", s.name, from, to)
	}
	if s.hooks.Transition != nil {
		s.hooks.Transition(s.name, from, to)
	}
}

// Stats returns a snapshot of the site's counters.
func (s *Site[K, V]) Stats() SiteStats {
	return SiteStats{
		Name:      s.name,
		State:     s.State(),
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Rewrites:  s.rewrites.Load(),
		Fallbacks: s.fallbacks.Load(),
	}
}

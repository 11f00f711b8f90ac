package vm

import "sync/atomic"

// Assumption is a validity token shared by any number of cached
// computations. It starts valid and Invalidate flips it permanently.
// Checking it is a single atomic load.
//
// A nil *Assumption is always valid; sites whose payload depends on nothing
// but the observed key use nil.
type Assumption struct {
	name    string
	invalid atomic.Bool
}

// NewAssumption creates a valid assumption. The name appears in logs.
func NewAssumption(name string) *Assumption {
	return &Assumption{name: name}
}

// Name returns the assumption's name.
func (a *Assumption) Name() string {
	if a == nil {
		return ""
	}
	return a.name
}

// IsValid reports whether the assumption still holds.
func (a *Assumption) IsValid() bool {
	return a == nil || !a.invalid.Load()
}

// Invalidate marks the assumption invalid. It is idempotent.
func (a *Assumption) Invalidate() {
	if a == nil {
		return
	}
	if a.invalid.CompareAndSwap(false, true) {
		if log := dispatchLog(); log.AllowLevel(debugLevel) {
			log.Debugf("assumption %q invalidated", a.name)
		}
	}
}

// CyclicAssumption holds the current Assumption for a piece of state that
// can change many times, such as a method table or an environment variable.
// Each Invalidate retires the current token and publishes a fresh one.
type CyclicAssumption struct {
	name    string
	current atomic.Pointer[Assumption]
}

// NewCyclicAssumption creates a holder with a valid current assumption.
func NewCyclicAssumption(name string) *CyclicAssumption {
	c := &CyclicAssumption{name: name}
	c.current.Store(NewAssumption(name))
	return c
}

// Assumption returns the current token.
func (c *CyclicAssumption) Assumption() *Assumption {
	return c.current.Load()
}

// Invalidate publishes a fresh token, then invalidates the old one, so a
// reader that observes the old token invalid always finds a valid successor.
func (c *CyclicAssumption) Invalidate() {
	old := c.current.Swap(NewAssumption(c.name))
	old.Invalidate()
}

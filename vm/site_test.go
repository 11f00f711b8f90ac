package vm

import (
	"errors"
	"sync"
	"testing"
)

// recorder collects hook calls.
type recorder struct {
	mu          sync.Mutex
	slow        int
	transitions []SiteState
}

func (r *recorder) hooks() SiteHooks {
	return SiteHooks{
		SlowPath: func(string) {
			r.mu.Lock()
			r.slow++
			r.mu.Unlock()
		},
		Transition: func(_ string, _, to SiteState) {
			r.mu.Lock()
			r.transitions = append(r.transitions, to)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) slowCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slow
}

func configWith(r *recorder, policy SitePolicy) SiteConfig {
	return SiteConfig{Policy: policy, Hooks: r.hooks()}
}

func doubler(a *Assumption) func(int) (int, *Assumption, error) {
	return func(k int) (int, *Assumption, error) { return k * 2, a, nil }
}

func TestSiteSpecializesOnce(t *testing.T) {
	rec := &recorder{}
	s := NewSite[int, int]("t", configWith(rec, DefaultSitePolicy()))

	if s.State() != StateUninitialized {
		t.Fatalf("initial state = %s", s.State())
	}
	for i := 0; i < 5; i++ {
		v, err := s.Lookup(3, doubler(nil))
		if err != nil || v != 6 {
			t.Fatalf("Lookup = %v, %v", v, err)
		}
	}
	if s.State() != StateCached {
		t.Errorf("state = %s, want cached", s.State())
	}
	if rec.slowCount() != 1 {
		t.Errorf("slow path taken %d times, want 1", rec.slowCount())
	}
	if k, v, ok := s.Cached(); !ok || k != 3 || v != 6 {
		t.Errorf("Cached() = %v, %v, %v", k, v, ok)
	}
	st := s.Stats()
	if st.Hits != 4 || st.Misses != 1 || st.Rewrites != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestSiteKeyMismatchRespecializes(t *testing.T) {
	rec := &recorder{}
	s := NewSite[string, int]("t", configWith(rec, DefaultSitePolicy()))
	resolve := func(k string) (int, *Assumption, error) { return len(k), nil, nil }

	s.Lookup("ab", resolve)
	v, _ := s.Lookup("abcd", resolve)

	if v != 4 {
		t.Errorf("Lookup after mismatch = %d, want 4", v)
	}
	if k, _, _ := s.Cached(); k != "abcd" {
		t.Errorf("cached key = %q, want abcd", k)
	}
	want := []SiteState{StateCached, StateUninitialized, StateCached}
	if len(rec.transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", rec.transitions, want)
	}
	for i := range want {
		if rec.transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, rec.transitions[i], want[i])
		}
	}
	if s.Stats().Fallbacks != 1 {
		t.Errorf("fallbacks = %d, want 1", s.Stats().Fallbacks)
	}
}

func TestSiteInvalidAssumptionRespecializes(t *testing.T) {
	guard := NewCyclicAssumption("guard")
	version := 1
	resolve := func(int) (int, *Assumption, error) {
		return version, guard.Assumption(), nil
	}
	s := NewSite[int, int]("t", DefaultSiteConfig())

	if v, _ := s.Lookup(0, resolve); v != 1 {
		t.Fatalf("first = %d", v)
	}
	version = 2
	if v, _ := s.Lookup(0, resolve); v != 1 {
		t.Errorf("cached value should persist until invalidation, got %d", v)
	}

	guard.Invalidate()
	if v, _ := s.Lookup(0, resolve); v != 2 {
		t.Errorf("after invalidation = %d, want 2", v)
	}
	if s.State() != StateCached {
		t.Errorf("state = %s", s.State())
	}
	// Invalidation is not a key mismatch.
	if s.Stats().Fallbacks != 0 {
		t.Errorf("fallbacks = %d, want 0", s.Stats().Fallbacks)
	}
}

func TestSiteErrorNotCached(t *testing.T) {
	s := NewSite[int, int]("t", DefaultSiteConfig())
	fail := errors.New("boom")
	calls := 0
	resolve := func(int) (int, *Assumption, error) {
		calls++
		return 0, nil, fail
	}

	for i := 0; i < 3; i++ {
		if _, err := s.Lookup(1, resolve); err != fail {
			t.Fatalf("err = %v", err)
		}
	}
	if calls != 3 || s.State() != StateUninitialized {
		t.Errorf("calls = %d, state = %s", calls, s.State())
	}
}

func TestSiteGoesGenericAfterMaxRewrites(t *testing.T) {
	rec := &recorder{}
	s := NewSite[int, int]("t", configWith(rec, SitePolicy{MaxRewrites: 3}))

	for k := 0; k < 4; k++ {
		if v, _ := s.Lookup(k, doubler(nil)); v != k*2 {
			t.Fatalf("Lookup(%d) = %d", k, v)
		}
	}
	if s.State() != StateGeneric {
		t.Fatalf("state = %s, want generic", s.State())
	}

	before := rec.slowCount()
	for i := 0; i < 3; i++ {
		if v, _ := s.Lookup(0, doubler(nil)); v != 0 {
			t.Errorf("generic Lookup = %d", v)
		}
	}
	if rec.slowCount()-before != 3 {
		t.Error("generic site should take the slow path on every call")
	}
	if s.State() != StateGeneric {
		t.Error("generic is terminal")
	}
}

func TestSiteUnlimitedRewrites(t *testing.T) {
	s := NewSite[int, int]("t", SiteConfig{Policy: SitePolicy{MaxRewrites: 0}})
	for k := 0; k < 50; k++ {
		s.Lookup(k, doubler(nil))
	}
	if s.State() != StateCached {
		t.Errorf("state = %s, want cached", s.State())
	}
}

func TestSiteDeoptimize(t *testing.T) {
	rec := &recorder{}
	s := NewSite[int, int]("t", configWith(rec, DefaultSitePolicy()))
	s.Lookup(1, doubler(nil))

	s.Deoptimize()
	s.Deoptimize()
	if s.State() != StateGeneric {
		t.Fatalf("state = %s", s.State())
	}
	if _, _, ok := s.Cached(); ok {
		t.Error("generic site should report nothing cached")
	}
	s.Lookup(1, doubler(nil))
	if s.State() != StateGeneric {
		t.Error("generic is terminal")
	}
	if n := len(rec.transitions); n != 2 {
		t.Errorf("transitions = %v, want cached then generic", rec.transitions)
	}
}

func TestSiteStartGeneric(t *testing.T) {
	s := NewSite[int, int]("t", SiteConfig{Policy: DefaultSitePolicy(), Generic: true})
	s.Lookup(1, doubler(nil))
	s.Lookup(1, doubler(nil))
	if s.State() != StateGeneric || s.Stats().Misses != 2 {
		t.Errorf("state = %s, stats = %+v", s.State(), s.Stats())
	}
}

func TestSiteConcurrentLookup(t *testing.T) {
	guard := NewCyclicAssumption("guard")
	s := NewSite[int, int]("t", SiteConfig{Policy: SitePolicy{MaxRewrites: 0}})
	resolve := func(k int) (int, *Assumption, error) {
		return k * 2, guard.Assumption(), nil
	}

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := (g + i) % 3
				if v, _ := s.Lookup(k, resolve); v != k*2 {
					errs <- "wrong payload for key"
					return
				}
				if i%50 == 0 {
					guard.Invalidate()
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}

func TestSiteStateString(t *testing.T) {
	for state, want := range map[SiteState]string{
		StateUninitialized: "uninitialized",
		StateCached:        "cached",
		StateGeneric:       "generic",
		SiteState(9):       "unknown",
	} {
		if state.String() != want {
			t.Errorf("%d.String() = %q, want %q", state, state.String(), want)
		}
	}
}

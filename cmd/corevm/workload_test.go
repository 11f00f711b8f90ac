package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chazu/corevm/vm"
)

func TestWorkloadRun(t *testing.T) {
	w := newWorkload(vm.DefaultSiteConfig(), vm.NewEnvironment(map[string]string{"TZ": "UTC"}))
	if err := w.run(30); err != nil {
		t.Fatalf("run: %v", err)
	}

	// Square, Circle, Square: 4 + 3 + 4 per round of three.
	if got := w.binding.Get(0, 0); got != 110 {
		t.Errorf("total = %v, want 110", got)
	}
	if w.location.String() != "UTC" {
		t.Errorf("location = %v", w.location)
	}
	if w.name.State() != vm.StateCached {
		t.Errorf("name site = %s, want cached", w.name.State())
	}
	if w.area.Stats().Misses < 2 {
		t.Errorf("area site should have respecialized, stats = %+v", w.area.Stats())
	}

	var out bytes.Buffer
	w.report(&out)
	if !strings.Contains(out.String(), "send area") || !strings.Contains(out.String(), "total = 110") {
		t.Errorf("report:\n%s", out.String())
	}
}

func TestWorkloadGeneric(t *testing.T) {
	cfg := vm.DefaultSiteConfig()
	cfg.Generic = true
	w := newWorkload(cfg, vm.NewEnvironment(nil))
	if err := w.run(6); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, st := range w.stats() {
		if st.State != vm.StateGeneric {
			t.Errorf("%s: state = %s, want generic", st.Name, st.State)
		}
	}
}

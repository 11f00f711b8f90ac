package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/chazu/corevm/vm"
)

// workload is a small shape hierarchy driven through every site kind.
type workload struct {
	model    *vm.ClassModel
	resolver *vm.Resolver
	shapes   []vm.Value

	area     *vm.DispatchSite // polymorphic across shape classes
	name     *vm.DispatchSite // monomorphic via an included module
	scale    *vm.DispatchSite // protected, called from a shape
	each     *vm.YieldSite
	tz       *vm.CachedValue[*time.Location]
	trace    *vm.TraceProbe
	tracer   *vm.TraceManager
	binding  *vm.Scope
	location *time.Location
}

func newWorkload(cfg vm.SiteConfig, env *vm.Environment) *workload {
	model := vm.NewClassModel()
	r := vm.NewResolver(model)
	named := model.DefineModule("Named")
	shape := model.DefineClass("Shape", nil)
	square := model.DefineClass("Square", shape)
	circle := model.DefineClass("Circle", shape)
	shape.Include(named)

	r.Define(named, "name", vm.NewBodyFunc("Named#name", func(args *vm.Arguments) (vm.Value, error) {
		return model.ClassOf(args.Self).Name(), nil
	}), vm.Public)
	r.Define(shape, "area", constant("Shape#area", 0), vm.Public)
	r.Define(square, "area", constant("Square#area", 4), vm.Public)
	r.Define(circle, "area", vm.NewBodyFunc("Circle#area", func(args *vm.Arguments) (vm.Value, error) {
		// A circle's area builds on the generic shape answer.
		base, err := r.CallSuper(args.Self, circle, "area", nil)
		if err != nil {
			return nil, err
		}
		return base.(int) + 3, nil
	}), vm.Public)
	r.Define(shape, "scale", constant("Shape#scale", 2), vm.Protected)

	w := &workload{
		model:    model,
		resolver: r,
		shapes:   []vm.Value{square.NewInstance(), circle.NewInstance(), square.NewInstance()},
		area:     vm.NewDispatchSite(r, "area", cfg),
		name:     vm.NewDispatchSite(r, "name", cfg),
		scale:    vm.NewDispatchSite(r, "scale", cfg),
		each:     vm.NewYieldSite("each", cfg),
		tz:       env.TimeZone(cfg),
		tracer:   vm.NewTraceManager(),
	}
	w.trace = vm.NewTraceProbe(w.tracer, vm.SourceSection{File: "workload", Line: 1}, "Shape", cfg)
	w.binding = vm.NewScope(vm.NewLocalScope(nil, "total"), nil)
	w.binding.Set(0, 0, 0)
	return w
}

func constant(name string, v vm.Value) *vm.Body {
	return vm.NewBodyFunc(name, func(*vm.Arguments) (vm.Value, error) { return v, nil })
}

func (w *workload) run(n int) error {
	loc, err := w.tz.Get()
	if err != nil {
		return err
	}
	w.location = loc

	// The block accumulates into the method binding's "total".
	acc := vm.NewProc(vm.NewBodyFunc("each block", func(args *vm.Arguments) (vm.Value, error) {
		scope := args.DeclarationScope
		scope.Set(0, 0, scope.Get(0, 0).(int)+args.Args[0].(int))
		return nil, nil
	}), w.binding, nil)

	for i := 0; i < n; i++ {
		shape := w.shapes[i%len(w.shapes)]
		if err := w.trace.Enter(shape, w.binding); err != nil {
			return err
		}

		area, err := w.area.Invoke(nil, shape, nil)
		if err != nil {
			return err
		}
		if _, err := w.each.Yield(acc, area); err != nil {
			return err
		}
		if _, err := w.name.Invoke(nil, w.shapes[0], nil); err != nil {
			return err
		}
		if _, err := w.scale.Invoke(shape, shape, nil); err != nil {
			return err
		}
	}

	// Evaluated code against the binding sees earlier eval definitions.
	eval := w.binding.EvalScope(vm.StaticScopeFactory{})
	offset := eval.Static().(*vm.StaticScope).AddVariable("iterations")
	eval.GrowIfNeeded()
	eval.Set(offset, 0, n)
	return nil
}

func (w *workload) sources() []vm.StatsSource {
	return []vm.StatsSource{w.area, w.name, w.scale, w.each, w.tz, w.trace}
}

func (w *workload) stats() []vm.SiteStats {
	var out []vm.SiteStats
	for _, s := range w.sources() {
		out = append(out, s.Stats())
	}
	return out
}

func (w *workload) report(out io.Writer) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SITE\tSTATE\tHITS\tMISSES\tREWRITES\tHIT%")
	for _, st := range w.stats() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%.1f\n", st.Name, st.State, st.Hits, st.Misses, st.Rewrites, st.HitRate())
	}
	tw.Flush()

	agg := vm.CollectSiteStats(w.sources()...)
	fmt.Fprintf(out, "\n%d sites: %d cached, %d generic, %d uninitialized; hit rate %.1f%%\n",
		agg.TotalSites, agg.Cached, agg.Generic, agg.Uninitialized, agg.HitRate)
	fmt.Fprintf(out, "total = %v, time zone = %s\n", w.binding.Get(0, 0), w.location)
}

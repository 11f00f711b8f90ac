package vm

import (
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Line tracing
// ---------------------------------------------------------------------------

// TraceManager holds the installed trace function. Probes cache whether a
// function is installed under the manager's tracing assumption, so an
// inactive probe costs one assumption check.
type TraceManager struct {
	tracing   *CyclicAssumption
	proc      atomic.Pointer[Proc]
	suspended atomic.Bool
}

// NewTraceManager creates a manager with no trace function.
func NewTraceManager() *TraceManager {
	return &TraceManager{tracing: NewCyclicAssumption("trace function unchanged")}
}

// SetTraceFunc installs p, or removes the trace function if p is nil.
func (m *TraceManager) SetTraceFunc(p *Proc) {
	m.proc.Store(p)
	m.tracing.Invalidate()
}

// TraceFunc returns the installed trace function, or nil.
func (m *TraceManager) TraceFunc() *Proc { return m.proc.Load() }

// IsSuspended reports whether a trace function is running. Events raised
// by the trace function itself are dropped.
func (m *TraceManager) IsSuspended() bool { return m.suspended.Load() }

// TraceProbe raises "line" events for one source location.
type TraceProbe struct {
	manager   *TraceManager
	source    SourceSection
	className string
	site      *Site[struct{}, *Proc]
}

// NewTraceProbe creates a probe for source.
func NewTraceProbe(m *TraceManager, source SourceSection, className string, cfg SiteConfig) *TraceProbe {
	if className == "" {
		className = "(unknown)"
	}
	return &TraceProbe{
		manager:   m,
		source:    source,
		className: className,
		site:      NewSite[struct{}, *Proc]("trace "+source.File, cfg),
	}
}

func (p *TraceProbe) State() SiteState { return p.site.State() }
func (p *TraceProbe) Stats() SiteStats { return p.site.Stats() }

// Active reports whether the probe would call a trace function now.
func (p *TraceProbe) Active() bool { return p.current() != nil }

func (p *TraceProbe) current() *Proc {
	proc, _ := p.site.Lookup(struct{}{}, func(struct{}) (*Proc, *Assumption, error) {
		a := p.manager.tracing.Assumption()
		return p.manager.TraceFunc(), a, nil
	})
	return proc
}

// Enter raises a line event with self and the binding scope. The trace
// function receives (event, file, line, object id, binding, class name).
func (p *TraceProbe) Enter(self Value, binding *Scope) error {
	proc := p.current()
	if proc == nil || p.manager.IsSuspended() {
		return nil
	}

	p.manager.suspended.Store(true)
	defer p.manager.suspended.Store(false)

	if log := traceLog(); log.AllowLevel(debugLevel) {
		log.Debugf("line %s:%d", p.source.File, p.source.Line)
	}
	_, err := proc.Call("line", p.source.File, p.source.Line, 0, binding, p.className)
	return err
}

// ---------------------------------------------------------------------------
// Debug leave hooks
// ---------------------------------------------------------------------------

// DebugManager holds procs to run when execution leaves a source location.
type DebugManager struct {
	mu    sync.RWMutex
	hooks map[SourceSection]*leaveHook
}

type leaveHook struct {
	active *CyclicAssumption
	proc   atomic.Pointer[Proc]
}

// NewDebugManager creates a manager with no hooks.
func NewDebugManager() *DebugManager {
	return &DebugManager{hooks: make(map[SourceSection]*leaveHook)}
}

func (m *DebugManager) hook(loc SourceSection) *leaveHook {
	m.mu.RLock()
	h := m.hooks[loc]
	m.mu.RUnlock()
	if h != nil {
		return h
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if h = m.hooks[loc]; h == nil {
		h = &leaveHook{active: NewCyclicAssumption("leave hook unchanged")}
		m.hooks[loc] = h
	}
	return h
}

// SetLeaveProc runs p with the result whenever execution leaves loc.
func (m *DebugManager) SetLeaveProc(loc SourceSection, p *Proc) {
	h := m.hook(loc)
	h.proc.Store(p)
	h.active.Invalidate()
}

// RemoveLeaveProc deactivates probes at loc.
func (m *DebugManager) RemoveLeaveProc(loc SourceSection) {
	m.SetLeaveProc(loc, nil)
}

// LeaveProbe runs the leave hook, if any, for one location.
type LeaveProbe struct {
	hook *leaveHook
	site *Site[struct{}, *Proc]
}

// NewLeaveProbe creates a probe for loc.
func NewLeaveProbe(m *DebugManager, loc SourceSection, cfg SiteConfig) *LeaveProbe {
	return &LeaveProbe{
		hook: m.hook(loc),
		site: NewSite[struct{}, *Proc]("leave "+loc.File, cfg),
	}
}

func (p *LeaveProbe) State() SiteState { return p.site.State() }
func (p *LeaveProbe) Stats() SiteStats { return p.site.Stats() }

// Leave passes result to the hook proc. The result is not changed.
func (p *LeaveProbe) Leave(result Value) error {
	proc, _ := p.site.Lookup(struct{}{}, func(struct{}) (*Proc, *Assumption, error) {
		a := p.hook.active.Assumption()
		return p.hook.proc.Load(), a, nil
	})
	if proc == nil {
		return nil
	}
	_, err := proc.Call(result)
	return err
}

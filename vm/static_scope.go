package vm

import "sync"

// StaticDescriptor is the compile-time layout of one lexical block: its
// variable names in slot order and the descriptor of the enclosing block.
// Scopes consult it read-only.
type StaticDescriptor interface {
	NumberOfVariables() int
	Variables() []string
	Enclosing() StaticDescriptor

	// IsLocalScope reports whether this descriptor is the root of its chain
	// (a method body or an eval), as opposed to a nested block.
	IsLocalScope() bool
}

// DescriptorFactory creates the synthetic descriptors a scope needs at run
// time.
type DescriptorFactory interface {
	NewEvalScope(parent StaticDescriptor) StaticDescriptor
}

// ScopeKind classifies a StaticScope.
type ScopeKind uint8

const (
	LocalScope ScopeKind = iota // method or top-level body
	BlockScope                  // block, proc or lambda body
	EvalScope                   // synthetic layer for evaluating code against a binding
)

func (k ScopeKind) String() string {
	switch k {
	case LocalScope:
		return "local"
	case BlockScope:
		return "block"
	case EvalScope:
		return "eval"
	}
	return "unknown"
}

// StaticScope is the default StaticDescriptor.
//
// Local and block descriptors are fixed at creation. Eval descriptors accept
// new variables through AddVariable, because code evaluated against a binding
// may introduce locals that later evaluations against the same binding see.
type StaticScope struct {
	kind      ScopeKind
	enclosing StaticDescriptor

	mu    sync.RWMutex
	names []string
}

// NewLocalScope creates a method-level descriptor.
func NewLocalScope(enclosing StaticDescriptor, names ...string) *StaticScope {
	return newStaticScope(LocalScope, enclosing, names)
}

// NewBlockScope creates a descriptor for a block nested in enclosing.
func NewBlockScope(enclosing StaticDescriptor, names ...string) *StaticScope {
	return newStaticScope(BlockScope, enclosing, names)
}

func newStaticScope(kind ScopeKind, enclosing StaticDescriptor, names []string) *StaticScope {
	s := &StaticScope{kind: kind, enclosing: enclosing}
	s.names = append([]string(nil), names...)
	return s
}

// Kind returns the descriptor kind.
func (s *StaticScope) Kind() ScopeKind { return s.kind }

// NumberOfVariables returns the current slot count.
func (s *StaticScope) NumberOfVariables() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.names)
}

// Variables returns a copy of the variable names in slot order.
func (s *StaticScope) Variables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Enclosing returns the descriptor of the enclosing block, or nil.
func (s *StaticScope) Enclosing() StaticDescriptor { return s.enclosing }

// IsLocalScope reports whether the descriptor roots its chain.
func (s *StaticScope) IsLocalScope() bool { return s.kind != BlockScope }

// IsBlockScope reports whether the descriptor is a nested block.
func (s *StaticScope) IsBlockScope() bool { return s.kind == BlockScope }

// Offset returns the slot of name in this descriptor only, or -1.
func (s *StaticScope) Offset(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, n := range s.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Find resolves name to its (offset, depth) address by walking enclosing
// descriptors. Each enclosing level adds one to depth.
func (s *StaticScope) Find(name string) (offset, depth int, ok bool) {
	var d StaticDescriptor = s
	for depth = 0; d != nil; depth++ {
		for i, n := range d.Variables() {
			if n == name {
				return i, depth, true
			}
		}
		d = d.Enclosing()
	}
	return -1, -1, false
}

// AddVariable appends name to an eval descriptor and returns its slot. An
// existing name returns its current slot. Only eval descriptors may grow.
func (s *StaticScope) AddVariable(name string) int {
	if s.kind != EvalScope {
		panic(&InvariantViolation{Op: "AddVariable", Detail: s.kind.String() + " descriptors have a fixed variable count"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.names {
		if n == name {
			return i
		}
	}
	s.names = append(s.names, name)
	return len(s.names) - 1
}

// StaticScopeFactory builds StaticScope eval descriptors.
type StaticScopeFactory struct{}

// NewEvalScope returns an empty, growable descriptor enclosed by parent.
func (StaticScopeFactory) NewEvalScope(parent StaticDescriptor) StaticDescriptor {
	return newStaticScope(EvalScope, parent, nil)
}

package vm

import (
	"fmt"
	"strings"
)

// EvalType records whether a scope is running inside instance_eval or
// module_eval.
type EvalType uint8

const (
	EvalNone EvalType = iota
	EvalInstance
	EvalModule
)

// NumInlineSlots is the largest slot count stored directly in the Scope
// struct. Larger scopes, and all eval scopes, use the slice form.
const NumInlineSlots = 4

// Scope holds the local variables of one activation of a lexical block.
//
// Scopes use two slot layouts with identical semantics:
//   - up to 4 inline slots for the common small block
//   - a general slice for larger scopes and for eval scopes, which grow
//
// A scope is mutated only by the activation that owns it. Closures share the
// parent chain; the parent link never changes after creation.
type Scope struct {
	static StaticDescriptor
	parent *Scope

	size    int
	general bool

	slot0 Value
	slot1 Value
	slot2 Value
	slot3 Value

	slots []Value // general form only

	evalScope *Scope
	evalType  EvalType
}

// NewScope creates a scope for static, capturing parent. Every slot starts
// as Unset.
func NewScope(static StaticDescriptor, parent *Scope) *Scope {
	n := static.NumberOfVariables()
	if n > NumInlineSlots {
		return newGeneralScope(static, parent)
	}
	return &Scope{
		static: static,
		parent: parent,
		size:   n,
		slot0:  Unset,
		slot1:  Unset,
		slot2:  Unset,
		slot3:  Unset,
	}
}

func newGeneralScope(static StaticDescriptor, parent *Scope) *Scope {
	n := static.NumberOfVariables()
	s := &Scope{
		static:  static,
		parent:  parent,
		size:    n,
		general: true,
		slots:   make([]Value, n),
	}
	for i := range s.slots {
		s.slots[i] = Unset
	}
	return s
}

// Static returns the scope's descriptor.
func (s *Scope) Static() StaticDescriptor { return s.static }

// Parent returns the captured enclosing scope, or nil.
func (s *Scope) Parent() *Scope { return s.parent }

// Size returns the number of slots.
func (s *Scope) Size() int { return s.size }

// ChainLength returns the number of scopes reachable from s, including s.
func (s *Scope) ChainLength() int {
	n := 0
	for sc := s; sc != nil; sc = sc.parent {
		n++
	}
	return n
}

// NthParent returns the scope n levels above s, or nil if the chain is
// shorter. NthParent(0) is s.
func (s *Scope) NthParent(n int) *Scope {
	sc := s
	for i := 0; i < n && sc != nil; i++ {
		sc = sc.parent
	}
	return sc
}

// at returns the scope depth levels up, panicking with an AddressingError if
// the chain is too short.
func (s *Scope) at(op string, offset, depth int) *Scope {
	if depth < 0 {
		panic(&AddressingError{Op: op, Offset: offset, Depth: depth, ChainLength: s.ChainLength()})
	}
	sc := s
	for i := 0; i < depth; i++ {
		sc = sc.parent
		if sc == nil {
			panic(&AddressingError{Op: op, Offset: offset, Depth: depth, ChainLength: s.ChainLength()})
		}
	}
	return sc
}

// ref returns the storage for offset in this scope.
func (s *Scope) ref(op string, offset, depth int) *Value {
	if offset < 0 || offset >= s.size {
		panic(&AddressingError{Op: op, Offset: offset, Depth: depth, ChainLength: depth + s.ChainLength(), Size: s.size})
	}
	if s.general {
		return &s.slots[offset]
	}
	switch offset {
	case 0:
		return &s.slot0
	case 1:
		return &s.slot1
	case 2:
		return &s.slot2
	default:
		return &s.slot3
	}
}

// Get returns the value at offset in the scope depth levels up. The result
// may be Unset.
func (s *Scope) Get(offset, depth int) Value {
	return *s.at("get", offset, depth).ref("get", offset, depth)
}

// Set stores value at offset in the scope depth levels up.
func (s *Scope) Set(offset, depth int, value Value) {
	*s.at("set", offset, depth).ref("set", offset, depth) = value
}

// GetOrDefault is Get with def substituted for an Unset slot.
func (s *Scope) GetOrDefault(offset, depth int, def Value) Value {
	v := s.Get(offset, depth)
	if IsUnset(v) {
		return def
	}
	return v
}

// Local returns the value at offset in this scope.
func (s *Scope) Local(offset int) Value {
	return *s.ref("get", offset, 0)
}

// SetLocal stores value at offset in this scope.
func (s *Scope) SetLocal(offset int, value Value) {
	*s.ref("set", offset, 0) = value
}

// GrowIfNeeded resizes the slot array to match the descriptor, which may
// have gained variables since the scope was created.
func (s *Scope) GrowIfNeeded() {
	if n := s.static.NumberOfVariables(); n != s.size {
		s.Grow(n)
	}
}

// Grow resizes the slot array to newCount, keeping existing values and
// filling new slots with Unset. newCount must equal the descriptor's current
// count; anything else is an InvariantViolation.
func (s *Scope) Grow(newCount int) {
	if want := s.static.NumberOfVariables(); want != newCount {
		panic(&InvariantViolation{
			Op:     "grow",
			Detail: fmt.Sprintf("requested %d slots but descriptor has %d", newCount, want),
		})
	}
	if newCount < s.size {
		panic(&InvariantViolation{
			Op:     "grow",
			Detail: fmt.Sprintf("cannot shrink scope from %d to %d slots", s.size, newCount),
		})
	}
	if newCount == s.size {
		return
	}

	if !s.general && newCount <= NumInlineSlots {
		s.size = newCount
		return
	}

	grown := make([]Value, newCount)
	copy(grown, s.Values())
	for i := s.size; i < newCount; i++ {
		grown[i] = Unset
	}
	s.slots = grown
	s.general = true
	s.slot0, s.slot1, s.slot2, s.slot3 = nil, nil, nil, nil
	s.size = newCount

	if log := scopeLog(); log.AllowLevel(debugLevel) {
		log.Debugf("grew scope to %d slots", newCount)
	}
}

// Values returns a copy of the slot array.
func (s *Scope) Values() []Value {
	out := make([]Value, s.size)
	if s.general {
		copy(out, s.slots)
		return out
	}
	inline := [NumInlineSlots]Value{s.slot0, s.slot1, s.slot2, s.slot3}
	copy(out, inline[:s.size])
	return out
}

// AllNamesInScope returns the descriptor's variable names.
func (s *Scope) AllNamesInScope() []string {
	return s.static.Variables()
}

// SetArgValues writes positional arguments into the leading slots. At most
// Size() values are written; the caller collects any excess separately.
func (s *Scope) SetArgValues(values ...Value) {
	n := len(values)
	if n > s.size {
		n = s.size
	}
	for i := 0; i < n; i++ {
		*s.ref("set", i, 0) = values[i]
	}
}

// SetEndArgValues writes the last size elements of values into the slots
// starting at index. It is used for post-rest parameters.
func (s *Scope) SetEndArgValues(values []Value, index, size int) {
	if size > len(values) {
		size = len(values)
	}
	start := len(values) - size
	for i := 0; i < size; i++ {
		*s.ref("set", index+i, 0) = values[start+i]
	}
}

// ArgValues returns the first n slots, for re-sending arguments through an
// implicit-argument super call.
func (s *Scope) ArgValues(n int) []Value {
	if n > s.size {
		n = s.size
	}
	return s.Values()[:n]
}

// Clone returns a scope with the same descriptor, parent, eval flag and slot
// values. The eval scope is not carried over.
func (s *Scope) Clone() *Scope {
	c := &Scope{
		static:   s.static,
		parent:   s.parent,
		size:     s.size,
		general:  s.general,
		slot0:    s.slot0,
		slot1:    s.slot1,
		slot2:    s.slot2,
		slot3:    s.slot3,
		evalType: s.evalType,
	}
	if s.general {
		c.slots = append([]Value(nil), s.slots...)
	}
	return c
}

// EvalScope returns the scope that code evaluated against this binding
// writes new variables into.
//
// One eval scope exists per logical binding. If the parent's eval scope is s
// itself, s is already an eval layer and serves as its own eval scope.
// Otherwise a growable scope over s is created and kept for later requests.
func (s *Scope) EvalScope(factory DescriptorFactory) *Scope {
	if s.evalScope == nil {
		if s.parent != nil && s.parent.EvalScope(factory) == s {
			s.evalScope = s
		} else {
			s.evalScope = newGeneralScope(factory.NewEvalScope(s.static), s)
			if log := scopeLog(); log.AllowLevel(debugLevel) {
				log.Debug("created eval scope")
			}
		}
	}
	return s.evalScope
}

// FlipScope returns the nearest scope, starting at s, whose descriptor roots
// its chain. State that must exist once per method activation lives there.
func (s *Scope) FlipScope() *Scope {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.static.IsLocalScope() {
			return sc
		}
	}
	panic(&AddressingError{Op: "flip", Depth: s.ChainLength(), ChainLength: s.ChainLength()})
}

// EvalType returns the eval-context flag.
func (s *Scope) EvalType() EvalType { return s.evalType }

func (s *Scope) InInstanceEval() bool { return s.evalType == EvalInstance }
func (s *Scope) InModuleEval() bool   { return s.evalType == EvalModule }
func (s *Scope) SetInInstanceEval()   { s.evalType = EvalInstance }
func (s *Scope) SetInModuleEval()     { s.evalType = EvalModule }
func (s *Scope) ClearEvalFlag()       { s.evalType = EvalNone }

// String dumps the scope chain, one scope per line, parents indented.
func (s *Scope) String() string {
	var b strings.Builder
	s.dump(&b, "")
	return b.String()
}

func (s *Scope) dump(b *strings.Builder, indent string) {
	kind := "block"
	if s.static.IsLocalScope() {
		kind = "local"
	}
	fmt.Fprintf(b, "%s%s [", indent, kind)
	names := s.static.Variables()
	for i, v := range s.Values() {
		if i > 0 {
			b.WriteByte(',')
		}
		name := "?"
		if i < len(names) {
			name = names[i]
		}
		fmt.Fprintf(b, "%s=%s", name, formatValue(v))
	}
	b.WriteByte(']')
	if s.parent != nil {
		b.WriteByte('\n')
		s.parent.dump(b, indent+"  ")
	}
}

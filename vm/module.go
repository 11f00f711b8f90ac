package vm

import "iter"

// Module is the object-model view of a class or module that resolution and
// visibility checks need.
type Module interface {
	Name() string

	// SingletonClass returns the module's singleton class, or nil if it
	// has none.
	SingletonClass() Module

	// ParentModule returns the next module up the caller-context chain
	// walked by visibility checks, or nil at the top.
	ParentModule() Module

	// Methods returns the module's own method table.
	Methods() *MethodTable

	// Unmodified returns the current assumption that neither this module's
	// table nor any of its ancestors' tables has changed.
	Unmodified() *Assumption
}

// ObjectModel is the lookup capability the core needs from the object model.
type ObjectModel interface {
	// ClassOf returns the class dispatch starts from: the singleton class
	// when the value has one, its class otherwise.
	ClassOf(v Value) Module

	// SingletonClassOf returns the value's existing singleton class, or nil.
	SingletonClassOf(v Value) Module

	// Ancestors yields m and its ancestors in method-resolution order.
	Ancestors(m Module) iter.Seq[Module]

	// Describe renders a value for error messages.
	Describe(v Value) string
}

// ---------------------------------------------------------------------------
// Visibility
// ---------------------------------------------------------------------------

// IsVisibleToModule reports whether code running in module may call m.
//
// Protected and private use the same structural test: the module is the
// declaring module, or its singleton class is, or the test holds for its
// parent module.
func (m *MethodEntry) IsVisibleToModule(module Module) bool {
	switch m.visibility {
	case Public:
		return true
	case Protected, Private:
		for mod := module; mod != nil; mod = mod.ParentModule() {
			if mod == m.declaringModule {
				return true
			}
			if s := mod.SingletonClass(); s != nil && s == m.declaringModule {
				return true
			}
		}
		return false
	}
	return false
}

// IsVisibleTo reports whether code whose self is caller may call m. A
// caller that is itself a module is tried as a module first, then its class,
// then its singleton class.
func (m *MethodEntry) IsVisibleTo(model ObjectModel, caller Value) bool {
	if m.visibility == Public {
		return true
	}
	if mod, ok := caller.(Module); ok && m.IsVisibleToModule(mod) {
		return true
	}
	if c := model.ClassOf(caller); c != nil && m.IsVisibleToModule(c) {
		return true
	}
	if s := model.SingletonClassOf(caller); s != nil && m.IsVisibleToModule(s) {
		return true
	}
	return false
}

// IsVisibleToReceiver is IsVisibleTo with two shortcuts: a caller that is
// the receiver, or the receiver's class, may always call.
func (m *MethodEntry) IsVisibleToReceiver(model ObjectModel, caller, receiver Value) bool {
	if m.visibility == Public {
		return true
	}
	if c := model.ClassOf(receiver); c != nil && sameValue(caller, c) {
		return true
	}
	if sameValue(caller, receiver) {
		return true
	}
	return m.IsVisibleTo(model, caller)
}

// sameValue compares by identity without panicking on uncomparable values.
func sameValue(a, b Value) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

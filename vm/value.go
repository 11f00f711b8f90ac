package vm

import "fmt"

// Value is any runtime value held in a scope slot or passed to a call target.
// The core treats values opaquely; an ObjectModel gives them classes.
type Value interface{}

type unsetValue struct{}

func (unsetValue) String() string { return "<unset>" }

type nilValue struct{}

func (nilValue) String() string { return "nil" }

// Unset marks a slot that has never been written.
var Unset Value = unsetValue{}

// Nil is the language-level nil. It is a real value, unlike Unset.
var Nil Value = nilValue{}

// IsUnset reports whether v is Unset. A Go nil counts as unset too, since
// it can only appear in a slot that was never primed.
func IsUnset(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(unsetValue)
	return ok
}

// IsNil reports whether v is the language-level nil.
func IsNil(v Value) bool {
	_, ok := v.(nilValue)
	return ok
}

// formatValue renders a value for scope dumps and snapshots.
func formatValue(v Value) string {
	if IsUnset(v) {
		return "<unset>"
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}

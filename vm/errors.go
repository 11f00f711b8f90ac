package vm

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is.
var (
	// ErrNoMethod matches every *NoMethodError.
	ErrNoMethod = errors.New("no method")

	// ErrNotCallable matches every *VisibilityError.
	ErrNotCallable = errors.New("method not callable here")

	// ErrNoBlock is returned when a yield site is invoked without a block.
	ErrNoBlock = errors.New("no block given (yield)")
)

// AddressingError reports a depth/offset pair that does not exist in a scope
// chain. It means the compiler and the runtime disagree about scope layout and
// is raised with panic.
type AddressingError struct {
	Op          string
	Offset      int
	Depth       int
	ChainLength int // number of scopes reachable from the starting scope
	Size        int // slot count of the addressed scope, when it was reached
}

func (e *AddressingError) Error() string {
	if e.Depth < 0 || e.Depth >= e.ChainLength {
		return fmt.Sprintf("scope %s: depth %d exceeds chain length %d", e.Op, e.Depth, e.ChainLength)
	}
	return fmt.Sprintf("scope %s: offset %d out of range (%d slots) at depth %d", e.Op, e.Offset, e.Size, e.Depth)
}

// InvariantViolation reports an operation attempted against a structure in
// a state that forbids it. Like AddressingError it is raised with panic.
type InvariantViolation struct {
	Op     string
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Detail)
}

// NoMethodError is returned when resolution finds nothing, or finds an entry
// that has been undefined.
type NoMethodError struct {
	Name      string
	Receiver  string
	Undefined bool // an undefined entry stopped the search
	Super     bool // raised by super-call resolution
}

func (e *NoMethodError) Error() string {
	if e.Super {
		return fmt.Sprintf("super: no superclass method `%s' for %s", e.Name, e.Receiver)
	}
	return fmt.Sprintf("undefined method `%s' for %s", e.Name, e.Receiver)
}

func (e *NoMethodError) Is(target error) bool { return target == ErrNoMethod }

// VisibilityError is returned when a method exists but the calling context
// may not call it.
type VisibilityError struct {
	Name       string
	Receiver   string
	Visibility Visibility
}

func (e *VisibilityError) Error() string {
	return fmt.Sprintf("%s method `%s' called for %s", e.Visibility, e.Name, e.Receiver)
}

func (e *VisibilityError) Is(target error) bool { return target == ErrNotCallable }

package vm

import "testing"

// expectPanic runs fn and returns the recovered value, failing if fn does
// not panic.
func expectPanic(t *testing.T, fn func()) (recovered interface{}) {
	t.Helper()
	defer func() {
		recovered = recover()
		if recovered == nil {
			t.Fatal("expected panic")
		}
	}()
	fn()
	return nil
}

func expectAddressingError(t *testing.T, fn func()) *AddressingError {
	t.Helper()
	r := expectPanic(t, fn)
	err, ok := r.(*AddressingError)
	if !ok {
		t.Fatalf("panic value = %T (%v), want *AddressingError", r, r)
	}
	return err
}

func expectInvariantViolation(t *testing.T, fn func()) *InvariantViolation {
	t.Helper()
	r := expectPanic(t, fn)
	err, ok := r.(*InvariantViolation)
	if !ok {
		t.Fatalf("panic value = %T (%v), want *InvariantViolation", r, r)
	}
	return err
}

// constBody returns a body that always returns v.
func constBody(name string, v Value) *Body {
	return NewBodyFunc(name, func(*Arguments) (Value, error) { return v, nil })
}

package vm

import (
	"errors"
	"testing"
)

func TestMethodEntryMutatorsCopy(t *testing.T) {
	owner := NewClass("Owner", nil)
	other := NewClass("Other", nil)
	body := constBody("foo", 1)
	orig := NewMethodEntry("foo", owner, Public, body, WithSource("a.rb", 3))

	renamed := orig.WithNewName("bar")
	hidden := orig.WithNewVisibility(Private)
	moved := orig.WithDeclaringModule(other)
	undef := orig.Undefined()

	if orig.Name() != "foo" || orig.Visibility() != Public || orig.DeclaringModule() != owner || orig.IsUndefined() {
		t.Fatalf("original entry changed: %s %s", orig, orig.Visibility())
	}
	if renamed.Name() != "bar" || renamed == orig {
		t.Errorf("WithNewName: got %s", renamed)
	}
	if hidden.Visibility() != Private || hidden == orig {
		t.Errorf("WithNewVisibility: got %s", hidden.Visibility())
	}
	if moved.DeclaringModule() != other {
		t.Errorf("WithDeclaringModule: got %v", moved.DeclaringModule())
	}
	if !undef.IsUndefined() {
		t.Error("Undefined should mark the copy undefined")
	}

	// Copies keep identity, source and body.
	for _, e := range []*MethodEntry{renamed, hidden, moved, undef} {
		if e.ID() != orig.ID() || e.Body() != body || e.Source() != orig.Source() {
			t.Errorf("%s lost id, body or source", e)
		}
	}
}

func TestMethodEntryMutatorsNoop(t *testing.T) {
	owner := NewClass("Owner", nil)
	e := NewMethodEntry("foo", owner, Protected, constBody("foo", 1))

	if e.WithNewName("foo") != e {
		t.Error("same name should return the same entry")
	}
	if e.WithNewVisibility(Protected) != e {
		t.Error("same visibility should return the same entry")
	}
	if e.WithDeclaringModule(owner) != e {
		t.Error("same module should return the same entry")
	}
	u := e.Undefined()
	if u.Undefined() != u {
		t.Error("undefining twice should return the same entry")
	}
}

func TestMethodIDsUnique(t *testing.T) {
	a := NewMethodEntry("a", nil, Public, constBody("a", nil))
	b := NewMethodEntry("b", nil, Public, constBody("b", nil))
	if a.ID() == b.ID() {
		t.Errorf("entries share id %d", a.ID())
	}
	c := NewMethodEntry("c", nil, Public, constBody("c", nil), WithID(a.ID()))
	if c.ID() != a.ID() {
		t.Errorf("WithID: got %d, want %d", c.ID(), a.ID())
	}
}

func TestMethodEntryCall(t *testing.T) {
	scope := NewScope(NewLocalScope(nil, "x"), nil)
	var got *Arguments
	body := NewBodyFunc("m", func(args *Arguments) (Value, error) {
		got = args.Clone()
		return len(args.Args), nil
	})
	e := NewMethodEntry("m", nil, Public, body, WithDeclarationScope(scope))

	v, err := e.Call("self", nil, 1, 2, 3)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if v != 3 {
		t.Errorf("result = %v, want 3", v)
	}
	if got.Self != "self" || got.DeclarationScope != scope {
		t.Errorf("arguments = %+v", got)
	}
}

func TestMethodEntryInvokeUndefined(t *testing.T) {
	called := false
	body := NewBodyFunc("m", func(*Arguments) (Value, error) {
		called = true
		return nil, nil
	})
	e := NewMethodEntry("m", nil, Public, body).Undefined()

	_, err := e.Call(1, nil)
	if !errors.Is(err, ErrNoMethod) {
		t.Fatalf("err = %v, want ErrNoMethod", err)
	}
	var nm *NoMethodError
	if !errors.As(err, &nm) || !nm.Undefined || nm.Name != "m" {
		t.Errorf("err = %#v", err)
	}
	if called {
		t.Error("undefined entry ran its body")
	}
}

func TestMethodEntryAppendCallSite(t *testing.T) {
	var seen *DispatchSite
	body := NewBodyFunc("m", func(args *Arguments) (Value, error) {
		seen = args.Site
		return nil, nil
	})
	site := &DispatchSite{name: "m"}

	plain := NewMethodEntry("m", nil, Public, body)
	plain.Invoke(&Arguments{Site: site})
	if seen != nil {
		t.Error("site passed to an entry that did not ask for it")
	}

	withSite := NewMethodEntry("m", nil, Public, body, AppendCallSite())
	withSite.Invoke(&Arguments{Site: site})
	if seen != site {
		t.Error("site not passed to an AppendCallSite entry")
	}
}

func TestProcCall(t *testing.T) {
	scope := NewScope(NewLocalScope(nil, "x"), nil)
	scope.Set(0, 0, 41)
	body := NewBodyFunc("blk", func(args *Arguments) (Value, error) {
		return args.DeclarationScope.Get(0, 0).(int) + args.Args[0].(int), nil
	})
	p := NewProc(body, scope, "self")

	v, err := p.Call(1)
	if err != nil || v != 42 {
		t.Errorf("Call = %v, %v; want 42", v, err)
	}
	if p.Method.DeclarationScope() != scope {
		t.Error("proc entry should capture the scope")
	}
}

func TestMethodEntryString(t *testing.T) {
	e := NewMethodEntry("foo", NewClass("Owner", nil), Public, constBody("foo", nil))
	if e.String() != "Owner#foo" {
		t.Errorf("String() = %q", e.String())
	}
	if s := NewMethodEntry("bar", nil, Public, constBody("bar", nil)).String(); s != "<none>#bar" {
		t.Errorf("String() = %q", s)
	}
}

func TestMethodTablePublish(t *testing.T) {
	changes := 0
	table := NewMethodTable(func() { changes++ })

	a := NewMethodEntry("a", nil, Public, constBody("a", 1))
	if old := table.Publish(a); old != nil {
		t.Errorf("first publish replaced %v", old)
	}
	a2 := a.WithNewVisibility(Private)
	if old := table.Publish(a2); old != a {
		t.Errorf("republish replaced %v, want %v", old, a)
	}
	if table.Lookup("a") != a2 {
		t.Error("lookup should see the latest entry")
	}
	if a.Visibility() != Public {
		t.Error("holders of the old entry should keep seeing the old visibility")
	}

	table.Publish(NewMethodEntry("b", nil, Public, constBody("b", 1)))
	if got := table.Names(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Names() = %v", got)
	}
	if table.Remove("a") != a2 || table.Has("a") {
		t.Error("Remove should drop the entry")
	}
	if table.Remove("missing") != nil {
		t.Error("removing a missing name should return nil")
	}
	if changes != 4 {
		t.Errorf("onChange ran %d times, want 4", changes)
	}
	if table.Len() != 1 || len(table.Entries()) != 1 {
		t.Errorf("Len() = %d", table.Len())
	}
}

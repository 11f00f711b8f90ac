package vm

import (
	"bytes"
	"strings"
	"testing"
)

func snapshotFixture() *Scope {
	method := NewScope(NewLocalScope(nil, "x", "y"), nil)
	method.Set(0, 0, 1)
	block := NewScope(NewBlockScope(method.Static(), "z"), method)
	block.Set(0, 0, "two")
	block.SetInInstanceEval()
	return block
}

func TestSnapshotScope(t *testing.T) {
	snap := SnapshotScope(snapshotFixture(), nil)

	if snap.Depth() != 2 {
		t.Fatalf("Depth = %d, want 2", snap.Depth())
	}
	if snap.Kind != "block" || snap.Values[0] != "two" || snap.EvalType != EvalInstance {
		t.Errorf("leaf = %+v", snap)
	}
	if snap.Unset != nil {
		t.Error("fully primed scope should have no unset markers")
	}
	p := snap.Parent
	if p.Kind != "local" || p.Names[1] != "y" || p.Values[0] != "1" {
		t.Errorf("parent = %+v", p)
	}
	if len(p.Unset) != 2 || p.Unset[0] || !p.Unset[1] {
		t.Errorf("parent unset = %v", p.Unset)
	}
}

func TestSnapshotScopeDescribe(t *testing.T) {
	snap := SnapshotScope(snapshotFixture(), func(v Value) string {
		return strings.ToUpper(formatValue(v))
	})
	if snap.Values[0] != "TWO" {
		t.Errorf("Values = %v", snap.Values)
	}
	if SnapshotScope(nil, nil) != nil {
		t.Error("nil scope should give nil snapshot")
	}
}

func TestMarshalScopeSnapshotDeterministic(t *testing.T) {
	snap := SnapshotScope(snapshotFixture(), nil)

	a, err := MarshalScopeSnapshot(snap)
	if err != nil {
		t.Fatal(err)
	}
	b, err := MarshalScopeSnapshot(SnapshotScope(snapshotFixture(), nil))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("equal snapshots should encode to identical bytes")
	}

	back, err := UnmarshalScopeSnapshot(a)
	if err != nil {
		t.Fatal(err)
	}
	if back.Depth() != 2 || back.Parent.Names[0] != "x" || !back.Parent.Unset[1] {
		t.Errorf("decoded = %+v", back)
	}

	if _, err := UnmarshalScopeSnapshot([]byte{0xff}); err == nil {
		t.Error("garbage input should fail")
	}
}

package vm

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ScopeSnapshot is a detached, serializable copy of a scope chain for
// debuggers and inspectors.
type ScopeSnapshot struct {
	Kind     string         `cbor:"kind"`
	Names    []string       `cbor:"names"`
	Values   []string       `cbor:"values"`
	Unset    []bool         `cbor:"unset,omitempty"`
	EvalType EvalType       `cbor:"eval,omitempty"`
	Parent   *ScopeSnapshot `cbor:"parent,omitempty"`
}

// SnapshotScope captures s and its parents. describe renders each value;
// nil uses the value's String form.
func SnapshotScope(s *Scope, describe func(Value) string) *ScopeSnapshot {
	if s == nil {
		return nil
	}
	if describe == nil {
		describe = formatValue
	}

	kind := "block"
	if s.static.IsLocalScope() {
		kind = "local"
	}
	values := s.Values()
	snap := &ScopeSnapshot{
		Kind:     kind,
		Names:    s.static.Variables(),
		Values:   make([]string, len(values)),
		EvalType: s.evalType,
		Parent:   SnapshotScope(s.parent, describe),
	}
	for i, v := range values {
		if IsUnset(v) {
			if snap.Unset == nil {
				snap.Unset = make([]bool, len(values))
			}
			snap.Unset[i] = true
			continue
		}
		snap.Values[i] = describe(v)
	}
	return snap
}

// Depth returns the number of scopes in the snapshot chain.
func (s *ScopeSnapshot) Depth() int {
	n := 0
	for cur := s; cur != nil; cur = cur.Parent {
		n++
	}
	return n
}

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalScopeSnapshot serializes a snapshot to CBOR bytes.
func MarshalScopeSnapshot(s *ScopeSnapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalScopeSnapshot deserializes a snapshot from CBOR bytes.
func UnmarshalScopeSnapshot(data []byte) (*ScopeSnapshot, error) {
	var s ScopeSnapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("vm: unmarshal scope snapshot: %w", err)
	}
	return &s, nil
}

// MarshalSiteStats serializes site counters to CBOR bytes.
func MarshalSiteStats(stats []SiteStats) ([]byte, error) {
	return cborEncMode.Marshal(stats)
}

// UnmarshalSiteStats deserializes site counters from CBOR bytes.
func UnmarshalSiteStats(data []byte) ([]SiteStats, error) {
	var stats []SiteStats
	if err := cbor.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("vm: unmarshal site stats: %w", err)
	}
	return stats, nil
}

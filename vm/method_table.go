package vm

import (
	"sort"
	"sync"
)

// MethodTable holds the currently published entry for each name in one
// module. Readers always see a whole entry: entries are immutable and
// publishing swaps the pointer under the write lock.
type MethodTable struct {
	mu       sync.RWMutex
	methods  map[string]*MethodEntry
	onChange func()
}

// NewMethodTable creates an empty table. onChange, if non-nil, runs after
// every publish or removal, outside the lock.
func NewMethodTable(onChange func()) *MethodTable {
	return &MethodTable{
		methods:  make(map[string]*MethodEntry),
		onChange: onChange,
	}
}

// Lookup returns the entry for name in this table only, or nil.
func (t *MethodTable) Lookup(name string) *MethodEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.methods[name]
}

// Publish installs entry under its name and returns the entry it replaced.
func (t *MethodTable) Publish(entry *MethodEntry) *MethodEntry {
	t.mu.Lock()
	old := t.methods[entry.Name()]
	t.methods[entry.Name()] = entry
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange()
	}
	return old
}

// Remove deletes name from this table and returns the removed entry. Unlike
// publishing an undefined entry, removal lets resolution continue to
// ancestors.
func (t *MethodTable) Remove(name string) *MethodEntry {
	t.mu.Lock()
	old, ok := t.methods[name]
	delete(t.methods, name)
	t.mu.Unlock()

	if ok && t.onChange != nil {
		t.onChange()
	}
	return old
}

// Has reports whether this table defines name, including as undefined.
func (t *MethodTable) Has(name string) bool {
	return t.Lookup(name) != nil
}

// Len returns the number of entries.
func (t *MethodTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.methods)
}

// Names returns the defined names in sorted order.
func (t *MethodTable) Names() []string {
	t.mu.RLock()
	names := make([]string, 0, len(t.methods))
	for name := range t.methods {
		names = append(names, name)
	}
	t.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Entries returns a copy of the table.
func (t *MethodTable) Entries() map[string]*MethodEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]*MethodEntry, len(t.methods))
	for k, v := range t.methods {
		out[k] = v
	}
	return out
}

package vm

import (
	"fmt"
	"sync"
)

// ---------------------------------------------------------------------------
// Class: concrete module and class representation
// ---------------------------------------------------------------------------

// Class is the default Module implementation. A Class is either a class
// (with an optional superclass), a module (included into classes), or a
// singleton class attached to one object.
type Class struct {
	name      string
	namespace string
	isModule  bool
	attached  Value // the object a singleton class belongs to

	superclass    *Class
	lexicalParent *Class
	metaclass     *Class // class of this class when it has no singleton

	methods    *MethodTable
	unmodified *CyclicAssumption

	mu         sync.RWMutex
	includes   []*Class
	dependents []*Class // subclasses, includers and instance singletons
	singleton  *Class
}

func newClass(name string, superclass *Class, isModule bool) *Class {
	c := &Class{
		name:       name,
		superclass: superclass,
		isModule:   isModule,
		unmodified: NewCyclicAssumption(name + " is unmodified"),
	}
	c.methods = NewMethodTable(c.changed)
	if superclass != nil {
		superclass.addDependent(c)
	}
	return c
}

// NewClass creates a class with the given superclass, which may be nil.
func NewClass(name string, superclass *Class) *Class {
	return newClass(name, superclass, false)
}

// NewModule creates a module for inclusion into classes.
func NewModule(name string) *Class {
	return newClass(name, nil, true)
}

// NewClassInNamespace creates a class in a specific namespace.
func NewClassInNamespace(namespace, name string, superclass *Class) *Class {
	c := NewClass(name, superclass)
	c.namespace = namespace
	return c
}

// NewClassUnder creates a class lexically nested in parent.
func NewClassUnder(parent *Class, name string, superclass *Class) *Class {
	c := NewClassInNamespace(parent.FullName(), name, superclass)
	c.lexicalParent = parent
	return c
}

func (c *Class) addDependent(d *Class) {
	c.mu.Lock()
	c.dependents = append(c.dependents, d)
	c.mu.Unlock()
}

// changed renews the unmodified assumption of c and of everything that
// inherits from it.
func (c *Class) changed() {
	c.unmodified.Invalidate()

	c.mu.RLock()
	deps := append([]*Class(nil), c.dependents...)
	c.mu.RUnlock()

	for _, d := range deps {
		d.changed()
	}
}

// ---------------------------------------------------------------------------
// Module interface
// ---------------------------------------------------------------------------

func (c *Class) Name() string { return c.name }

func (c *Class) Methods() *MethodTable { return c.methods }

func (c *Class) Unmodified() *Assumption { return c.unmodified.Assumption() }

// SingletonClass returns the existing singleton class, or nil.
func (c *Class) SingletonClass() Module {
	if s := c.existingSingleton(); s != nil {
		return s
	}
	return nil
}

// ParentModule returns the superclass, or for a class without one (and for
// modules) the lexically enclosing module.
func (c *Class) ParentModule() Module {
	if c.superclass != nil {
		return c.superclass
	}
	if c.lexicalParent != nil {
		return c.lexicalParent
	}
	return nil
}

// ---------------------------------------------------------------------------
// Hierarchy
// ---------------------------------------------------------------------------

func (c *Class) Superclass() *Class    { return c.superclass }
func (c *Class) LexicalParent() *Class { return c.lexicalParent }
func (c *Class) IsModule() bool        { return c.isModule }
func (c *Class) IsSingleton() bool     { return c.attached != nil }

// Attached returns the object a singleton class belongs to, or nil.
func (c *Class) Attached() Value { return c.attached }

// Include mixes module m into c. Modules included later are searched first.
func (c *Class) Include(m *Class) error {
	if !m.isModule {
		return fmt.Errorf("wrong argument type %s (expected module)", m.FullName())
	}
	for _, a := range m.Ancestors() {
		if a == c {
			return fmt.Errorf("cyclic include detected: %s into %s", m.FullName(), c.FullName())
		}
	}

	c.mu.Lock()
	for _, inc := range c.includes {
		if inc == m {
			c.mu.Unlock()
			return nil
		}
	}
	c.includes = append(c.includes, m)
	c.mu.Unlock()

	m.addDependent(c)
	c.changed()
	return nil
}

// IncludedModules returns directly included modules in inclusion order.
func (c *Class) IncludedModules() []*Class {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Class(nil), c.includes...)
}

// Ancestors returns c's method-resolution order: each class on the
// superclass chain followed by its included modules, last included first.
// A module already listed is not repeated.
func (c *Class) Ancestors() []*Class {
	var out []*Class
	seen := make(map[*Class]bool)

	var add func(m *Class)
	add = func(m *Class) {
		if seen[m] {
			return
		}
		seen[m] = true
		out = append(out, m)
		incs := m.IncludedModules()
		for i := len(incs) - 1; i >= 0; i-- {
			add(incs[i])
		}
	}
	for cur := c; cur != nil; cur = cur.superclass {
		add(cur)
	}
	return out
}

// Singleton returns c's singleton class, creating it on first use. Its
// superclass is the superclass's singleton, so class-side methods inherit.
func (c *Class) Singleton() *Class {
	if s := c.existingSingleton(); s != nil {
		return s
	}

	super := c.metaclass
	if c.superclass != nil {
		super = c.superclass.Singleton()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.singleton == nil {
		s := newClass("#<Class:"+c.FullName()+">", super, false)
		s.attached = c
		c.singleton = s
	}
	return c.singleton
}

func (c *Class) existingSingleton() *Class {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.singleton
}

// IsSubclassOf returns true if c is a subclass of other (or is the same class).
func (c *Class) IsSubclassOf(other *Class) bool {
	for current := c; current != nil; current = current.superclass {
		if current == other {
			return true
		}
	}
	return false
}

// Superclasses returns all superclasses from immediate parent to root.
func (c *Class) Superclasses() []*Class {
	var result []*Class
	for current := c.superclass; current != nil; current = current.superclass {
		result = append(result, current)
	}
	return result
}

// Depth returns the inheritance depth (0 for root class).
func (c *Class) Depth() int {
	depth := 0
	for current := c.superclass; current != nil; current = current.superclass {
		depth++
	}
	return depth
}

// FullName returns the fully qualified name (namespace::name or just name).
func (c *Class) FullName() string {
	if c.namespace == "" {
		return c.name
	}
	return c.namespace + "::" + c.name
}

// String implements the Stringer interface.
func (c *Class) String() string {
	return c.FullName()
}

// ---------------------------------------------------------------------------
// ClassTable: class registry
// ---------------------------------------------------------------------------

// ClassTable manages registered classes by qualified name.
// It's thread-safe for concurrent access.
type ClassTable struct {
	mu      sync.RWMutex
	classes map[string]*Class
}

// NewClassTable creates a new empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{
		classes: make(map[string]*Class),
	}
}

// Register adds a class to the table.
// Returns the previous class with this name, or nil.
func (ct *ClassTable) Register(c *Class) *Class {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	key := c.FullName()
	old := ct.classes[key]
	ct.classes[key] = c
	return old
}

// Lookup finds a class by qualified name.
func (ct *ClassTable) Lookup(name string) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.classes[name]
}

// LookupInNamespace finds a class by name and namespace.
func (ct *ClassTable) LookupInNamespace(namespace, name string) *Class {
	key := name
	if namespace != "" {
		key = namespace + "::" + name
	}
	return ct.Lookup(key)
}

// All returns all registered classes.
func (ct *ClassTable) All() []*Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	result := make([]*Class, 0, len(ct.classes))
	for _, c := range ct.classes {
		result = append(result, c)
	}
	return result
}

// Len returns the number of registered classes.
func (ct *ClassTable) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.classes)
}

package vm

import (
	"fmt"
	"iter"
	"reflect"
	"sync"
)

// Instance is a plain object of a Class.
type Instance struct {
	class *Class

	mu        sync.Mutex
	singleton *Class
}

// NewInstance creates an instance of c.
func (c *Class) NewInstance() *Instance {
	return &Instance{class: c}
}

// Class returns the instance's class, ignoring any singleton class.
func (o *Instance) Class() *Class { return o.class }

// Singleton returns the instance's singleton class, creating it on first
// use. Creating it changes the class dispatch starts from, so sites cached
// on the plain class miss on their next call.
func (o *Instance) Singleton() *Class {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.singleton == nil {
		s := newClass("#<Class:"+o.String()+">", o.class, false)
		s.attached = o
		o.singleton = s
	}
	return o.singleton
}

func (o *Instance) existingSingleton() *Class {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.singleton
}

func (o *Instance) String() string {
	return "#<" + o.class.FullName() + ">"
}

// ---------------------------------------------------------------------------
// ClassModel: ObjectModel over Class and Instance
// ---------------------------------------------------------------------------

// ClassModel is the default ObjectModel. It owns the root classes and maps
// Go values that are not Instances onto registered classes.
type ClassModel struct {
	Object      *Class
	ModuleClass *Class
	ClassClass  *Class
	NilClass    *Class
	Classes     *ClassTable

	mu         sync.RWMutex
	primitives map[reflect.Type]*Class
}

// NewClassModel creates a model with Object, Module, Class and NilClass.
func NewClassModel() *ClassModel {
	m := &ClassModel{
		Classes:    NewClassTable(),
		primitives: make(map[reflect.Type]*Class),
	}
	m.Object = NewClass("Object", nil)
	m.ModuleClass = NewClass("Module", m.Object)
	m.ClassClass = NewClass("Class", m.ModuleClass)
	m.NilClass = NewClass("NilClass", m.Object)
	for _, c := range []*Class{m.Object, m.ModuleClass, m.ClassClass, m.NilClass} {
		c.metaclass = m.ClassClass
		m.Classes.Register(c)
	}
	return m
}

// DefineClass creates and registers a class. A nil superclass means Object.
func (m *ClassModel) DefineClass(name string, superclass *Class) *Class {
	if superclass == nil {
		superclass = m.Object
	}
	c := NewClass(name, superclass)
	c.metaclass = m.ClassClass
	m.Classes.Register(c)
	return c
}

// DefineModule creates and registers a module.
func (m *ClassModel) DefineModule(name string) *Class {
	c := NewModule(name)
	c.metaclass = m.ModuleClass
	m.Classes.Register(c)
	return c
}

// RegisterPrimitive makes every Go value of the same type as sample an
// instance of c.
func (m *ClassModel) RegisterPrimitive(sample Value, c *Class) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.primitives[reflect.TypeOf(sample)] = c
}

func (m *ClassModel) ClassOf(v Value) Module {
	switch x := v.(type) {
	case *Instance:
		if s := x.existingSingleton(); s != nil {
			return s
		}
		return x.class
	case *Class:
		if s := x.existingSingleton(); s != nil {
			return s
		}
		if x.isModule {
			return m.ModuleClass
		}
		return m.ClassClass
	case nilValue:
		return m.NilClass
	}

	m.mu.RLock()
	c := m.primitives[reflect.TypeOf(v)]
	m.mu.RUnlock()
	if c != nil {
		return c
	}
	return m.Object
}

func (m *ClassModel) SingletonClassOf(v Value) Module {
	var s *Class
	switch x := v.(type) {
	case *Instance:
		s = x.existingSingleton()
	case *Class:
		s = x.existingSingleton()
	}
	if s == nil {
		return nil
	}
	return s
}

func (m *ClassModel) Ancestors(mod Module) iter.Seq[Module] {
	return func(yield func(Module) bool) {
		if c, ok := mod.(*Class); ok {
			for _, a := range c.Ancestors() {
				if !yield(a) {
					return
				}
			}
			return
		}
		for cur := mod; cur != nil; cur = cur.ParentModule() {
			if !yield(cur) {
				return
			}
		}
	}
}

func (m *ClassModel) Describe(v Value) string {
	switch x := v.(type) {
	case *Instance:
		return x.String()
	case *Class:
		return x.FullName()
	case nilValue:
		return "nil"
	}
	return fmt.Sprintf("%s:%s", formatValue(v), m.ClassOf(v).Name())
}

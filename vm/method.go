package vm

import "sync/atomic"

// Visibility is the access level of a method.
type Visibility uint8

const (
	Public Visibility = iota
	Protected
	Private
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Protected:
		return "protected"
	case Private:
		return "private"
	}
	return "unknown"
}

// SourceSection locates a definition in source.
type SourceSection struct {
	File string
	Line int
}

// Arguments is what a call target receives.
type Arguments struct {
	DeclarationScope *Scope // scope captured when a block or closure method was defined
	Self             Value
	Block            *Proc
	Args             []Value

	// Site is the calling dispatch site. It is set only for entries that
	// ask for the implicit call-context argument.
	Site *DispatchSite
}

// Clone returns a copy with its own argument slice.
func (a *Arguments) Clone() *Arguments {
	c := *a
	c.Args = append([]Value(nil), a.Args...)
	return &c
}

// CallTarget executes a method or block body.
type CallTarget interface {
	Call(args *Arguments) (Value, error)
}

// CallTargetFunc adapts a function to CallTarget.
type CallTargetFunc func(args *Arguments) (Value, error)

func (f CallTargetFunc) Call(args *Arguments) (Value, error) { return f(args) }

// Body is the executable code behind a MethodEntry. Bodies are compared by
// identity: two entries share a body when they run the same code.
type Body struct {
	name   string
	target CallTarget
}

// NewBody wraps target under name.
func NewBody(name string, target CallTarget) *Body {
	return &Body{name: name, target: target}
}

// NewBodyFunc wraps a function under name.
func NewBodyFunc(name string, fn func(args *Arguments) (Value, error)) *Body {
	return NewBody(name, CallTargetFunc(fn))
}

func (b *Body) Name() string { return b.name }

// Call runs the body.
func (b *Body) Call(args *Arguments) (Value, error) { return b.target.Call(args) }

// MethodID identifies a method definition across renames and visibility
// changes.
type MethodID uint64

var lastMethodID atomic.Uint64

// NewMethodID returns a fresh identifier.
func NewMethodID() MethodID { return MethodID(lastMethodID.Add(1)) }

// ---------------------------------------------------------------------------
// MethodEntry
// ---------------------------------------------------------------------------

// MethodEntry is one callable unit: a method in a module, or a block treated
// as a method.
//
// Entries are immutable. The With* methods and Undefined return a new entry;
// holders of the old one keep seeing its old name and visibility until the
// owning table republishes.
type MethodEntry struct {
	source SourceSection
	id     MethodID
	name   string

	declaringModule Module
	visibility      Visibility
	undefined       bool
	appendCallSite  bool
	alwaysInline    bool

	body             *Body
	declarationScope *Scope
}

// EntryOption configures a new MethodEntry.
type EntryOption func(*MethodEntry)

// WithSource records where the method was defined.
func WithSource(file string, line int) EntryOption {
	return func(m *MethodEntry) { m.source = SourceSection{File: file, Line: line} }
}

// WithDeclarationScope captures the scope a block or closure method was
// defined in.
func WithDeclarationScope(s *Scope) EntryOption {
	return func(m *MethodEntry) { m.declarationScope = s }
}

// WithID reuses an existing method identifier.
func WithID(id MethodID) EntryOption {
	return func(m *MethodEntry) { m.id = id }
}

// AlwaysInline marks the entry as a candidate for unconditional inlining.
func AlwaysInline() EntryOption {
	return func(m *MethodEntry) { m.alwaysInline = true }
}

// AppendCallSite makes calls pass the calling DispatchSite in Arguments.Site.
func AppendCallSite() EntryOption {
	return func(m *MethodEntry) { m.appendCallSite = true }
}

// NewMethodEntry builds an entry. It does not install it anywhere.
func NewMethodEntry(name string, module Module, visibility Visibility, body *Body, opts ...EntryOption) *MethodEntry {
	m := &MethodEntry{
		name:            name,
		declaringModule: module,
		visibility:      visibility,
		body:            body,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.id == 0 {
		m.id = NewMethodID()
	}
	return m
}

func (m *MethodEntry) Name() string                { return m.name }
func (m *MethodEntry) ID() MethodID                { return m.id }
func (m *MethodEntry) Source() SourceSection       { return m.source }
func (m *MethodEntry) DeclaringModule() Module     { return m.declaringModule }
func (m *MethodEntry) Visibility() Visibility      { return m.visibility }
func (m *MethodEntry) IsUndefined() bool           { return m.undefined }
func (m *MethodEntry) AppendsCallSite() bool       { return m.appendCallSite }
func (m *MethodEntry) ShouldAlwaysInline() bool    { return m.alwaysInline }
func (m *MethodEntry) Body() *Body                 { return m.body }
func (m *MethodEntry) DeclarationScope() *Scope    { return m.declarationScope }

// WithNewName returns the entry under another name, as alias does.
func (m *MethodEntry) WithNewName(name string) *MethodEntry {
	if name == m.name {
		return m
	}
	c := *m
	c.name = name
	return &c
}

// WithNewVisibility returns the entry with another visibility.
func (m *MethodEntry) WithNewVisibility(v Visibility) *MethodEntry {
	if v == m.visibility {
		return m
	}
	c := *m
	c.visibility = v
	return &c
}

// WithDeclaringModule returns the entry owned by another module.
func (m *MethodEntry) WithDeclaringModule(module Module) *MethodEntry {
	if module == m.declaringModule {
		return m
	}
	c := *m
	c.declaringModule = module
	return &c
}

// Undefined returns an undefined copy. An undefined entry stops resolution
// without being callable.
func (m *MethodEntry) Undefined() *MethodEntry {
	if m.undefined {
		return m
	}
	c := *m
	c.undefined = true
	return &c
}

// Call invokes the body with self, block and args.
func (m *MethodEntry) Call(self Value, block *Proc, args ...Value) (Value, error) {
	return m.Invoke(&Arguments{Self: self, Block: block, Args: args})
}

// Invoke runs the body with prepared arguments. The declaration scope is
// always the entry's own.
func (m *MethodEntry) Invoke(args *Arguments) (Value, error) {
	if m.undefined {
		return nil, &NoMethodError{Name: m.name, Receiver: formatValue(args.Self), Undefined: true}
	}
	args.DeclarationScope = m.declarationScope
	if !m.appendCallSite {
		args.Site = nil
	}
	return m.body.Call(args)
}

func (m *MethodEntry) String() string {
	owner := "<none>"
	if m.declaringModule != nil {
		owner = m.declaringModule.Name()
	}
	return owner + "#" + m.name
}

// ---------------------------------------------------------------------------
// Proc
// ---------------------------------------------------------------------------

// Proc is a block or proc value: a method entry whose declaration scope is
// the captured scope, plus the self and block it closes over.
type Proc struct {
	Method *MethodEntry
	Self   Value
	Block  *Proc
}

// NewProc creates a proc over body, capturing scope and self.
func NewProc(body *Body, scope *Scope, self Value) *Proc {
	return &Proc{
		Method: NewMethodEntry(body.Name(), nil, Public, body, WithDeclarationScope(scope)),
		Self:   self,
	}
}

// Call runs the proc with args.
func (p *Proc) Call(args ...Value) (Value, error) {
	return p.Method.Invoke(&Arguments{Self: p.Self, Block: p.Block, Args: args})
}

package vm

// Resolver looks up method entries through an ObjectModel and installs new
// ones into module tables.
type Resolver struct {
	model ObjectModel
}

// NewResolver creates a resolver over model.
func NewResolver(model ObjectModel) *Resolver {
	return &Resolver{model: model}
}

// Model returns the object model.
func (r *Resolver) Model() ObjectModel { return r.model }

// ---------------------------------------------------------------------------
// Definition
// ---------------------------------------------------------------------------

// DefineOptions controls how a definition picks its visibility.
type DefineOptions struct {
	// Default is the visibility in effect at the definition site
	// (set by a preceding private/protected/public).
	Default Visibility

	// IgnoreLocalVisibility forces public, as for methods defined at the
	// top level of a singleton or through define_method.
	IgnoreLocalVisibility bool
}

// alwaysPrivate lists names that are private wherever they are defined.
var alwaysPrivate = map[string]bool{
	"initialize":          true,
	"initialize_copy":     true,
	"initialize_clone":    true,
	"initialize_dup":      true,
	"respond_to_missing?": true,
}

// DefinitionVisibility returns the visibility a new definition of name gets.
func DefinitionVisibility(name string, opts DefineOptions) Visibility {
	switch {
	case opts.IgnoreLocalVisibility:
		return Public
	case alwaysPrivate[name]:
		return Private
	default:
		return opts.Default
	}
}

// Define builds an entry for name in module and publishes it. Publishing
// renews the module's unmodified assumption.
func (r *Resolver) Define(module Module, name string, body *Body, visibility Visibility, opts ...EntryOption) *MethodEntry {
	entry := NewMethodEntry(name, module, visibility, body, opts...)
	module.Methods().Publish(entry)
	if log := dispatchLog(); log.AllowLevel(debugLevel) {
		log.Debugf("defined %s (%s)", entry, visibility)
	}
	return entry
}

// DefineWith is Define with the visibility chosen by DefinitionVisibility.
func (r *Resolver) DefineWith(module Module, name string, body *Body, dopts DefineOptions, opts ...EntryOption) *MethodEntry {
	return r.Define(module, name, body, DefinitionVisibility(name, dopts), opts...)
}

// Alias publishes the entry that name resolves to from module under newName.
func (r *Resolver) Alias(module Module, newName, name string) (*MethodEntry, error) {
	entry := r.Resolve(module, name)
	if entry == nil || entry.IsUndefined() {
		return nil, &NoMethodError{Name: name, Receiver: module.Name(), Undefined: entry != nil}
	}
	alias := entry.WithNewName(newName)
	module.Methods().Publish(alias)
	return alias, nil
}

// SetVisibility republishes name in module with visibility v. An inherited
// method is copied into module, leaving the ancestor's entry untouched.
func (r *Resolver) SetVisibility(module Module, name string, v Visibility) (*MethodEntry, error) {
	entry := r.Resolve(module, name)
	if entry == nil || entry.IsUndefined() {
		return nil, &NoMethodError{Name: name, Receiver: module.Name(), Undefined: entry != nil}
	}
	changed := entry.WithNewVisibility(v)
	if changed == entry && module.Methods().Lookup(name) == entry {
		return entry, nil
	}
	module.Methods().Publish(changed)
	return changed, nil
}

// Undefine publishes an undefined entry for name in module, which stops
// resolution at module.
func (r *Resolver) Undefine(module Module, name string) (*MethodEntry, error) {
	entry := r.Resolve(module, name)
	if entry == nil || entry.IsUndefined() {
		return nil, &NoMethodError{Name: name, Receiver: module.Name(), Undefined: entry != nil}
	}
	undef := entry.Undefined().WithDeclaringModule(module)
	module.Methods().Publish(undef)
	return undef, nil
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// Resolve walks the ancestors of start and returns the first entry for
// name, or nil. An undefined entry is returned as found; callers must check
// IsUndefined before calling it.
func (r *Resolver) Resolve(start Module, name string) *MethodEntry {
	for m := range r.model.Ancestors(start) {
		if entry := m.Methods().Lookup(name); entry != nil {
			return entry
		}
	}
	return nil
}

// Find resolves name for receiver. It returns a *NoMethodError when nothing
// is found or the found entry is undefined.
func (r *Resolver) Find(receiver Value, name string) (*MethodEntry, error) {
	entry := r.Resolve(r.model.ClassOf(receiver), name)
	if entry == nil || entry.IsUndefined() {
		return nil, &NoMethodError{Name: name, Receiver: r.model.Describe(receiver), Undefined: entry != nil}
	}
	return entry, nil
}

// FindCallable is Find plus the visibility check for a call made from code
// whose self is caller.
func (r *Resolver) FindCallable(caller, receiver Value, name string) (*MethodEntry, error) {
	entry, err := r.Find(receiver, name)
	if err != nil {
		return nil, err
	}
	if !entry.IsVisibleToReceiver(r.model, caller, receiver) {
		return nil, &VisibilityError{Name: name, Receiver: r.model.Describe(receiver), Visibility: entry.Visibility()}
	}
	return entry, nil
}

// ResolveSuper resolves name for a super call made by a method declared in
// declaring, with self as the receiver. The search starts at the ancestor
// after declaring in self's chain, so overrides in self's class and in
// declaring itself are skipped.
func (r *Resolver) ResolveSuper(self Value, declaring Module, name string) (*MethodEntry, error) {
	passed := false
	undefined := false
	for m := range r.model.Ancestors(r.model.ClassOf(self)) {
		if !passed {
			passed = m == declaring
			continue
		}
		if entry := m.Methods().Lookup(name); entry != nil {
			if !entry.IsUndefined() {
				return entry, nil
			}
			undefined = true
			break
		}
	}
	return nil, &NoMethodError{Name: name, Receiver: r.model.Describe(self), Undefined: undefined, Super: true}
}

// CallSuper resolves and calls the super method.
func (r *Resolver) CallSuper(self Value, declaring Module, name string, block *Proc, args ...Value) (Value, error) {
	entry, err := r.ResolveSuper(self, declaring, name)
	if err != nil {
		return nil, err
	}
	return entry.Call(self, block, args...)
}

// SuperDefined answers defined?(super): "super" when a callable super
// method exists, "" otherwise.
func (r *Resolver) SuperDefined(self Value, declaring Module, name string) string {
	entry, err := r.ResolveSuper(self, declaring, name)
	if err != nil || !entry.IsVisibleTo(r.model, self) {
		return ""
	}
	return "super"
}

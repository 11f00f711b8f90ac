package vm

// DispatchSite is the inline cache for one method call location. It caches
// the entry found for the receiver's class, guarded by that class's
// unmodified assumption.
type DispatchSite struct {
	name             string
	resolver         *Resolver
	ignoreVisibility bool
	site             *Site[Module, *MethodEntry]
}

// NewDispatchSite creates a site that calls name.
func NewDispatchSite(r *Resolver, name string, cfg SiteConfig) *DispatchSite {
	return &DispatchSite{
		name:     name,
		resolver: r,
		site:     NewSite[Module, *MethodEntry]("send "+name, cfg),
	}
}

// NewSelfCallSite creates a site for a call with an implicit self receiver,
// which skips visibility checks.
func NewSelfCallSite(r *Resolver, name string, cfg SiteConfig) *DispatchSite {
	d := NewDispatchSite(r, name, cfg)
	d.ignoreVisibility = true
	return d
}

// Name returns the method name the site calls.
func (d *DispatchSite) Name() string { return d.name }

// State returns the site's current state.
func (d *DispatchSite) State() SiteState { return d.site.State() }

// Stats returns the site's counters.
func (d *DispatchSite) Stats() SiteStats { return d.site.Stats() }

// Deoptimize makes the site resolve on every call from now on.
func (d *DispatchSite) Deoptimize() { d.site.Deoptimize() }

// CachedEntry returns the cached receiver class and entry, if any.
func (d *DispatchSite) CachedEntry() (Module, *MethodEntry, bool) {
	return d.site.Cached()
}

// Invoke calls the method on receiver from code whose self is caller.
func (d *DispatchSite) Invoke(caller, receiver Value, block *Proc, args ...Value) (Value, error) {
	entry, err := d.Lookup(caller, receiver)
	if err != nil {
		return nil, err
	}
	return entry.Invoke(&Arguments{Self: receiver, Block: block, Args: args, Site: d})
}

// Lookup returns the entry Invoke would call, without calling it.
func (d *DispatchSite) Lookup(caller, receiver Value) (*MethodEntry, error) {
	model := d.resolver.Model()
	class := model.ClassOf(receiver)

	entry, err := d.site.Lookup(class, func(class Module) (*MethodEntry, *Assumption, error) {
		// Read the assumption before resolving so a concurrent change
		// during the walk leaves the new entry already stale.
		guard := class.Unmodified()
		entry := d.resolver.Resolve(class, d.name)
		if entry == nil || entry.IsUndefined() {
			return nil, nil, &NoMethodError{Name: d.name, Receiver: model.Describe(receiver), Undefined: entry != nil}
		}
		return entry, guard, nil
	})
	if err != nil {
		return nil, err
	}

	// The cache is keyed on the receiver only; callers at one location can
	// still differ, so restricted entries are checked on every call.
	if !d.ignoreVisibility && entry.Visibility() != Public && !entry.IsVisibleToReceiver(model, caller, receiver) {
		return nil, &VisibilityError{Name: d.name, Receiver: model.Describe(receiver), Visibility: entry.Visibility()}
	}
	return entry, nil
}

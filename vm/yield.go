package vm

// YieldSite dispatches a yield to the block passed to the current method.
// It caches on the block's body; the block's own declaration scope and self
// are used on every call, so one cached body serves every closure created
// from the same block literal.
type YieldSite struct {
	site *Site[*Body, *Body]
}

// NewYieldSite creates a yield site.
func NewYieldSite(name string, cfg SiteConfig) *YieldSite {
	return &YieldSite{site: NewSite[*Body, *Body]("yield "+name, cfg)}
}

func (y *YieldSite) State() SiteState { return y.site.State() }
func (y *YieldSite) Stats() SiteStats { return y.site.Stats() }
func (y *YieldSite) Deoptimize()      { y.site.Deoptimize() }

// Yield calls block with args.
func (y *YieldSite) Yield(block *Proc, args ...Value) (Value, error) {
	if block == nil {
		return nil, ErrNoBlock
	}
	body, err := y.site.Lookup(block.Method.Body(), func(b *Body) (*Body, *Assumption, error) {
		return b, nil, nil
	})
	if err != nil {
		return nil, err
	}
	return body.Call(&Arguments{
		DeclarationScope: block.Method.DeclarationScope(),
		Self:             block.Self,
		Block:            block.Block,
		Args:             args,
	})
}

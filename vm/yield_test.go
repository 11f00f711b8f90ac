package vm

import (
	"errors"
	"testing"
)

func TestYieldReusesBodyAcrossClosures(t *testing.T) {
	rec := &recorder{}
	y := NewYieldSite("each", configWith(rec, DefaultSitePolicy()))

	static := NewLocalScope(nil, "n")
	body := NewBodyFunc("blk", func(args *Arguments) (Value, error) {
		return args.DeclarationScope.Get(0, 0).(int) + args.Args[0].(int), nil
	})

	// Two closures from the same block literal share the body.
	s1 := NewScope(static, nil)
	s1.Set(0, 0, 10)
	s2 := NewScope(static, nil)
	s2.Set(0, 0, 20)

	v1, err := y.Yield(NewProc(body, s1, nil), 1)
	if err != nil || v1 != 11 {
		t.Fatalf("first yield = %v, %v", v1, err)
	}
	v2, err := y.Yield(NewProc(body, s2, nil), 1)
	if err != nil || v2 != 21 {
		t.Fatalf("second yield = %v, %v", v2, err)
	}
	if rec.slowCount() != 1 || y.State() != StateCached {
		t.Errorf("slow = %d, state = %s; want one slow path and cached", rec.slowCount(), y.State())
	}
}

func TestYieldDifferentBodyRespecializes(t *testing.T) {
	y := NewYieldSite("each", DefaultSiteConfig())
	a := NewProc(constBody("a", "a"), nil, nil)
	b := NewProc(constBody("b", "b"), nil, nil)

	y.Yield(a)
	if v, _ := y.Yield(b); v != "b" {
		t.Errorf("yield b = %v", v)
	}
	if y.Stats().Fallbacks != 1 {
		t.Errorf("fallbacks = %d, want 1", y.Stats().Fallbacks)
	}
}

func TestYieldPassesSelfAndBlock(t *testing.T) {
	y := NewYieldSite("tap", DefaultSiteConfig())
	inner := NewProc(constBody("inner", nil), nil, nil)
	var got *Arguments
	p := NewProc(NewBodyFunc("outer", func(args *Arguments) (Value, error) {
		got = args.Clone()
		return nil, nil
	}), nil, "me")
	p.Block = inner

	y.Yield(p, 1, 2)
	if got.Self != "me" || got.Block != inner || len(got.Args) != 2 {
		t.Errorf("arguments = %+v", got)
	}
}

func TestYieldWithoutBlock(t *testing.T) {
	y := NewYieldSite("each", DefaultSiteConfig())
	if _, err := y.Yield(nil); !errors.Is(err, ErrNoBlock) {
		t.Errorf("err = %v, want ErrNoBlock", err)
	}
	if y.State() != StateUninitialized {
		t.Errorf("state = %s", y.State())
	}
}

func TestYieldDeoptimize(t *testing.T) {
	y := NewYieldSite("each", DefaultSiteConfig())
	y.Deoptimize()
	if v, err := y.Yield(NewProc(constBody("a", 7), nil, nil)); err != nil || v != 7 {
		t.Errorf("yield = %v, %v", v, err)
	}
	if y.State() != StateGeneric {
		t.Errorf("state = %s", y.State())
	}
}

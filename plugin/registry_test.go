package plugin_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/xraph/payroute/plugin"
)

// recorder implements a subset of the hook interfaces and counts calls.
type recorder struct {
	name string

	outcomes atomic.Int64
	denials  atomic.Int64
	fail     bool
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnOutcomeRecorded(_ context.Context, _ string, _ bool, _ int64) error {
	r.outcomes.Add(1)
	if r.fail {
		return errors.New("hook failure")
	}
	return nil
}

func (r *recorder) OnScopeDenied(_ context.Context, _, _, _ string) error {
	r.denials.Add(1)
	return nil
}

func TestRegisterAndLookup(t *testing.T) {
	reg := plugin.NewRegistry()

	p := &recorder{name: "metrics"}
	if err := reg.Register(p); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(&recorder{name: "metrics"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}

	if got := reg.Get("metrics"); got != p {
		t.Error("Get returned wrong plugin")
	}
	if got := reg.Get("missing"); got != nil {
		t.Error("Get for unknown name should return nil")
	}
	if reg.Count() != 1 {
		t.Errorf("Count: got %d, want 1", reg.Count())
	}
	if len(reg.List()) != 1 {
		t.Errorf("List: got %d entries", len(reg.List()))
	}
}

func TestEmitDispatchesToImplementors(t *testing.T) {
	reg := plugin.NewRegistry()
	ctx := context.Background()

	p := &recorder{name: "audit"}
	if err := reg.Register(p); err != nil {
		t.Fatal(err)
	}

	reg.EmitOutcomeRecorded(ctx, "acct_x", true, 100)
	reg.EmitOutcomeRecorded(ctx, "acct_x", false, 200)
	reg.EmitScopeDenied(ctx, "user", "CLIENT", "comp_y")

	// Hooks the plugin does not implement dispatch to nobody without error.
	reg.EmitHealthChanged(ctx, "acct_x", "healthy", "down")
	reg.EmitUsageReset(ctx, "day", 3)

	if got := p.outcomes.Load(); got != 2 {
		t.Errorf("outcome calls: got %d, want 2", got)
	}
	if got := p.denials.Load(); got != 1 {
		t.Errorf("denial calls: got %d, want 1", got)
	}
}

func TestEmitSurvivesFailingPlugin(t *testing.T) {
	reg := plugin.NewRegistry()
	ctx := context.Background()

	failing := &recorder{name: "failing", fail: true}
	healthy := &recorder{name: "healthy"}
	if err := reg.Register(failing); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(healthy); err != nil {
		t.Fatal(err)
	}

	// A failing hook is logged, not propagated; later plugins still run.
	reg.EmitOutcomeRecorded(ctx, "acct_x", true, 100)

	if got := healthy.outcomes.Load(); got != 1 {
		t.Errorf("healthy plugin calls: got %d, want 1", got)
	}
}

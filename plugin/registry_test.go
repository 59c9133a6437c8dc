package plugin

import (
	"context"
	"testing"

	"github.com/xraph/cascade/entitlement"
)

type checkRecorder struct {
	name    string
	checked []entitlement.Request
	events  []*entitlement.Event
}

func (p *checkRecorder) Name() string { return p.name }

func (p *checkRecorder) OnEntitlementChecked(_ context.Context, req entitlement.Request, _ entitlement.Decision) error {
	p.checked = append(p.checked, req)
	return nil
}

func (p *checkRecorder) OnUpgradeTriggered(_ context.Context, event *entitlement.Event) error {
	p.events = append(p.events, event)
	return nil
}

type namedOnly struct{ name string }

func (p *namedOnly) Name() string { return p.name }

func TestRegisterAndDispatch(t *testing.T) {
	r := NewRegistry()
	rec := &checkRecorder{name: "recorder"}
	if err := r.Register(rec); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&namedOnly{name: "noop"}); err != nil {
		t.Fatal(err)
	}
	if r.Count() != 2 {
		t.Fatalf("Count = %d, want 2", r.Count())
	}

	ctx := context.Background()
	r.EmitEntitlementChecked(ctx, entitlement.Request{TenantID: "T1", FeatureKey: "pages"}, entitlement.Decision{Allowed: true})
	r.EmitUpgradeTriggered(ctx, &entitlement.Event{TenantID: "T1"})

	if len(rec.checked) != 1 || rec.checked[0].TenantID != "T1" {
		t.Errorf("checked = %+v, want one T1 request", rec.checked)
	}
	if len(rec.events) != 1 {
		t.Errorf("events = %d, want 1", len(rec.events))
	}
}

func TestDuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&namedOnly{name: "dup"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&namedOnly{name: "dup"}); err == nil {
		t.Error("duplicate name must be rejected")
	}
}

func TestGet(t *testing.T) {
	r := NewRegistry()
	p := &namedOnly{name: "lookup"}
	if err := r.Register(p); err != nil {
		t.Fatal(err)
	}
	if got := r.Get("lookup"); got != Plugin(p) {
		t.Error("Get should return the registered plugin")
	}
	if got := r.Get("missing"); got != nil {
		t.Error("Get of unknown name should return nil")
	}
}

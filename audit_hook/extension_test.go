package audithook_test

import (
	"context"
	"testing"

	audithook "github.com/xraph/payroute/audit_hook"
)

// captureRecorder collects emitted events.
type captureRecorder struct {
	events []*audithook.AuditEvent
}

func (c *captureRecorder) Record(_ context.Context, evt *audithook.AuditEvent) error {
	c.events = append(c.events, evt)
	return nil
}

func TestRecordsOutcomeEvent(t *testing.T) {
	rec := &captureRecorder{}
	ext := audithook.New(rec)
	ctx := context.Background()

	if err := ext.OnOutcomeRecorded(ctx, "acct_123", false, 5000); err != nil {
		t.Fatal(err)
	}

	if len(rec.events) != 1 {
		t.Fatalf("got %d events, want 1", len(rec.events))
	}
	evt := rec.events[0]
	if evt.Action != audithook.ActionUsageRecorded {
		t.Errorf("Action: got %s", evt.Action)
	}
	if evt.Outcome != audithook.OutcomeFailure {
		t.Errorf("Outcome: got %s, want failure", evt.Outcome)
	}
	if evt.ResourceID != "acct_123" {
		t.Errorf("ResourceID: got %s", evt.ResourceID)
	}
	if evt.Metadata["amount"] != int64(5000) {
		t.Errorf("amount metadata: got %v", evt.Metadata["amount"])
	}
}

func TestEnabledActionsFilter(t *testing.T) {
	rec := &captureRecorder{}
	ext := audithook.New(rec, audithook.WithEnabledActions(audithook.ActionHealthChanged))
	ctx := context.Background()

	if err := ext.OnOutcomeRecorded(ctx, "acct_123", true, 100); err != nil {
		t.Fatal(err)
	}
	if err := ext.OnHealthChanged(ctx, "acct_123", "healthy", "down"); err != nil {
		t.Fatal(err)
	}

	if len(rec.events) != 1 {
		t.Fatalf("got %d events, want only the enabled action", len(rec.events))
	}
	if rec.events[0].Action != audithook.ActionHealthChanged {
		t.Errorf("Action: got %s", rec.events[0].Action)
	}
	if rec.events[0].Severity != audithook.SeverityCritical {
		t.Errorf("Severity: got %s, want critical for down transition", rec.events[0].Severity)
	}
}

func TestDisabledActionsFilter(t *testing.T) {
	rec := &captureRecorder{}
	ext := audithook.New(rec, audithook.WithDisabledActions(audithook.ActionUsageRecorded))
	ctx := context.Background()

	if err := ext.OnOutcomeRecorded(ctx, "acct_123", true, 100); err != nil {
		t.Fatal(err)
	}
	if err := ext.OnScopeDenied(ctx, "user", "CLIENT", "comp_x"); err != nil {
		t.Fatal(err)
	}

	if len(rec.events) != 1 {
		t.Fatalf("got %d events, want the non-disabled action only", len(rec.events))
	}
	if rec.events[0].Action != audithook.ActionScopeDenied {
		t.Errorf("Action: got %s", rec.events[0].Action)
	}
}

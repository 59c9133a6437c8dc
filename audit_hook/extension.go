// Package audithook bridges Cascade lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/cascade/entitlement"
	"github.com/xraph/cascade/plugin"
	"github.com/xraph/cascade/tier"
	"github.com/xraph/cascade/token"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnTierRegistryLoaded = (*Extension)(nil)
	_ plugin.OnRecordSkipped      = (*Extension)(nil)
	_ plugin.OnEntitlementChecked = (*Extension)(nil)
	_ plugin.OnUpgradeTriggered   = (*Extension)(nil)
	_ plugin.OnUsageRecorded      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Cascade lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Catalog lifecycle hooks
// ──────────────────────────────────────────────────

// OnTierRegistryLoaded implements plugin.OnTierRegistryLoaded.
func (e *Extension) OnTierRegistryLoaded(ctx context.Context, registry *tier.Registry) error {
	return e.record(ctx, ActionTierCatalogLoaded, SeverityInfo, OutcomeSuccess,
		ResourceTierCatalog, "", CategoryCatalog, nil,
		"tier_count", registry.Len(),
	)
}

// ──────────────────────────────────────────────────
// Resolution lifecycle hooks
// ──────────────────────────────────────────────────

// OnRecordSkipped implements plugin.OnRecordSkipped.
func (e *Extension) OnRecordSkipped(ctx context.Context, rec *token.Record, reason string) error {
	return e.record(ctx, ActionRecordSkipped, SeverityWarning, OutcomePartial,
		ResourceRecord, rec.ID.String(), CategoryResolution, nil,
		"scope", rec.Scope.String(),
		"skip_reason", reason,
	)
}

// ──────────────────────────────────────────────────
// Entitlement lifecycle hooks
// ──────────────────────────────────────────────────

// OnEntitlementChecked implements plugin.OnEntitlementChecked.
// Only denied checks are audited to reduce noise; allowed checks are
// high-volume and belong in metrics, not the audit trail.
func (e *Extension) OnEntitlementChecked(ctx context.Context, req entitlement.Request, decision entitlement.Decision) error {
	if decision.Allowed {
		return nil
	}

	return e.record(ctx, ActionEntitlementDenied, SeverityWarning, OutcomeFailure,
		ResourceEntitlement, req.FeatureKey, CategoryAccess, nil,
		"tenant_id", req.TenantID,
		"vertical_id", req.VerticalID,
		"tier", req.TierKey,
		"feature", req.FeatureKey,
		"period_id", req.PeriodID,
		"limit", decision.Limit,
		"deny_reason", string(decision.Reason),
	)
}

// OnUpgradeTriggered implements plugin.OnUpgradeTriggered.
func (e *Extension) OnUpgradeTriggered(ctx context.Context, event *entitlement.Event) error {
	return e.record(ctx, ActionUpgradeTriggered, SeverityInfo, OutcomeSuccess,
		ResourceEntitlement, event.ID.String(), CategoryAccess, nil,
		"tenant_id", event.TenantID,
		"vertical_id", event.VerticalID,
		"tier", event.TierKey,
		"feature", event.FeatureKey,
		"period_id", event.PeriodID,
		"limit", event.Limit,
		"expected_conversion", event.ExpectedConversion,
	)
}

// OnUsageRecorded implements plugin.OnUsageRecorded.
func (e *Extension) OnUsageRecorded(ctx context.Context, tenantID, featureKey, periodID string, count int64) error {
	return e.record(ctx, ActionUsageRecorded, SeverityInfo, OutcomeSuccess,
		ResourceUsage, featureKey, CategoryUsage, nil,
		"tenant_id", tenantID,
		"feature", featureKey,
		"period_id", periodID,
		"count", count,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}

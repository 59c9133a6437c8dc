// Package entitlement combines feature/limit resolution with usage metering
// to authorize or deny feature use and emit upgrade signals.
package entitlement

import (
	"context"
	"time"

	"github.com/xraph/cascade/id"
)

// Reason explains a blocked decision.
type Reason string

// Block reasons.
const (
	ReasonFeatureDisabled Reason = "feature_disabled"
	ReasonLimitExceeded   Reason = "limit_exceeded"
)

// Request identifies one authorization check.
type Request struct {
	TenantID   string `json:"tenant_id"`
	VerticalID string `json:"vertical_id"`
	TierKey    string `json:"tier_key"`
	FeatureKey string `json:"feature_key"`
	PeriodID   string `json:"period_id"`
}

// Decision is the outcome of an authorization check. Blocked decisions are
// normal, expected return values — not errors — and must not be treated as
// exceptional control flow.
type Decision struct {
	Allowed bool `json:"allowed"`

	// Remaining is the quota left after this call, -1 for unlimited
	// features, 0 when blocked.
	Remaining int64 `json:"remaining"`

	// Unlimited is set for features with the unlimited sentinel limit.
	Unlimited bool `json:"unlimited"`

	// Limit is the resolved per-period cap (sentinel semantics preserved).
	Limit int64 `json:"limit"`

	// Used is the counter value observed by this call, when one was read.
	Used int64 `json:"used,omitempty"`

	Reason Reason `json:"reason,omitempty"`

	// Upgrade carries the resolved upgrade offer on blocked decisions when
	// a limit rule is configured.
	Upgrade *Upgrade `json:"upgrade,omitempty"`
}

// Upgrade is the resolved upgrade offer attached to a blocked decision.
type Upgrade struct {
	// Message is the rule's template with vertical/tier/feature/limit
	// placeholders substituted.
	Message string `json:"message"`

	// ExpectedConversion is the rule's advisory conversion metadata,
	// passed through untouched.
	ExpectedConversion float64 `json:"expected_conversion"`
}

// Event is the upgrade-trigger event emitted on every blocked decision with
// a positive limit. Delivery and notification are the consumer's
// responsibility.
type Event struct {
	ID                 id.UpgradeEventID `json:"id"`
	TenantID           string            `json:"tenant_id"`
	VerticalID         string            `json:"vertical_id"`
	TierKey            string            `json:"tier_key"`
	FeatureKey         string            `json:"feature_key"`
	PeriodID           string            `json:"period_id"`
	Limit              int64             `json:"limit"`
	Message            string            `json:"message"`
	ExpectedConversion float64           `json:"expected_conversion"`
	OccurredAt         time.Time         `json:"occurred_at"`
}

// Sink receives upgrade-trigger events.
type Sink interface {
	UpgradeTriggered(ctx context.Context, event *Event)
}

// SinkFunc is an adapter to use a plain function as a Sink.
type SinkFunc func(ctx context.Context, event *Event)

// UpgradeTriggered implements Sink.
func (f SinkFunc) UpgradeTriggered(ctx context.Context, event *Event) {
	f(ctx, event)
}

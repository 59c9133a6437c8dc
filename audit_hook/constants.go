package audithook

// Action constants for audit events.
const (
	// Catalog actions
	ActionTierCatalogLoaded = "tiers.loaded"

	// Resolution actions
	ActionTokensResolved       = "tokens.resolved"
	ActionEntitlementsResolved = "entitlements.resolved"
	ActionRecordSkipped        = "record.skipped"

	// Entitlement actions
	ActionEntitlementChecked = "entitlement.checked"
	ActionEntitlementDenied  = "entitlement.denied"
	ActionUpgradeTriggered   = "upgrade.triggered"

	// Usage actions
	ActionUsageRecorded = "usage.recorded"
)

// Resource constants for audit events.
const (
	ResourceTierCatalog = "tier_catalog"
	ResourceTokens      = "tokens"
	ResourceEntitlement = "entitlement"
	ResourceRecord      = "record"
	ResourceUsage       = "usage"
)

// Category constants for audit events.
const (
	CategoryCatalog    = "catalog"
	CategoryResolution = "resolution"
	CategoryAccess     = "access"
	CategoryUsage      = "usage"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)

package cascade

import (
	"errors"
	"fmt"

	"github.com/xraph/cascade/tier"
	"github.com/xraph/cascade/token"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("cascade: not found")
	ErrInvalidInput = errors.New("cascade: invalid input")
	ErrNotStarted   = errors.New("cascade: engine not started")

	// Tier errors. ErrTierNotFound aliases the tier package sentinel so
	// errors.Is works regardless of which layer produced the error.
	ErrTierNotFound = tier.ErrNotFound

	// Entitlement errors
	ErrFeatureDisabled = errors.New("cascade: feature disabled")
	ErrLimitExceeded   = errors.New("cascade: limit exceeded")

	// Store errors
	ErrStoreNotReady   = errors.New("cascade: store not ready")
	ErrStoreClosed     = errors.New("cascade: store is closed")
	ErrMigrationFailed = errors.New("cascade: migration failed")
)

// ScopeNotFoundError reports a platform base layer that does not cover a
// required token category. The platform scope is the cascade's floor:
// every category must resolve there, so the engine refuses to start on an
// incomplete base layer rather than serve partial token sets.
type ScopeNotFoundError struct {
	Category token.Category
}

func (e *ScopeNotFoundError) Error() string {
	return fmt.Sprintf("cascade: platform base layer missing category %q", e.Category)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTierNotFound)
}

// IsConflict returns true if the error is a tier catalog conflict.
func IsConflict(err error) bool {
	var conflict *tier.ConflictError
	return errors.As(err, &conflict)
}

// IsEntitlementError returns true if the error is related to entitlement
// denial.
func IsEntitlementError(err error) bool {
	return errors.Is(err, ErrFeatureDisabled) ||
		errors.Is(err, ErrLimitExceeded)
}

// IsRetryable returns true if the error is temporary and the operation can
// be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrMigrationFailed)
}

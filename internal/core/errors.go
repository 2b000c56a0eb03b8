package core

import (
	"errors"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// ErrorCategory classifies a reconciliation-time failure. Categorization
// drives retry/skip behavior in the reconciler: everything except
// ConfigInvalid is locally contained within a tick and never aborts the
// process.
type ErrorCategory string

const (
	CategoryConfigInvalid      ErrorCategory = "ConfigInvalid"
	CategoryRegistryTransient  ErrorCategory = "RegistryTransient"
	CategoryRegistryPermanent  ErrorCategory = "RegistryPermanent"
	CategoryAuthUnresolved     ErrorCategory = "AuthUnresolved"
	CategoryKubeAPIError       ErrorCategory = "KubeApiError"
	CategoryImageRefInvalid    ErrorCategory = "ImageRefInvalid"
)

// CategorizedError wraps an error with its detected category, mirroring the
// teacher's ClassifiedError but generalized to this system's six categories.
type CategorizedError struct {
	Err      error
	Category ErrorCategory
}

func (e *CategorizedError) Error() string { return e.Err.Error() }

func (e *CategorizedError) Unwrap() error { return e.Err }

// Categorize wraps err with the given category.
func Categorize(err error, category ErrorCategory) error {
	if err == nil {
		return nil
	}
	return &CategorizedError{Err: err, Category: category}
}

// CategoryOf walks the error chain looking for a CategorizedError and
// returns its category, or "" if none is found.
func CategoryOf(err error) ErrorCategory {
	var categorized *CategorizedError
	if errors.As(err, &categorized) {
		return categorized.Category
	}
	return ""
}

// IsRetryableKubeError reports whether a KubeApiError-categorized failure
// should be retried on the next tick rather than logged as a hard failure.
// A patch conflict (or a server-side throttle/timeout) is retried next
// tick rather than surfaced as an error; for list/get operations any error
// simply skips the workload this tick. The reconciler calls this on a
// patch failure to decide which way to log it; client-go's apierrors
// helpers already unwrap the error chain.
func IsRetryableKubeError(err error) bool {
	return apierrors.IsConflict(err) || apierrors.IsTooManyRequests(err) || apierrors.IsTimeout(err) || apierrors.IsServerTimeout(err)
}

// RegistryErrorKind distinguishes the registry client's three failure
// modes: a retryable transient fault, a permanent failure, and a malformed
// protocol response.
type RegistryErrorKind int

const (
	RegistryTransient RegistryErrorKind = iota
	RegistryPermanent
	RegistryProtocol
)

// RegistryError is the error type returned by internal/registry.
type RegistryError struct {
	Kind RegistryErrorKind
	Err  error
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("%s: %v", e.categoryName(), e.Err)
}

func (e *RegistryError) Unwrap() error { return e.Err }

func (e *RegistryError) categoryName() string {
	switch e.Kind {
	case RegistryTransient:
		return string(CategoryRegistryTransient)
	case RegistryPermanent:
		return string(CategoryRegistryPermanent)
	default:
		return "RegistryProtocol"
	}
}

// NewRegistryError wraps err with the given registry failure kind.
func NewRegistryError(kind RegistryErrorKind, err error) *RegistryError {
	return &RegistryError{Kind: kind, Err: err}
}

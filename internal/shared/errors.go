package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Shop API errors
	ErrAPIRequest          = fmt.Errorf("API request failed")
	ErrServiceUnavailable  = fmt.Errorf("service unavailable")
	ErrRateLimited         = fmt.Errorf("rate limited")
	ErrCatalogUnavailable  = fmt.Errorf("catalog unavailable")
	ErrApplyUnavailable    = fmt.Errorf("apply capability unavailable")
	ErrLocationNotFound    = fmt.Errorf("location not found")
	ErrMissingAccessScopes = fmt.Errorf("missing access scopes")

	// Sync errors
	ErrRunAborted      = fmt.Errorf("sync run aborted")
	ErrNothingToUpdate = fmt.Errorf("no update types selected")
	ErrRunInProgress   = fmt.Errorf("sync run already in progress")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
	ErrUnsupportedFile = fmt.Errorf("unsupported file type")
	ErrMissingColumn   = fmt.Errorf("mapped column not found")
)

// Error codes recorded on failed or skipped operations and on aborted runs.
const (
	CodeRateLimit       = "SHOPIFY_RATE_LIMIT"
	CodeUnauthorized    = "SHOPIFY_UNAUTHORIZED"
	CodeForbidden       = "SHOPIFY_FORBIDDEN"
	CodeNotFound        = "SHOPIFY_NOT_FOUND"
	CodeServerError     = "SHOPIFY_SERVER_ERROR"
	CodeUserError       = "SHOPIFY_USER_ERROR"
	CodeNetwork         = "NETWORK_ERROR"
	CodeApplyFailed     = "APPLY_FAILED"
	CodeDependentSkip   = "DEPENDENT_SKIPPED"
	CodeDryRun          = "DRY_RUN"
	CodeSyncCancelled   = "SYNC_CANCELLED"
	CodeApplyLost       = "SYNC_APPLY_LOST"
	CodePartialSuccess  = "SYNC_PARTIAL_SUCCESS"
	CodeInvalidArgument = "INVALID_ARGUMENT"
)

// ApplyError is a per-operation failure reported by an apply capability.
//
// It never aborts a run on its own; executors record Code and Message on the
// failed operation and continue.
type ApplyError struct {
	Code    string
	Message string
	Field   string
	Cause   error
}

func (e *ApplyError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ApplyError) Unwrap() error {
	return e.Cause
}

// NewApplyError builds an [ApplyError] with no underlying cause.
func NewApplyError(code, message string) *ApplyError {
	return &ApplyError{Code: code, Message: message}
}

package errors

// Error codes for standardized error responses
const (
	// Validation errors
	ErrCodeInvalidRequest    = "invalid_request"
	ErrCodeInvalidTutorialID = "invalid_tutorial_id"
	ErrCodeInvalidUserID     = "invalid_user_id"
	ErrCodeMissingField      = "missing_field"

	// Resource errors
	ErrCodeNotFound = "not_found"

	// Assessment errors
	ErrCodeGenerationFailed  = "generation_failed"
	ErrCodeRateLimitExceeded = "rate_limit_exceeded"
	ErrCodeFeedbackFailed    = "feedback_failed"

	// Progress errors
	ErrCodeProgressFetchFailed = "progress_fetch_failed"
	ErrCodeProgressSaveFailed  = "progress_save_failed"
	ErrCodeInvalidAttempt      = "invalid_attempt"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"
)

package usecase

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrorRateLimited   ErrorCode = "RATE_LIMITED"
	ErrorNotConfigured ErrorCode = "NOT_CONFIGURED"
	ErrorUpstreamAuth  ErrorCode = "UPSTREAM_AUTH"
	ErrorUpstream      ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal      ErrorCode = "INTERNAL_ERROR"
)

// Reasons attached to Error. Handlers pick public messages by reason.
const (
	ReasonEmptyMessage     = "empty_message"
	ReasonMissingSession   = "missing_session_id"
	ReasonMessageTooLong   = "message_too_long"
	ReasonSessionQuota     = "session_quota_exceeded"
	ReasonQuotaStore       = "quota_store_error"
	ReasonLLMNotConfigured = "llm_not_configured"
	ReasonLLMAuth          = "llm_auth_failed"
	ReasonLLMRateLimited   = "llm_rate_limited"
	ReasonLLMError         = "llm_error"
	ReasonLLMEmpty         = "llm_empty_response"
	ReasonAnalytics        = "analytics_error"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

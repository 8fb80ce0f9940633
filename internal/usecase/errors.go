package usecase

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrorPayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrorRateLimited     ErrorCode = "RATE_LIMITED"
	ErrorPaymentRequired ErrorCode = "PAYMENT_REQUIRED"
	ErrorUpstream        ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal        ErrorCode = "INTERNAL_ERROR"
)

// Error is a classified relay failure. Message is safe to show to callers;
// Reason and Err are for logs only.
type Error struct {
	Code    ErrorCode
	Reason  string
	Message string
	Err     error
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

func newError(code ErrorCode, reason, message string, err error) *Error {
	return &Error{Code: code, Reason: reason, Message: message, Err: err}
}

func invalidInput(reason, message string) *Error {
	return newError(ErrorInvalidInput, reason, message, nil)
}

const (
	msgInvalidBody     = "Invalid request body"
	msgBodyTooLarge    = "Request body too large"
	msgRateLimited     = "Too many requests. Please try again later."
	msgUpstreamLimited = "Rate limits exceeded, please try again later."
	msgPaymentRequired = "Payment required, please add funds to your workspace."
	msgUpstreamFailure = "AI service temporarily unavailable"
)

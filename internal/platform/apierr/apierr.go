package apierr

import "fmt"

// Machine-readable error codes surfaced by the maintenance API.
const (
	CodeInvalidConfiguration = "INVALID_CONFIGURATION"
	CodeConnectionFailed     = "CONNECTION_FAILED"
	CodeStorePaused          = "STORE_PAUSED"
	CodeStoreResuming        = "STORE_RESUMING"
	CodeAccessDenied         = "ACCESS_DENIED"
	CodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	CodeQueryFailed          = "QUERY_FAILED"
	CodeUnknownAction        = "UNKNOWN_ACTION"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

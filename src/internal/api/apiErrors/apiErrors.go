package apiErrors

import "fmt"

type ErrorCode string

const (
	BadRequest    ErrorCode = "BAD_REQUEST"
	Validation    ErrorCode = "VALIDATION_FAILED"
	Precondition  ErrorCode = "PRECONDITION_VIOLATION"
	NotFound      ErrorCode = "NOT_FOUND"
	PartialAccept ErrorCode = "PARTIAL_ACCEPT"
	Transport     ErrorCode = "UPSTREAM_FAILURE"
	InternalError ErrorCode = "INTERNAL_ERROR"
)

type APIError struct {
	Code    ErrorCode
	Message string
	// WorkItemID is set for partial accepts so the caller can complete the link.
	WorkItemID int
}

func (e APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

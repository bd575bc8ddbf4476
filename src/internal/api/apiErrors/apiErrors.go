package apiErrors

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	Forbidden       ErrorCode = "FORBIDDEN"
	NotFound        ErrorCode = "NOT_FOUND"
	Conflict        ErrorCode = "CONFLICT"
	InvalidArgument ErrorCode = "INVALID_ARGUMENT"
	Unavailable     ErrorCode = "UNAVAILABLE"
	Unauthenticated ErrorCode = "UNAUTHENTICATED"
	InternalError   ErrorCode = "INTERNAL_ERROR"
)

type APIError struct {
	Code    ErrorCode
	Message string
}

func (e APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// CodeOf returns the code of an APIError, or InternalError for anything else.
func CodeOf(err error) ErrorCode {
	var e APIError
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

const (
	ErrValidation   = "VALIDATION"
	ErrNetwork      = "NETWORK"
	ErrServer       = "SERVER"
	ErrNotFound     = "NOT FOUND"
	ErrInvalidInput = "INVALID INPUT"
	ErrAuth         = "UNAUTHORIZED"
	ErrAccessDenied = "ACCESS DENIED"
	ErrConflict     = "CONFLICT"
	ErrInternal     = "INTERNAL"
)

const NetworkNotice = "Could not reach the server, check your connection and try again."

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e ErrorResponse) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code: %s, message: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("code: %s, message: %s", e.Code, e.Message)
}

func (e ErrorResponse) Unwrap() error {
	return e.Err
}

// Validation is returned for input rejected before any network call.
func Validation(format string, args ...any) error {
	return ErrorResponse{
		Code:    ErrValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// Network is returned when a request could not be sent or its response could not be parsed.
func Network(message string, err error) error {
	return ErrorResponse{
		Code:    ErrNetwork,
		Message: message,
		Err:     err,
	}
}

// Server carries a non-success response and the message the server supplied.
func Server(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	return ErrorResponse{
		Code:    ErrServer,
		Message: message,
		Status:  status,
	}
}

func NotFound(format string, args ...any) error {
	return ErrorResponse{
		Code:    ErrNotFound,
		Message: fmt.Sprintf(format, args...),
	}
}

// CodeOf returns the code of the first ErrorResponse in err's chain, or ErrInternal.
func CodeOf(err error) string {
	var appErr ErrorResponse
	if stdErrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

func Is(err error, code string) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// UserMessage is the text a front-end shows for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr ErrorResponse
	if !stdErrors.As(err, &appErr) {
		return "Something went wrong, please try again."
	}
	switch appErr.Code {
	case ErrValidation, ErrServer, ErrInvalidInput, ErrConflict, ErrAuth, ErrAccessDenied:
		return appErr.Message
	case ErrNetwork:
		return NetworkNotice
	case ErrNotFound:
		return "Transaction unavailable."
	default:
		return "Something went wrong, please try again."
	}
}

// HTTPStatus maps an error to the status the development API answers with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidInput, ErrValidation:
		return http.StatusBadRequest
	case ErrAuth:
		return http.StatusUnauthorized
	case ErrAccessDenied:
		return http.StatusForbidden
	case ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

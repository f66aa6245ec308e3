package errors

import "net/http"

// HTTPError is rendered as {error_code, message}. A zero StatusCode is
// sent as 400.
type HTTPError struct {
	Code       int
	Message    string
	StatusCode int
}

func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
	}
}

// WithStatus returns a copy carrying statusCode.
func (e *HTTPError) WithStatus(statusCode int) *HTTPError {
	cp := *e
	cp.StatusCode = statusCode
	return &cp
}

// WithMessage returns a copy carrying message, keeping code and status.
func (e *HTTPError) WithMessage(message string) *HTTPError {
	cp := *e
	cp.Message = message
	return &cp
}

func (e HTTPError) Status() int {
	if e.StatusCode == 0 {
		return http.StatusBadRequest
	}
	return e.StatusCode
}

func (e HTTPError) Error() string {
	return e.Message
}

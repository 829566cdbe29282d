package app

import "fmt"

// DomainError is a failure the client can act on. Status picks the HTTP
// code; Code is the stable machine-readable identifier rendered into the
// error envelope alongside Message and the optional Details.
//
// Codes used by this API: VALIDATION_ERROR, SESSION_NOT_FOUND,
// SESSION_CORRUPT, NODE_NOT_FOUND, PROJECT_NOT_FOUND, TEMPLATE_NOT_FOUND,
// EXPORT_UNAVAILABLE, EXPORT_FAILED.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

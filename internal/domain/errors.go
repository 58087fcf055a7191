package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repositories when a record does not exist
var ErrNotFound = errors.New("not found")

// EndpointError is an HTTP failure carrying the {error, message} body
type EndpointError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *EndpointError) Error() string {
	if e.Code == "" && e.Message == "" {
		return fmt.Sprintf("endpoint returned status %d", e.Status)
	}
	return fmt.Sprintf("endpoint returned status %d: %s: %s", e.Status, e.Code, e.Message)
}

// NewEndpointError creates an endpoint error
func NewEndpointError(status int, code, message string) *EndpointError {
	return &EndpointError{Status: status, Code: code, Message: message}
}

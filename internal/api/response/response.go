package response

import (
	"encoding/json"
	"net/http"

	"github.com/Rrens/bloombuddy/internal/domain"
)

// Response represents a standard API response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// JSON sends a JSON response wrapped in the success envelope
func JSON(w http.ResponseWriter, status int, data any) {
	Raw(w, status, Response{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// Raw sends v as the whole body
func Raw(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Error sends an error response carrying a short code and a readable message
func Error(w http.ResponseWriter, status int, code, message string) {
	Raw(w, status, Response{
		Success: false,
		Error:   code,
		Message: message,
	})
}

// EndpointError sends err with its own status
func EndpointError(w http.ResponseWriter, err *domain.EndpointError) {
	Error(w, err.Status, err.Code, err.Message)
}

// Created sends a 201 Created response with data
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// OK sends a 200 OK response with data
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// BadRequest sends a 400 Bad Request response
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, "Invalid request", message)
}

// Unauthorized sends a 401 Unauthorized response
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, "Unauthorized", message)
}

// Forbidden sends a 403 Forbidden response
func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, "Forbidden", message)
}

// NotFound sends a 404 Not Found response
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, "Not found", message)
}

// InternalError sends a 500 Internal Server Error response
func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, "Internal server error", message)
}

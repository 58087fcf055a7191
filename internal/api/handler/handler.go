package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var errEmptyBody = errors.New("request body is required")

// decodeJSON decodes a single JSON object from the request body
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errEmptyBody
	}
	return json.NewDecoder(r.Body).Decode(v)
}

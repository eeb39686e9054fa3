// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string         `json:"type,omitempty"`
	Title  string         `json:"title"`
	Status int            `json:"status"`
	Detail string         `json:"detail,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	ProblemWithMeta(w, status, title, detail, nil)
}

// ProblemWithMeta sends a problem response with extra machine readable fields.
func ProblemWithMeta(w http.ResponseWriter, status int, title, detail string, meta map[string]any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
		Meta:   meta,
	})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}

var validate = validator.New()

// Decode decodes the body and runs struct validation. Failures are returned as
// *shared.ValidationError.
func Decode(r *http.Request, target any) error {
	if err := DecodeJSON(r, target); err != nil {
		return shared.NewValidationError("malformed request body", "body", err.Error())
	}
	if err := validate.Struct(target); err != nil {
		verr := shared.NewValidationError("request validation failed")
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				verr.Add(fe.Namespace(), fe.Tag())
			}
		} else {
			verr.Add("body", err.Error())
		}
		return verr
	}
	return nil
}

// IDParam parses a positive int64 URL parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewValidationError(fmt.Sprintf("invalid %s", name), name, "must be a positive integer")
	}
	return id, nil
}

// Actor returns the request actor or writes a 401 problem.
func Actor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		RespondError(w, fmt.Errorf("%w: tenant headers missing", ErrUnauthorized))
		return shared.Actor{}, false
	}
	return actor, true
}

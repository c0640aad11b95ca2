// Package httputil centralizes JSON encoding and domain error translation
// for HTTP handlers so every endpoint renders errors the same way.
package httputil

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"

	dErrors "contactdir/pkg/domain-errors"
)

// errorBody is the wire shape for all 4xx/5xx responses that carry a body.
// Field errors preserve input order so callers can assert exact positions.
type errorBody struct {
	Errors []dErrors.FieldError `json:"errors"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to an HTTP status and body.
//
// Validation and bad-request errors answer 400 with the full field error
// list. Not-found and version-conflict answer with an empty body per the
// API contract. Anything else is a 500 with a generic message so internals
// never leak.
func WriteError(w http.ResponseWriter, err error) {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeValidation, dErrors.CodeBadRequest:
		fields := dErrors.FieldsOf(err)
		if len(fields) == 0 {
			var de *dErrors.Error
			msg := "bad request"
			if e, ok := err.(*dErrors.Error); ok {
				de = e
				msg = de.Message
			}
			fields = []dErrors.FieldError{{Message: msg}}
		}
		WriteJSON(w, http.StatusBadRequest, errorBody{Errors: fields})
	case dErrors.CodeNotFound:
		w.WriteHeader(http.StatusNotFound)
	case dErrors.CodeVersionConflict:
		w.WriteHeader(http.StatusPreconditionFailed)
	case dErrors.CodeConflict:
		fields := dErrors.FieldsOf(err)
		if len(fields) == 0 {
			fields = []dErrors.FieldError{{Message: "conflict"}}
		}
		WriteJSON(w, http.StatusConflict, errorBody{Errors: fields})
	default:
		WriteJSON(w, http.StatusInternalServerError, errorBody{
			Errors: []dErrors.FieldError{{Message: "internal server error"}},
		})
	}
}

// ParseID parses a path segment as a positive 64-bit resource id. The two
// failure messages are part of the API contract.
func ParseID(raw, field string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			return 0, dErrors.NewFieldError(field,
				fmt.Sprintf("must be less than or equal to %d", int64(math.MaxInt64)))
		}
		return 0, dErrors.NewFieldError(field, "is not a number")
	}
	return id, nil
}

// DecodeJSON decodes the request body into v, translating parser failures
// into a bad-request domain error that carries the decoder's message. The
// parser message is part of the contract: clients debugging malformed
// payloads see what the decoder saw.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return dErrors.NewFieldError("request_body", err.Error())
	}
	return nil
}

package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "clusterreport/pkg/domain-errors"
)

// DecodeJSON decodes a JSON request body into the target type. On failure it
// writes a validation error response and returns false.
//
// Usage:
//
//	req, ok := httputil.DecodeJSON[startRunRequest](w, r)
//	if !ok {
//	    return
//	}
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return nil, false
	}
	return &req, true
}

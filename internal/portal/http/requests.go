package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/tramita/portal/pkg/httpx"
)

// maxBodyBytes caps request bodies; nothing the portal accepts comes
// close to a megabyte.
const maxBodyBytes = 1 << 20

var validate = validator.New()

// decode parses and validates a JSON request body. On failure it writes
// the 400 itself and returns false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "missing or malformed fields")
		return false
	}
	return true
}

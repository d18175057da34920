package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/offerloader/internal/core"
)

// maxJSONBody bounds request bodies of the JSON endpoints.
const maxJSONBody = 1 << 20

// viewer returns the acting user's id set by middleware.Viewer.
func viewer(r *http.Request) string {
	return core.ViewerFromContext(r.Context())
}

// decodeJSON reads the request body into dst. Malformed bodies are
// validation errors.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: body: %v", core.ErrValidation, err)
	}
	return nil
}

// parseLimit parses the limit query parameter. A missing value yields 0,
// which lets the service apply its default.
func parseLimit(r *http.Request) (int, error) {
	val := r.URL.Query().Get("limit")
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit must be a positive integer, got %q", core.ErrValidation, val)
	}
	return n, nil
}

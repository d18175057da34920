package web

// errors.go provides unified error responses for the API.
//
// Every error is mapped through core.MapError to a status and a user-facing
// message with a lookup code. The technical error is logged server-side with
// the request id; clients only see its text for validation failures and
// aborted imports, where it names the offending field or line.

import (
	"encoding/json"
	"net/http"

	"github.com/JonMunkholm/offerloader/internal/core"
	"github.com/JonMunkholm/offerloader/internal/logging"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// codes whose technical error is safe and useful to show.
var detailedCodes = map[string]bool{
	"VAL001": true,
	"IMP003": true,
	"IMP004": true,
}

// respondError logs err and writes the mapped error response.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", msg.Status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if msg.Status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Debug("request error", attrs...)
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	if detailedCodes[msg.Code] {
		resp.Details = err.Error()
	}
	writeJSON(w, r, msg.Status, resp)
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}

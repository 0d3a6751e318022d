package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/autopeer-io/dronerelay/internal/relay/core"
	"github.com/autopeer-io/dronerelay/pkg/log"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
}

// statusFor maps an error kind onto an HTTP status code.
func statusFor(err error) int {
	switch core.KindOf(err) {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindNotConnected, core.KindAlreadyInProgress, core.KindStreamNotActive:
		return http.StatusConflict
	case core.KindNoFrameAvailable:
		return http.StatusServiceUnavailable
	case core.KindTransport:
		return http.StatusBadGateway
	case core.KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Failed to write response", "error", err)
	}
}

func writeOK(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error(), Kind: string(core.KindOf(err))})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return core.Errorf(core.KindValidation, "decode request", "invalid JSON body: %v", err)
}

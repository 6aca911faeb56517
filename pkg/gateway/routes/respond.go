package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/growthwatch/platform/pkg/common/apperr"
	"github.com/growthwatch/platform/pkg/common/logger"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError maps the error taxonomy to a status code. Unexpected failures
// are logged with their cause and answered with a generic message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.StatusCode(err)
	entry := logger.Log.WithError(err).WithFields(map[string]interface{}{
		"method":     r.Method,
		"path":       r.URL.Path,
		"status":     status,
		"request_id": r.Header.Get("X-Request-ID"),
	})
	if apperr.IsExpected(err) {
		entry.Debug("Request rejected")
	} else {
		entry.Error("Request failed")
	}
	http.Error(w, apperr.PublicMessage(err), status)
}

func decodeJSON(r *http.Request, dst interface{}, strict bool) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid payload: %v", err)
	}
	return nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid id %q", raw)
	}
	return id, nil
}

package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/vytor/ceplayer/internal/errors"
	"github.com/vytor/ceplayer/internal/logger"
)

// maxBodyBytes bounds request bodies; every payload here is a handful of fields.
const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Warn("failed to write response: %v", err)
	}
}

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.NewBadRequestError("could not read request body")
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewBadRequestError("invalid JSON body")
	}
	return nil
}

func hourParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "hour")
	hour, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewValidationError("hour", "must be a number")
	}
	return hour, nil
}

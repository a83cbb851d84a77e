package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cleared-dev/cashflow/internal/cashflow"
	"github.com/cleared-dev/cashflow/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

// errBadRequest marks a malformed query parameter.
var errBadRequest = errors.New("bad request")

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleServiceError maps ledger errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	switch {
	case errors.Is(err, cashflow.ErrUnknownAccount), errors.Is(err, store.ErrNotFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errBadRequest), errors.Is(err, cashflow.ErrInvalidWindow):
		logger.Debug("bad request", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func queryDate(r *http.Request, key string) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(cashflow.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", errBadRequest, key)
	}
	return t, nil
}

func queryInt(r *http.Request, key string, max int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > max {
		return 0, fmt.Errorf("%w: %s must be between 1 and %d", errBadRequest, key, max)
	}
	return n, nil
}

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/meridian/internal/ingest"
	"github.com/sells-group/meridian/internal/monitoring"
	"github.com/sells-group/meridian/internal/portfolio"
	"github.com/sells-group/meridian/internal/store"
	"github.com/sells-group/meridian/internal/valuation"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
	maxJSONBody     = 1 << 20
)

// errBadRequest marks malformed requests: bad JSON or query parameters.
var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error  string                 `json:"error"`
	Fields []valuation.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

// writeError maps service errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *valuation.InvalidInputError
	switch {
	case errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "invalid input", Fields: invalid.Fields})
	case errors.Is(err, monitoring.ErrInvalidMetric), errors.Is(err, ingest.ErrInvalidUpload),
		errors.Is(err, portfolio.ErrInvalidInput):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	case errors.Is(err, ingest.ErrTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: err.Error()})
	case errors.Is(err, ingest.ErrInProgress), errors.Is(err, store.ErrConflict),
		errors.Is(err, portfolio.ErrFundHasCompanies):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	}
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return eris.Wrapf(errBadRequest, "invalid request body: %v", err)
	}
	return nil
}

// readBody returns the raw request body, bounded like decodeJSON.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		return nil, eris.Wrapf(errBadRequest, "read request body: %v", err)
	}
	return data, nil
}

// pagination reads skip and limit. limit defaults to 50 and is capped at 100.
func pagination(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	limit = defaultPageSize
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 {
			return 0, 0, eris.Wrapf(errBadRequest, "limit must be a positive integer, got %q", v)
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v := q.Get("skip"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, eris.Wrapf(errBadRequest, "skip must be a non-negative integer, got %q", v)
		}
	}
	return offset, limit, nil
}

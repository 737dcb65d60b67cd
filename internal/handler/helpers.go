package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return &domain.ErrInvalidInput{Field: "body", Message: "could not read request body"}
	}
	if len(body) == 0 {
		return &domain.ErrInvalidInput{Field: "body", Message: "request body is required"}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &domain.ErrInvalidInput{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}

// parseDataBase reads the optional ?data_base=YYYY-MM-DD parameter.
func parseDataBase(r *http.Request) (*domain.Data, error) {
	v := r.URL.Query().Get("data_base")
	if v == "" {
		return nil, nil
	}
	d, err := domain.ParseData(v)
	if err != nil {
		return nil, &domain.ErrInvalidInput{Field: "data_base", Message: err.Error()}
	}
	return &d, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var invalid *domain.ErrInvalidInput
	var unresolvable *domain.ErrUnresolvableTermination
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var external *domain.ErrExternalService
	var unauthorized *domain.ErrUnauthorized
	var forbidden *domain.ErrForbidden
	var conflict *domain.ErrConflict

	switch {
	case errors.As(err, &invalid):
		logger.Debug("invalid input", zap.String("field", invalid.Field), zap.String("error", invalid.Message))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: invalid.Field})
	case errors.As(err, &unresolvable):
		logger.Debug("termination unresolvable",
			zap.Int("total_dias", unresolvable.TotalDias),
			zap.Int("acumulados", unresolvable.Acumulados),
		)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream service unavailable")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/scopedex/internal/domain"
	"github.com/kailas-cloud/scopedex/internal/logger"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeBadRequest       = "bad_request"
	codeUnauthorized     = "unauthorized"
	codeForbidden        = "forbidden"
	codeNotFound         = "not_found"
	codeUnknownEntity    = "unknown_entity"
	codeValidationFailed = "validation_failed"
	codeConflict         = "conflict"
	codeUnavailable      = "system_of_record_unavailable"
	codeTimeout          = "timeout"
	codeInternalError    = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

var errorHandlers = []errorHandler{
	sentinelHandler(domain.ErrUnknownEntity, http.StatusNotFound, codeUnknownEntity),
	sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
	sentinelHandler(domain.ErrInvalidPayload, http.StatusBadRequest, codeValidationFailed),
	sentinelHandler(domain.ErrUnsupportedClause, http.StatusBadRequest, codeValidationFailed),
	sentinelHandler(domain.ErrConflict, http.StatusConflict, codeConflict),
	sentinelHandler(domain.ErrForbidden, http.StatusForbidden, codeForbidden),
	sentinelHandler(domain.ErrSystemOfRecord, http.StatusServiceUnavailable, codeUnavailable),
	sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, codeTimeout),
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeMessage(sentinel, err))
		return true
	}
}

// safeMessage exposes validation details but only the sentinel text for store failures.
func safeMessage(sentinel, err error) string {
	switch {
	case errors.Is(sentinel, domain.ErrInvalidPayload),
		errors.Is(sentinel, domain.ErrUnsupportedClause),
		errors.Is(sentinel, domain.ErrUnknownEntity):
		return err.Error()
	}
	return sentinel.Error()
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, h := range errorHandlers {
		if h(w, err) {
			log.Info("request failed", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

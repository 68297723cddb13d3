package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/yegors/if-inbounds/internal/ifapi"
	"github.com/yegors/if-inbounds/internal/inbound"
	"github.com/yegors/if-inbounds/internal/tracker"
	"github.com/yegors/if-inbounds/pkg/logger"
)

// ErrInvalidInput marks a malformed request
var ErrInvalidInput = errors.New("invalid input")

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code and writes it as a JSON error
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		if d, ok := ifapi.RetryAfter(err); ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
		}
	}
	if status >= http.StatusInternalServerError {
		h.logger.Warn("Request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, tracker.ErrInvalidICAO),
		errors.Is(err, inbound.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, ifapi.ErrAirportNotFound):
		return http.StatusNotFound
	case errors.Is(err, ifapi.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ifapi.ErrFetchTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ifapi.ErrInvalidResponseFormat),
		errors.Is(err, ifapi.ErrNetwork),
		errors.Is(err, ifapi.ErrNotFound),
		errors.Is(err, ifapi.ErrUpstreamStatus):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

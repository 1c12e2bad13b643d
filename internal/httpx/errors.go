package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/veil-sh/veil/internal/app"
	"github.com/veil-sh/veil/internal/domain"
)

// writeError writes a JSON error body with the given status code.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg})
	if cid, ok := GetCorrelationID(ctx); ok {
		slog.Debug("wrote error response", "cid", cid, "status", code, "msg", msg)
	}
}

// mapServiceError maps domain/service errors to HTTP responses. Absent,
// expired, and depleted records all surface as the same 404 so callers
// cannot probe record state.
func (h *Handler) mapServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	cid, _ := GetCorrelationID(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		slog.Info("service error", "cid", cid, "code", "not_found")
		h.writeError(ctx, w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnauthorized):
		slog.Info("service error", "cid", cid, "code", "unauthorized")
		h.writeError(ctx, w, http.StatusUnauthorized, "invalid passphrase")
	case errors.Is(err, domain.ErrNotExtendable):
		slog.Warn("service error", "cid", cid, "code", "not_extendable")
		h.writeError(ctx, w, http.StatusForbidden, "secret is not extendable")
	case errors.Is(err, domain.ErrLimitExceeded):
		slog.Warn("service error", "cid", cid, "code", "limit_exceeded")
		h.writeError(ctx, w, http.StatusBadRequest, "requested extension exceeds limits")
	case errors.Is(err, domain.ErrInvalidRequest):
		slog.Warn("service error", "cid", cid, "code", "invalid_request")
		h.writeError(ctx, w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, app.ErrBusy):
		slog.Warn("service error", "cid", cid, "code", "busy")
		h.writeError(ctx, w, http.StatusServiceUnavailable, "busy, retry")
	default:
		// Internal / unexpected: do not echo the raw error to avoid leaking
		// ids or storage details.
		slog.Error("unhandled service error", "cid", cid, "code", "unhandled")
		h.writeError(ctx, w, http.StatusInternalServerError, "internal")
	}
}

package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/veil-sh/veil/internal/policy"
)

type extendRequest struct {
	Passphrase string `json:"passphrase"`
	AddDays    int    `json:"add_days,omitempty"`
	AddViews   int    `json:"add_views,omitempty"`
}

type extendResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
	// MaxViews is null for unlimited-view secrets.
	MaxViews *int `json:"max_views"`
	Views    int  `json:"views"`
}

// handleExtend implements POST /api/secrets/{id}/extend.
func (h *Handler) handleExtend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body := r.Body
	if h.MaxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.MaxBody)
	}
	defer body.Close()

	var req extendRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Passphrase == "" {
		h.writeError(ctx, w, http.StatusBadRequest, "passphrase must not be empty")
		return
	}

	out, err := h.Service.Extend(ctx, chi.URLParam(r, "id"), req.Passphrase, policy.ExtendRequest{
		AddDays:  req.AddDays,
		AddViews: req.AddViews,
	})
	if err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}
	resp := extendResponse{
		ExpiresAt: out.ExpiresAt,
		Views:     out.Views,
	}
	if out.Limited {
		maxViews := out.MaxViews
		resp.MaxViews = &maxViews
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

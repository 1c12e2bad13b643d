package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type retrieveRequest struct {
	Passphrase string `json:"passphrase"`
}

type retrieveResponse struct {
	Secret string `json:"secret"`
	// ViewsRemaining is null for unlimited-view secrets.
	ViewsRemaining *int      `json:"views_remaining"`
	Extendable     bool      `json:"extendable"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// handleRetrieve implements POST /api/secrets/{id}. The passphrase travels
// in the body so it never lands in access logs or proxies.
func (h *Handler) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body := r.Body
	if h.MaxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.MaxBody)
	}
	defer body.Close()

	var req retrieveRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Passphrase == "" {
		h.writeError(ctx, w, http.StatusBadRequest, "passphrase must not be empty")
		return
	}

	out, err := h.Service.Retrieve(ctx, chi.URLParam(r, "id"), req.Passphrase)
	if err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}
	resp := retrieveResponse{
		Secret:     out.Ciphertext,
		Extendable: out.Extendable,
		ExpiresAt:  out.ExpiresAt,
	}
	if out.Limited {
		remaining := out.ViewsRemaining
		resp.ViewsRemaining = &remaining
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/veil-sh/veil/internal/app"
)

type createRequest struct {
	Secret         string `json:"secret"`
	MaxViews       *int   `json:"max_views,omitempty"`
	ExpiresInHours *int   `json:"expires_in_hours,omitempty"`
	Extendable     *bool  `json:"extendable,omitempty"`
}

type createResponse struct {
	ID         string    `json:"id"`
	Passphrase string    `json:"passphrase"`
	ExpiresAt  time.Time `json:"expires_at"`
	ShareURL   string    `json:"share_url"`
}

// handleCreate implements POST /api/secrets.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body := r.Body
	if h.MaxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.MaxBody)
	}
	defer body.Close()

	var req createRequest
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Secret == "" {
		h.writeError(ctx, w, http.StatusBadRequest, "secret must not be empty")
		return
	}
	if req.MaxViews != nil && *req.MaxViews < 0 {
		h.writeError(ctx, w, http.StatusBadRequest, "max_views must not be negative")
		return
	}
	if req.ExpiresInHours != nil && *req.ExpiresInHours < 0 {
		h.writeError(ctx, w, http.StatusBadRequest, "expires_in_hours must not be negative")
		return
	}

	in := app.CreateInput{
		Ciphertext: req.Secret,
		Extendable: true,
	}
	if req.MaxViews != nil {
		in.MaxViews = *req.MaxViews
	}
	if req.ExpiresInHours != nil {
		in.ExpiresInHours = *req.ExpiresInHours
	}
	if req.Extendable != nil {
		in.Extendable = *req.Extendable
	}

	out, err := h.Service.Create(ctx, in)
	if err != nil {
		h.mapServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createResponse{
		ID:         out.ID.String(),
		Passphrase: out.Passphrase,
		ExpiresAt:  out.ExpiresAt,
		ShareURL:   out.ShareURL,
	})
}

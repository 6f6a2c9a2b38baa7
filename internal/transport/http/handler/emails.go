package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-account-api/internal/pkg/validate"
	"github.com/go-account-api/internal/transport/http/middleware"
)

type rawSender interface {
	SendRaw(ctx context.Context, requestedBy string, recipients []string, subject, htmlBody string) error
}

// EmailHandler exposes operational mail delivery to administrators.
type EmailHandler struct {
	sender rawSender
}

func NewEmailHandler(sender rawSender) *EmailHandler { return &EmailHandler{sender: sender} }

func (h *EmailHandler) Send(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req struct {
		Recipients []string `json:"recipients" validate:"required,min=1,dive,email"`
		Subject    string   `json:"subject" validate:"required"`
		Body       string   `json:"body" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.sender.SendRaw(r.Context(), claims.UserID, req.Recipients, req.Subject, req.Body); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "email sent"})
}

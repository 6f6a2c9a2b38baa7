package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-account-api/internal/application/otp"
	"github.com/go-account-api/internal/application/user"
	"github.com/go-account-api/internal/pkg/validate"
)

// VerificationHandler handles the account verification code endpoints.
type VerificationHandler struct {
	svc user.Service
}

func NewVerificationHandler(svc user.Service) *VerificationHandler {
	return &VerificationHandler{svc: svc}
}

func (h *VerificationHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
		OTP   string `json:"otp" validate:"required,len=6,numeric"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	v, err := h.svc.ConfirmCode(r.Context(), req.Email, req.OTP)
	if err != nil {
		httpError(w, err)
		return
	}
	switch v.Reason {
	case otp.ReasonOK:
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "account verified"})
	case otp.ReasonNotFound:
		writeError(w, http.StatusNotFound, "no active verification code, request a new one")
	case otp.ReasonExpired:
		writeError(w, http.StatusUnauthorized, "verification code expired, request a new one")
	default:
		writeError(w, http.StatusUnauthorized, "invalid verification code")
	}
}

func (h *VerificationHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email   string `json:"email" validate:"required,email"`
		Channel string `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if req.Channel == "" {
		req.Channel = "email"
	}
	if err := h.svc.Resend(r.Context(), req.Email, req.Channel); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "a new verification code was sent"})
}

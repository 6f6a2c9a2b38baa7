package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-account-api/internal/application/otp"
	"github.com/go-account-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func verifyBody(email, code string) *bytes.Reader {
	body, _ := json.Marshal(map[string]string{"email": email, "otp": code})
	return bytes.NewReader(body)
}

func TestVerifyOTP_Accepted(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("ConfirmCode", mock.Anything, "alice@example.com", "482913").
		Return(otp.Validation{Accepted: true, Reason: otp.ReasonOK}, nil)
	h := NewVerificationHandler(svc)

	r := httptest.NewRequest(http.MethodPost, "/v1/verify-otp", verifyBody("alice@example.com", "482913"))
	rr := httptest.NewRecorder()
	h.VerifyOTP(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestVerifyOTP_Mismatch(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("ConfirmCode", mock.Anything, "alice@example.com", "000000").
		Return(otp.Validation{Reason: otp.ReasonMismatch}, nil)
	h := NewVerificationHandler(svc)

	r := httptest.NewRequest(http.MethodPost, "/v1/verify-otp", verifyBody("alice@example.com", "000000"))
	rr := httptest.NewRecorder()
	h.VerifyOTP(rr, r)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestVerifyOTP_Expired(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("ConfirmCode", mock.Anything, "alice@example.com", "482913").
		Return(otp.Validation{Reason: otp.ReasonExpired}, nil)
	h := NewVerificationHandler(svc)

	r := httptest.NewRequest(http.MethodPost, "/v1/verify-otp", verifyBody("alice@example.com", "482913"))
	rr := httptest.NewRecorder()
	h.VerifyOTP(rr, r)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	var resp MessageEnvelope
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Contains(t, resp.Error, "expired")
}

func TestVerifyOTP_NoActiveCode(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("ConfirmCode", mock.Anything, "alice@example.com", "482913").
		Return(otp.Validation{Reason: otp.ReasonNotFound}, nil)
	h := NewVerificationHandler(svc)

	r := httptest.NewRequest(http.MethodPost, "/v1/verify-otp", verifyBody("alice@example.com", "482913"))
	rr := httptest.NewRecorder()
	h.VerifyOTP(rr, r)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestVerifyOTP_NonNumericCodeRejected(t *testing.T) {
	h := NewVerificationHandler(&mockUserSvc{})

	r := httptest.NewRequest(http.MethodPost, "/v1/verify-otp", verifyBody("alice@example.com", "12a456"))
	rr := httptest.NewRecorder()
	h.VerifyOTP(rr, r)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestResendOTP_DefaultsToEmailChannel(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("Resend", mock.Anything, "alice@example.com", "email").Return(nil)
	h := NewVerificationHandler(svc)

	body, _ := json.Marshal(map[string]string{"email": "alice@example.com"})
	r := httptest.NewRequest(http.MethodPost, "/v1/resend-otp", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.ResendOTP(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestResendOTP_AlreadyVerified(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("Resend", mock.Anything, "alice@example.com", "email").
		Return(fmt.Errorf("account is already verified: %w", domain.ErrConflict))
	h := NewVerificationHandler(svc)

	body, _ := json.Marshal(map[string]string{"email": "alice@example.com"})
	r := httptest.NewRequest(http.MethodPost, "/v1/resend-otp", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.ResendOTP(rr, r)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

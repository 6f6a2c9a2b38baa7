package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-account-api/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

// Token verification failures. Expiry is distinguished so the user-facing
// message can say "request a new one"; every other cause collapses into
// ErrMalformed to avoid leaking which check failed.
var (
	ErrExpired   = errors.New("token expired")
	ErrMalformed = errors.New("invalid or malformed token")
)

// Claims holds the session bearer token payload.
type Claims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// resetClaims is the reset-link token payload. The purpose claim prevents a
// general bearer token from ever passing reset verification even if the two
// secrets were misconfigured to the same value.
type resetClaims struct {
	UserID  string `json:"user_id"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

const purposePasswordReset = "password_reset"

// Provider signs and verifies HS256 JWTs with two independent secrets:
// one for session bearer tokens, one exclusively for reset-link tokens.
type Provider struct {
	generalSecret []byte
	resetSecret   []byte
	generalTTL    time.Duration
	resetTTL      time.Duration
	now           func() time.Time
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	if cfg.GeneralSigningSecret == "" || cfg.ResetSigningSecret == "" {
		return nil, errors.New("signing secrets must be configured")
	}
	return &Provider{
		generalSecret: []byte(cfg.GeneralSigningSecret),
		resetSecret:   []byte(cfg.ResetSigningSecret),
		generalTTL:    cfg.GeneralTokenTTL,
		resetTTL:      cfg.ResetTokenTTL,
		now:           time.Now,
	}, nil
}

// Sign issues a session bearer token.
func (p *Provider) Sign(userID, role, sessionID string) (string, error) {
	now := p.now()
	claims := Claims{
		UserID:    userID,
		Role:      role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(p.generalTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.generalSecret)
}

// Verify parses and validates a session bearer token.
func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.generalSecret, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("bearer token: %w", ErrExpired)
		}
		return nil, fmt.Errorf("bearer token: %w", ErrMalformed)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("bearer token: %w", ErrMalformed)
	}
	return claims, nil
}

// SignResetToken issues a password-reset token carrying the owner's id,
// signed with the reset-specific secret.
func (p *Provider) SignResetToken(userID string) (string, error) {
	now := p.now()
	claims := resetClaims{
		UserID:  userID,
		Purpose: purposePasswordReset,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(p.resetTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.resetSecret)
}

// VerifyResetToken validates a reset token and returns the owner's id.
// Returns ErrExpired when the embedded expiry has passed and ErrMalformed
// for every other failure.
func (p *Provider) VerifyResetToken(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &resetClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.resetSecret, nil
	}, jwt.WithTimeFunc(p.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("reset token: %w", ErrExpired)
		}
		return "", fmt.Errorf("reset token: %w", ErrMalformed)
	}
	claims, ok := token.Claims.(*resetClaims)
	if !ok || !token.Valid || claims.Purpose != purposePasswordReset || claims.UserID == "" {
		return "", fmt.Errorf("reset token: %w", ErrMalformed)
	}
	return claims.UserID, nil
}

package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-account-api/internal/domain"
	jwtinfra "github.com/go-account-api/internal/infrastructure/jwt"
	"github.com/go-account-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// User-facing reset token failures. Expiry gets its own message so the user
// knows to request a new link; every other cause is collapsed into one.
var (
	ErrResetTokenExpired   = errors.New("the reset token is expired, please request a new one")
	ErrResetTokenMalformed = errors.New("invalid or malformed reset token")
)

// Validation reasons. These are routine outcomes, not faults.
type Reason string

const (
	ReasonOK       Reason = "OK"
	ReasonNotFound Reason = "NOT_FOUND"
	ReasonExpired  Reason = "EXPIRED"
	ReasonMismatch Reason = "MISMATCH"
)

// Validation is the structured result of a code check.
type Validation struct {
	Accepted bool
	Reason   Reason
}

type Service interface {
	// Issue creates a one-time credential for the user and returns its
	// plaintext (digits or signed token). The plaintext is never persisted.
	Issue(ctx context.Context, u *domain.User, kind domain.OTPKind) (string, error)
	// FindActive returns the newest unused record for (user, kind).
	// It does not check expiry; callers compare ExpiresAt themselves.
	FindActive(ctx context.Context, userID string, kind domain.OTPKind) (*domain.OTPRecord, error)
	// Validate checks the candidate secret against the active record and
	// consumes the record atomically on success.
	Validate(ctx context.Context, userID string, kind domain.OTPKind, secret string) (Validation, error)
	// InvalidateAll marks every unused record for (user, kind) as used,
	// without regard to expiry.
	InvalidateAll(ctx context.Context, userID string, kind domain.OTPKind) error
	// VerifyResetToken verifies a reset-link token and returns the owner id.
	VerifyResetToken(token string) (string, error)
}

type otpStore interface {
	Put(ctx context.Context, rec *domain.OTPRecord) error
	FindActive(ctx context.Context, userID string, kind domain.OTPKind) (*domain.OTPRecord, error)
	ConsumeIfUnused(ctx context.Context, otpID string) error
	MarkAllUsed(ctx context.Context, userID string, kind domain.OTPKind) error
}

type resetSigner interface {
	SignResetToken(userID string) (string, error)
	VerifyResetToken(token string) (string, error)
}

type service struct {
	repo     otpStore
	signer   resetSigner
	otpTTL   time.Duration
	resetTTL time.Duration
	now      func() time.Time
}

type ServiceDeps struct {
	OTPRepo  otpStore
	Signer   resetSigner
	OTPTTL   time.Duration
	ResetTTL time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:     deps.OTPRepo,
		signer:   deps.Signer,
		otpTTL:   deps.OTPTTL,
		resetTTL: deps.ResetTTL,
		now:      time.Now,
	}
}

func (s *service) Issue(ctx context.Context, u *domain.User, kind domain.OTPKind) (string, error) {
	switch kind {
	case domain.OTPKindNumericCode:
		return s.issueCode(ctx, u)
	case domain.OTPKindResetLink:
		return s.issueResetToken(ctx, u)
	default:
		return "", fmt.Errorf("unsupported otp kind %q: %w", kind, domain.ErrBadRequest)
	}
}

func (s *service) issueCode(ctx context.Context, u *domain.User) (string, error) {
	// Uniform in [100000, 999999] so the code is always six digits.
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%d", n.Int64()+100000)

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	rec := &domain.OTPRecord{
		OTPID:     id.New(),
		UserID:    u.UserID,
		Code:      string(hash),
		Kind:      domain.OTPKindNumericCode,
		ExpiresAt: now.Add(s.otpTTL).Unix(),
		Used:      false,
		CreatedAt: now,
	}
	if err := s.repo.Put(ctx, rec); err != nil {
		return "", err
	}
	return code, nil
}

func (s *service) issueResetToken(ctx context.Context, u *domain.User) (string, error) {
	token, err := s.signer.SignResetToken(u.UserID)
	if err != nil {
		return "", err
	}
	// The signed token is the authority; the record only answers
	// "has an active reset been requested" and carries no code.
	now := s.now().UTC()
	rec := &domain.OTPRecord{
		OTPID:     id.New(),
		UserID:    u.UserID,
		Kind:      domain.OTPKindResetLink,
		ExpiresAt: now.Add(s.resetTTL).Unix(),
		Used:      false,
		CreatedAt: now,
	}
	if err := s.repo.Put(ctx, rec); err != nil {
		return "", err
	}
	return token, nil
}

func (s *service) FindActive(ctx context.Context, userID string, kind domain.OTPKind) (*domain.OTPRecord, error) {
	return s.repo.FindActive(ctx, userID, kind)
}

func (s *service) Validate(ctx context.Context, userID string, kind domain.OTPKind, secret string) (Validation, error) {
	rec, err := s.repo.FindActive(ctx, userID, kind)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Validation{Reason: ReasonNotFound}, nil
		}
		return Validation{}, err
	}
	if rec.ExpiresAt < s.now().Unix() {
		return Validation{Reason: ReasonExpired}, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.Code), []byte(secret)); err != nil {
		return Validation{Reason: ReasonMismatch}, nil
	}
	// Conditional consume: if a concurrent validation won the race the
	// record is gone from our perspective.
	if err := s.repo.ConsumeIfUnused(ctx, rec.OTPID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Validation{Reason: ReasonNotFound}, nil
		}
		return Validation{}, err
	}
	return Validation{Accepted: true, Reason: ReasonOK}, nil
}

func (s *service) InvalidateAll(ctx context.Context, userID string, kind domain.OTPKind) error {
	return s.repo.MarkAllUsed(ctx, userID, kind)
}

func (s *service) VerifyResetToken(token string) (string, error) {
	userID, err := s.signer.VerifyResetToken(token)
	if err != nil {
		if errors.Is(err, jwtinfra.ErrExpired) {
			return "", fmt.Errorf("%w: %w", ErrResetTokenExpired, domain.ErrUnauthorized)
		}
		return "", fmt.Errorf("%w: %w", ErrResetTokenMalformed, domain.ErrUnauthorized)
	}
	return userID, nil
}

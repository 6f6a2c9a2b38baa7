package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-account-api/internal/application/otp"
	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldEmail        = "email"
	fieldPhone        = "phone"
	fieldFirstName    = "first_name"
	fieldLastName     = "last_name"
	fieldRole         = "role"
	fieldStatus       = "status"
	fieldPasswordHash = "password_hash"
	fieldAvatarKey    = "avatar_key"
)

const avatarURLTTL = 15 * time.Minute

type Service interface {
	Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error)
	Delete(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error

	// EnsureVerified gates protected flows on account status. For an
	// unverified account it checks for an outstanding active credential
	// of the given kind: when one exists nothing is issued, so the user
	// can still enter the code they already received; when none exists a
	// fresh one is issued and dispatched. Either way the caller gets
	// ErrVerificationPending instead of a pass.
	EnsureVerified(ctx context.Context, u *domain.User, kind domain.OTPKind) error
	// ConfirmCode checks a submitted code and, on acceptance, promotes the
	// account from unverified to verified. Confirming an already verified
	// account with a valid code is a no-op, not an error.
	ConfirmCode(ctx context.Context, email, code string) (otp.Validation, error)
	// Resend invalidates every outstanding code and dispatches a fresh one
	// over the requested channel.
	Resend(ctx context.Context, email, channel string) error

	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error

	UploadAvatar(ctx context.Context, userID string, body io.Reader, contentType string) (string, error)
	AvatarURL(ctx context.Context, userID string) (string, error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	SoftDelete(ctx context.Context, userID string) error
}

type sessionStore interface {
	SoftDeleteByUser(ctx context.Context, userID string) error
}

type dispatcher interface {
	SendCode(ctx context.Context, u *domain.User, code string) error
	SendCodeSMS(ctx context.Context, u *domain.User, code string) error
	SendResetLink(ctx context.Context, u *domain.User, token string) error
}

type avatarStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type service struct {
	repo        userStore
	sessionRepo sessionStore
	otpSvc      otp.Service
	notifier    dispatcher
	avatars     avatarStore
}

type ServiceDeps struct {
	UserRepo    userStore
	SessionRepo sessionStore
	OTPService  otp.Service
	Notifier    dispatcher
	Avatars     avatarStore
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:        deps.UserRepo,
		sessionRepo: deps.SessionRepo,
		otpSvc:      deps.OTPService,
		notifier:    deps.Notifier,
		avatars:     deps.Avatars,
	}
}

func (s *service) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         domain.RoleUser,
		Status:       domain.StatusUnverified,
		Enable:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Put(ctx, u); err != nil {
		return nil, err
	}
	// The account exists even if dispatch fails; the caller can resend.
	if err := s.issueAndSendCode(ctx, u, channelEmail); err != nil {
		return u, err
	}
	return u, nil
}

func (s *service) List(ctx context.Context, limit int, cursor string) ([]domain.User, string, error) {
	if limit < 1 {
		limit = 50
	}
	return s.repo.ScanPage(ctx, int32(limit), cursor)
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	updates := map[string]interface{}{}
	if req.Email != nil {
		updates[fieldEmail] = *req.Email
	}
	if req.Phone != nil {
		updates[fieldPhone] = *req.Phone
	}
	if req.FirstName != nil {
		updates[fieldFirstName] = *req.FirstName
	}
	if req.LastName != nil {
		updates[fieldLastName] = *req.LastName
	}
	if req.Role != nil {
		switch *req.Role {
		case domain.RoleAdmin, domain.RoleUser:
			updates[fieldRole] = *req.Role
		default:
			return nil, fmt.Errorf("invalid role: %w", domain.ErrBadRequest)
		}
	}
	if req.Status != nil {
		switch *req.Status {
		case domain.StatusVerified, domain.StatusSuspended:
			updates[fieldStatus] = *req.Status
		default:
			return nil, fmt.Errorf("invalid status: %w", domain.ErrBadRequest)
		}
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, userID)
	}
	if err := s.repo.Update(ctx, userID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}

func (s *service) Delete(ctx context.Context, userID string) error {
	if err := s.repo.SoftDelete(ctx, userID); err != nil {
		return err
	}
	return s.sessionRepo.SoftDeleteByUser(ctx, userID)
}

func (s *service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)); err != nil {
		return fmt.Errorf("current password is incorrect: %w", domain.ErrUnauthorized)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, userID, map[string]interface{}{fieldPasswordHash: string(hash)})
}

const (
	channelEmail = "email"
	channelSMS   = "sms"
)

func (s *service) issueAndSendCode(ctx context.Context, u *domain.User, channel string) error {
	code, err := s.otpSvc.Issue(ctx, u, domain.OTPKindNumericCode)
	if err != nil {
		return err
	}
	switch channel {
	case channelSMS:
		return s.notifier.SendCodeSMS(ctx, u, code)
	default:
		return s.notifier.SendCode(ctx, u, code)
	}
}

func (s *service) EnsureVerified(ctx context.Context, u *domain.User, kind domain.OTPKind) error {
	switch u.Status {
	case domain.StatusVerified:
		return nil
	case domain.StatusSuspended:
		return fmt.Errorf("account is suspended: %w", domain.ErrForbidden)
	}
	// An outstanding active record means a code is already in the user's
	// inbox; reissuing here would invalidate it on every retry.
	if _, err := s.otpSvc.FindActive(ctx, u.UserID, kind); err == nil {
		return fmt.Errorf("a verification code was already sent to %s: %w", u.Email, domain.ErrVerificationPending)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	switch kind {
	case domain.OTPKindNumericCode:
		if err := s.issueAndSendCode(ctx, u, channelEmail); err != nil {
			return err
		}
	case domain.OTPKindResetLink:
		token, err := s.otpSvc.Issue(ctx, u, kind)
		if err != nil {
			return err
		}
		if err := s.notifier.SendResetLink(ctx, u, token); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported otp kind %q: %w", kind, domain.ErrBadRequest)
	}
	return fmt.Errorf("a verification code was sent to %s: %w", u.Email, domain.ErrVerificationPending)
}

func (s *service) ConfirmCode(ctx context.Context, email, code string) (otp.Validation, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return otp.Validation{}, err
	}
	if u.Status == domain.StatusSuspended {
		return otp.Validation{}, fmt.Errorf("account is suspended: %w", domain.ErrForbidden)
	}
	v, err := s.otpSvc.Validate(ctx, u.UserID, domain.OTPKindNumericCode, code)
	if err != nil {
		return otp.Validation{}, err
	}
	if v.Accepted && u.Status == domain.StatusUnverified {
		if err := s.repo.Update(ctx, u.UserID, map[string]interface{}{fieldStatus: domain.StatusVerified}); err != nil {
			return otp.Validation{}, err
		}
	}
	return v, nil
}

func (s *service) Resend(ctx context.Context, email, channel string) error {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u.Status == domain.StatusVerified {
		return fmt.Errorf("account is already verified: %w", domain.ErrConflict)
	}
	if u.Status == domain.StatusSuspended {
		return fmt.Errorf("account is suspended: %w", domain.ErrForbidden)
	}
	if channel != channelEmail && channel != channelSMS {
		return fmt.Errorf("unsupported channel %q: %w", channel, domain.ErrBadRequest)
	}
	if err := s.otpSvc.InvalidateAll(ctx, u.UserID, domain.OTPKindNumericCode); err != nil {
		return err
	}
	return s.issueAndSendCode(ctx, u, channel)
}

func (s *service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.otpSvc.InvalidateAll(ctx, u.UserID, domain.OTPKindResetLink); err != nil {
		return err
	}
	token, err := s.otpSvc.Issue(ctx, u, domain.OTPKindResetLink)
	if err != nil {
		return err
	}
	return s.notifier.SendResetLink(ctx, u, token)
}

func (s *service) ResetPassword(ctx context.Context, token, newPassword string) error {
	userID, err := s.otpSvc.VerifyResetToken(token)
	if err != nil {
		return err
	}
	// A signed token alone is not enough: the reset request must still be
	// outstanding. Using a link twice, or after a newer request, fails here.
	if _, err := s.otpSvc.FindActive(ctx, userID, domain.OTPKindResetLink); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("reset link already used or revoked: %w", domain.ErrUnauthorized)
		}
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, userID, map[string]interface{}{fieldPasswordHash: string(hash)}); err != nil {
		return err
	}
	if err := s.otpSvc.InvalidateAll(ctx, userID, domain.OTPKindResetLink); err != nil {
		return err
	}
	// Changing the password revokes every open session.
	return s.sessionRepo.SoftDeleteByUser(ctx, userID)
}

func (s *service) UploadAvatar(ctx context.Context, userID string, body io.Reader, contentType string) (string, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	key := "avatars/" + u.UserID
	if _, err := s.avatars.Upload(ctx, key, body, contentType); err != nil {
		return "", err
	}
	if u.AvatarKey != key {
		if err := s.repo.Update(ctx, userID, map[string]interface{}{fieldAvatarKey: key}); err != nil {
			return "", err
		}
	}
	return s.avatars.PresignedURL(ctx, key, avatarURLTTL)
}

func (s *service) AvatarURL(ctx context.Context, userID string) (string, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.AvatarKey == "" {
		return "", fmt.Errorf("no avatar uploaded: %w", domain.ErrNotFound)
	}
	return s.avatars.PresignedURL(ctx, u.AvatarKey, avatarURLTTL)
}

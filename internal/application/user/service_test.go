package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/go-account-api/internal/application/otp"
	"github.com/go-account-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Put(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error) {
	args := m.Called(ctx, limit, cursor)
	return args.Get(0).([]domain.User), args.String(1), args.Error(2)
}
func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}
func (m *mockUserStore) SoftDelete(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) SoftDeleteByUser(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type mockOTPService struct{ mock.Mock }

func (m *mockOTPService) Issue(ctx context.Context, u *domain.User, kind domain.OTPKind) (string, error) {
	args := m.Called(ctx, u, kind)
	return args.String(0), args.Error(1)
}
func (m *mockOTPService) FindActive(ctx context.Context, userID string, kind domain.OTPKind) (*domain.OTPRecord, error) {
	args := m.Called(ctx, userID, kind)
	if r, _ := args.Get(0).(*domain.OTPRecord); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOTPService) Validate(ctx context.Context, userID string, kind domain.OTPKind, secret string) (otp.Validation, error) {
	args := m.Called(ctx, userID, kind, secret)
	return args.Get(0).(otp.Validation), args.Error(1)
}
func (m *mockOTPService) InvalidateAll(ctx context.Context, userID string, kind domain.OTPKind) error {
	return m.Called(ctx, userID, kind).Error(0)
}
func (m *mockOTPService) VerifyResetToken(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) SendCode(ctx context.Context, u *domain.User, code string) error {
	return m.Called(ctx, u, code).Error(0)
}
func (m *mockDispatcher) SendCodeSMS(ctx context.Context, u *domain.User, code string) error {
	return m.Called(ctx, u, code).Error(0)
}
func (m *mockDispatcher) SendResetLink(ctx context.Context, u *domain.User, token string) error {
	return m.Called(ctx, u, token).Error(0)
}

type mockAvatarStore struct{ mock.Mock }

func (m *mockAvatarStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	args := m.Called(ctx, key, r, contentType)
	return args.String(0), args.Error(1)
}
func (m *mockAvatarStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

// --- helpers ---

func newTestService(us *mockUserStore, ss *mockSessionStore, os *mockOTPService, d *mockDispatcher, av *mockAvatarStore) Service {
	return NewService(ServiceDeps{
		UserRepo:    us,
		SessionRepo: ss,
		OTPService:  os,
		Notifier:    d,
		Avatars:     av,
	})
}

func baseReq() domain.CreateUserRequest {
	return domain.CreateUserRequest{
		Email:     "alice@example.com",
		Password:  "password123",
		FirstName: "Alice",
		LastName:  "Smith",
	}
}

func notFoundErr() error {
	return fmt.Errorf("user not found: %w", domain.ErrNotFound)
}

// --- Register ---

func TestRegister_EmailConflict(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(&domain.User{}, nil)

	svc := newTestService(us, nil, nil, nil, nil)
	_, err := svc.Register(context.Background(), baseReq())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	us.AssertExpectations(t)
}

func TestRegister_CreatesUnverifiedAndDispatchesCode(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, notFoundErr())
	us.On("Put", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	os := &mockOTPService{}
	os.On("Issue", mock.Anything, mock.AnythingOfType("*domain.User"), domain.OTPKindNumericCode).
		Return("482913", nil)

	d := &mockDispatcher{}
	d.On("SendCode", mock.Anything, mock.AnythingOfType("*domain.User"), "482913").Return(nil)

	svc := newTestService(us, nil, os, d, nil)
	u, err := svc.Register(context.Background(), baseReq())

	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnverified, u.Status)
	assert.Equal(t, domain.RoleUser, u.Role)
	assert.True(t, u.Enable)
	assert.NotEqual(t, "password123", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("password123")))
	us.AssertExpectations(t)
	os.AssertExpectations(t)
	d.AssertExpectations(t)
}

func TestRegister_DispatchFailureStillPersistsAccount(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, notFoundErr())
	us.On("Put", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	os := &mockOTPService{}
	os.On("Issue", mock.Anything, mock.Anything, domain.OTPKindNumericCode).Return("482913", nil)

	d := &mockDispatcher{}
	d.On("SendCode", mock.Anything, mock.Anything, "482913").
		Return(fmt.Errorf("send mail: connection refused: %w", domain.ErrUnavailable))

	svc := newTestService(us, nil, os, d, nil)
	u, err := svc.Register(context.Background(), baseReq())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnavailable))
	require.NotNil(t, u) // the account was created, only dispatch failed
	us.AssertExpectations(t)
}

func TestRegister_StoreFaultIsNotTreatedAsFreeEmail(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(nil, errors.New("dynamodb: connection reset"))

	svc := newTestService(us, nil, nil, nil, nil)
	u, err := svc.Register(context.Background(), baseReq())

	require.Error(t, err)
	assert.Nil(t, u)
	assert.False(t, errors.Is(err, domain.ErrConflict))
	us.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

// --- EnsureVerified ---

func TestEnsureVerified_VerifiedPassesThrough(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil, nil)
	err := svc.EnsureVerified(context.Background(), &domain.User{Status: domain.StatusVerified}, domain.OTPKindNumericCode)
	assert.NoError(t, err)
}

func TestEnsureVerified_SuspendedForbidden(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil, nil)
	err := svc.EnsureVerified(context.Background(), &domain.User{Status: domain.StatusSuspended}, domain.OTPKindNumericCode)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestEnsureVerified_NoActiveCodeIssuesAndReportsPending(t *testing.T) {
	u := &domain.User{UserID: "u1", Email: "alice@example.com", Status: domain.StatusUnverified}

	os := &mockOTPService{}
	os.On("FindActive", mock.Anything, "u1", domain.OTPKindNumericCode).Return(nil, notFoundErr())
	os.On("Issue", mock.Anything, u, domain.OTPKindNumericCode).Return("114857", nil)

	d := &mockDispatcher{}
	d.On("SendCode", mock.Anything, u, "114857").Return(nil)

	svc := newTestService(nil, nil, os, d, nil)
	err := svc.EnsureVerified(context.Background(), u, domain.OTPKindNumericCode)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVerificationPending))
	os.AssertExpectations(t)
	d.AssertExpectations(t)
}

func TestEnsureVerified_ActiveCodeLeftIntact(t *testing.T) {
	u := &domain.User{UserID: "u1", Email: "alice@example.com", Status: domain.StatusUnverified}

	os := &mockOTPService{}
	os.On("FindActive", mock.Anything, "u1", domain.OTPKindNumericCode).
		Return(&domain.OTPRecord{OTPID: "o1", UserID: "u1", Kind: domain.OTPKindNumericCode}, nil)

	svc := newTestService(nil, nil, os, &mockDispatcher{}, nil)
	err := svc.EnsureVerified(context.Background(), u, domain.OTPKindNumericCode)

	// The code already in the user's inbox must stay valid so they can
	// retry entering it; no reissue, no invalidation.
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrVerificationPending))
	os.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
	os.AssertNotCalled(t, "InvalidateAll", mock.Anything, mock.Anything, mock.Anything)
}

// --- ConfirmCode ---

func TestConfirmCode_PromotesUnverifiedAccount(t *testing.T) {
	u := &domain.User{UserID: "u1", Email: "alice@example.com", Status: domain.StatusUnverified}

	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)
	us.On("Update", mock.Anything, "u1",
		map[string]interface{}{fieldStatus: domain.StatusVerified}).Return(nil)

	os := &mockOTPService{}
	os.On("Validate", mock.Anything, "u1", domain.OTPKindNumericCode, "482913").
		Return(otp.Validation{Accepted: true, Reason: otp.ReasonOK}, nil)

	svc := newTestService(us, nil, os, nil, nil)
	v, err := svc.ConfirmCode(context.Background(), "alice@example.com", "482913")

	require.NoError(t, err)
	assert.True(t, v.Accepted)
	us.AssertExpectations(t)
}

func TestConfirmCode_AlreadyVerifiedNoStatusWrite(t *testing.T) {
	u := &domain.User{UserID: "u1", Email: "alice@example.com", Status: domain.StatusVerified}

	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)

	os := &mockOTPService{}
	os.On("Validate", mock.Anything, "u1", domain.OTPKindNumericCode, "482913").
		Return(otp.Validation{Accepted: true, Reason: otp.ReasonOK}, nil)

	svc := newTestService(us, nil, os, nil, nil)
	v, err := svc.ConfirmCode(context.Background(), "alice@example.com", "482913")

	require.NoError(t, err)
	assert.True(t, v.Accepted)
	us.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmCode_RejectedCodeLeavesStatusAlone(t *testing.T) {
	u := &domain.User{UserID: "u1", Email: "alice@example.com", Status: domain.StatusUnverified}

	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)

	os := &mockOTPService{}
	os.On("Validate", mock.Anything, "u1", domain.OTPKindNumericCode, "000000").
		Return(otp.Validation{Reason: otp.ReasonMismatch}, nil)

	svc := newTestService(us, nil, os, nil, nil)
	v, err := svc.ConfirmCode(context.Background(), "alice@example.com", "000000")

	require.NoError(t, err)
	assert.False(t, v.Accepted)
	assert.Equal(t, otp.ReasonMismatch, v.Reason)
	us.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmCode_UnknownEmail(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, notFoundErr())

	svc := newTestService(us, nil, nil, nil, nil)
	_, err := svc.ConfirmCode(context.Background(), "ghost@example.com", "482913")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestConfirmCode_SuspendedForbidden(t *testing.T) {
	u := &domain.User{UserID: "u1", Email: "alice@example.com", Status: domain.StatusSuspended}

	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)

	svc := newTestService(us, nil, nil, nil, nil)
	_, err := svc.ConfirmCode(context.Background(), "alice@example.com", "482913")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

// --- Resend ---

func TestResend_AlreadyVerifiedConflict(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(&domain.User{UserID: "u1", Status: domain.StatusVerified}, nil)

	svc := newTestService(us, nil, nil, nil, nil)
	err := svc.Resend(context.Background(), "alice@example.com", "email")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestResend_SMSChannel(t *testing.T) {
	phone := "+15550100"
	u := &domain.User{UserID: "u1", Email: "alice@example.com", Phone: &phone, Status: domain.StatusUnverified}

	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)

	os := &mockOTPService{}
	os.On("InvalidateAll", mock.Anything, "u1", domain.OTPKindNumericCode).Return(nil)
	os.On("Issue", mock.Anything, u, domain.OTPKindNumericCode).Return("771204", nil)

	d := &mockDispatcher{}
	d.On("SendCodeSMS", mock.Anything, u, "771204").Return(nil)

	svc := newTestService(us, nil, os, d, nil)
	require.NoError(t, svc.Resend(context.Background(), "alice@example.com", "sms"))

	d.AssertExpectations(t)
	d.AssertNotCalled(t, "SendCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestResend_UnsupportedChannel(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(&domain.User{UserID: "u1", Status: domain.StatusUnverified}, nil)

	svc := newTestService(us, nil, nil, nil, nil)
	err := svc.Resend(context.Background(), "alice@example.com", "carrier-pigeon")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

// --- ForgotPassword / ResetPassword ---

func TestForgotPassword_UnknownEmail(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, notFoundErr())

	svc := newTestService(us, nil, nil, nil, nil)
	err := svc.ForgotPassword(context.Background(), "ghost@example.com")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestForgotPassword_InvalidatesThenIssuesAndSendsLink(t *testing.T) {
	u := &domain.User{UserID: "u1", Email: "alice@example.com", Status: domain.StatusVerified}

	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(u, nil)

	os := &mockOTPService{}
	os.On("InvalidateAll", mock.Anything, "u1", domain.OTPKindResetLink).Return(nil)
	os.On("Issue", mock.Anything, u, domain.OTPKindResetLink).Return("signed-token", nil)

	d := &mockDispatcher{}
	d.On("SendResetLink", mock.Anything, u, "signed-token").Return(nil)

	svc := newTestService(us, nil, os, d, nil)
	require.NoError(t, svc.ForgotPassword(context.Background(), "alice@example.com"))

	os.AssertExpectations(t)
	d.AssertExpectations(t)
}

func TestResetPassword_HappyPath(t *testing.T) {
	us := &mockUserStore{}
	us.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		hash, ok := m[fieldPasswordHash].(string)
		return ok && bcrypt.CompareHashAndPassword([]byte(hash), []byte("newpassword1")) == nil
	})).Return(nil)

	ss := &mockSessionStore{}
	ss.On("SoftDeleteByUser", mock.Anything, "u1").Return(nil)

	os := &mockOTPService{}
	os.On("VerifyResetToken", "tok").Return("u1", nil)
	os.On("FindActive", mock.Anything, "u1", domain.OTPKindResetLink).
		Return(&domain.OTPRecord{OTPID: "o1", UserID: "u1"}, nil)
	os.On("InvalidateAll", mock.Anything, "u1", domain.OTPKindResetLink).Return(nil)

	svc := newTestService(us, ss, os, nil, nil)
	require.NoError(t, svc.ResetPassword(context.Background(), "tok", "newpassword1"))

	us.AssertExpectations(t)
	ss.AssertExpectations(t)
	os.AssertExpectations(t)
}

func TestResetPassword_ConsumedLinkRejected(t *testing.T) {
	os := &mockOTPService{}
	os.On("VerifyResetToken", "tok").Return("u1", nil)
	os.On("FindActive", mock.Anything, "u1", domain.OTPKindResetLink).
		Return(nil, notFoundErr())

	svc := newTestService(nil, nil, os, nil, nil)
	err := svc.ResetPassword(context.Background(), "tok", "newpassword1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestResetPassword_BadToken(t *testing.T) {
	os := &mockOTPService{}
	os.On("VerifyResetToken", "garbage").
		Return("", fmt.Errorf("%w: %w", otp.ErrResetTokenMalformed, domain.ErrUnauthorized))

	svc := newTestService(nil, nil, os, nil, nil)
	err := svc.ResetPassword(context.Background(), "garbage", "newpassword1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, otp.ErrResetTokenMalformed))
}

// --- Update / ChangePassword / Delete ---

func TestUpdate_InvalidRole(t *testing.T) {
	role := "superuser"
	svc := newTestService(&mockUserStore{}, nil, nil, nil, nil)
	_, err := svc.Update(context.Background(), "u1", domain.UpdateUserRequest{Role: &role})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestUpdate_InvalidStatus(t *testing.T) {
	status := "banned"
	svc := newTestService(&mockUserStore{}, nil, nil, nil, nil)
	_, err := svc.Update(context.Background(), "u1", domain.UpdateUserRequest{Status: &status})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestUpdate_NoFieldsReturnsCurrent(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)

	svc := newTestService(us, nil, nil, nil, nil)
	u, err := svc.Update(context.Background(), "u1", domain.UpdateUserRequest{})

	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)
	us.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.DefaultCost)
	require.NoError(t, err)

	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", PasswordHash: string(hash)}, nil)

	svc := newTestService(us, nil, nil, nil, nil)
	err = svc.ChangePassword(context.Background(), "u1", "wrong-horse", "newpassword1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestDelete_RevokesSessions(t *testing.T) {
	us := &mockUserStore{}
	us.On("SoftDelete", mock.Anything, "u1").Return(nil)

	ss := &mockSessionStore{}
	ss.On("SoftDeleteByUser", mock.Anything, "u1").Return(nil)

	svc := newTestService(us, ss, nil, nil, nil)
	require.NoError(t, svc.Delete(context.Background(), "u1"))

	us.AssertExpectations(t)
	ss.AssertExpectations(t)
}

// --- Avatars ---

func TestUploadAvatar_StoresKeyAndReturnsURL(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	us.On("Update", mock.Anything, "u1",
		map[string]interface{}{fieldAvatarKey: "avatars/u1"}).Return(nil)

	av := &mockAvatarStore{}
	av.On("Upload", mock.Anything, "avatars/u1", mock.Anything, "image/png").Return("avatars/u1", nil)
	av.On("PresignedURL", mock.Anything, "avatars/u1", avatarURLTTL).Return("https://bucket/avatars/u1?sig", nil)

	svc := newTestService(us, nil, nil, nil, av)
	url, err := svc.UploadAvatar(context.Background(), "u1", nil, "image/png")

	require.NoError(t, err)
	assert.Equal(t, "https://bucket/avatars/u1?sig", url)
	us.AssertExpectations(t)
	av.AssertExpectations(t)
}

func TestAvatarURL_NoneUploaded(t *testing.T) {
	us := &mockUserStore{}
	us.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)

	svc := newTestService(us, nil, nil, nil, nil)
	_, err := svc.AvatarURL(context.Background(), "u1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

package otp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-account-api/internal/domain"
	"github.com/go-account-api/internal/pkg/id"
)

type mailSender interface {
	Send(recipients []string, subject, htmlBody string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type auditStore interface {
	Put(ctx context.Context, n *domain.Notification) error
}

// Notifier renders and dispatches one-time credentials, recording an audit
// entry for every dispatch. Dispatch happens after the record is committed;
// a delivery failure does not roll the record back (best-effort delivery,
// the resend endpoint invalidates and reissues).
type Notifier struct {
	mailer       mailSender
	sms          smsSender
	audit        auditStore
	resetBaseURL string
	otpTTL       time.Duration
	resetTTL     time.Duration
}

type NotifierDeps struct {
	Mailer       mailSender
	SMSSender    smsSender
	AuditRepo    auditStore
	ResetBaseURL string
	OTPTTL       time.Duration
	ResetTTL     time.Duration
}

func NewNotifier(deps NotifierDeps) *Notifier {
	return &Notifier{
		mailer:       deps.Mailer,
		sms:          deps.SMSSender,
		audit:        deps.AuditRepo,
		resetBaseURL: deps.ResetBaseURL,
		otpTTL:       deps.OTPTTL,
		resetTTL:     deps.ResetTTL,
	}
}

// SendCode emails the verification code to the user.
func (n *Notifier) SendCode(ctx context.Context, u *domain.User, code string) error {
	body := renderVerifyEmail(u.FirstName, code, int(n.otpTTL.Minutes()))
	if err := n.mailer.Send([]string{u.Email}, verifyEmailSubject, body); err != nil {
		return err
	}
	n.record(ctx, u.UserID, "email", verifyEmailSubject)
	return nil
}

// SendCodeSMS texts the verification code to the user's phone number.
func (n *Notifier) SendCodeSMS(ctx context.Context, u *domain.User, code string) error {
	if u.Phone == nil || *u.Phone == "" {
		return fmt.Errorf("no phone number on account: %w", domain.ErrBadRequest)
	}
	if n.sms == nil {
		return fmt.Errorf("sms delivery is not configured: %w", domain.ErrUnavailable)
	}
	msg := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(n.otpTTL.Minutes()))
	if err := n.sms.SendSMS(ctx, *u.Phone, msg); err != nil {
		return err
	}
	n.record(ctx, u.UserID, "sms", "Verification code")
	return nil
}

// SendResetLink emails the password-reset link built from the signed token.
func (n *Notifier) SendResetLink(ctx context.Context, u *domain.User, token string) error {
	link := fmt.Sprintf("%s?token=%s", n.resetBaseURL, token)
	body := renderResetPassword(u.FirstName, link, int(n.resetTTL.Minutes()))
	if err := n.mailer.Send([]string{u.Email}, resetPasswordSubject, body); err != nil {
		return err
	}
	n.record(ctx, u.UserID, "email", resetPasswordSubject)
	return nil
}

// SendRaw dispatches arbitrary operational mail and records it against the
// requesting user.
func (n *Notifier) SendRaw(ctx context.Context, requestedBy string, recipients []string, subject, htmlBody string) error {
	if err := n.mailer.Send(recipients, subject, htmlBody); err != nil {
		return err
	}
	n.record(ctx, requestedBy, "email", subject)
	return nil
}

// record writes the dispatch audit entry. Audit failures are logged, not
// surfaced: the message already left the building.
func (n *Notifier) record(ctx context.Context, userID, channel, subject string) {
	now := time.Now().UTC()
	entry := &domain.Notification{
		NotificationID: id.New(),
		UserID:         userID,
		Channel:        channel,
		Subject:        subject,
		Message:        fmt.Sprintf("%s sent via %s", subject, channel),
		Readed:         0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := n.audit.Put(ctx, entry); err != nil {
		slog.Warn("failed to record dispatch audit entry", "user_id", userID, "channel", channel, "err", err)
	}
}

package domain

import "time"

// OTPKind distinguishes the two one-time credential variants.
type OTPKind string

const (
	// OTPKindNumericCode is a 6-digit emailed/texted passcode, bcrypt-hashed at rest.
	OTPKindNumericCode OTPKind = "numeric_code"
	// OTPKindResetLink is a signed password-reset token; the record carries no
	// code because the token itself is the authority. The record exists so
	// "has an active reset been requested" checks can be answered.
	OTPKindResetLink OTPKind = "reset_link"
)

// OTPRecord is one issued one-time credential.
// Records are never deleted: Used and ExpiresAt are the only end-of-life
// signals, which leaves an audit trail of every issued code.
// PK: otp_id. GSI: user_id + created_at for most-recent-first lookups.
type OTPRecord struct {
	OTPID     string    `json:"id" dynamodbav:"otp_id"`
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	Code      string    `json:"-" dynamodbav:"code"` // bcrypt hash, numeric_code only
	Kind      OTPKind   `json:"kind" dynamodbav:"kind"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds
	Used      bool      `json:"used" dynamodbav:"used"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}

package domain

import "time"

// Notification is an audit entry for a dispatched message (verification
// code, reset link, operational mail). Entries double as the user's in-app
// notification feed.
type Notification struct {
	NotificationID string    `json:"id" dynamodbav:"notification_id"`
	UserID         string    `json:"user_id" dynamodbav:"user_id"`
	Channel        string    `json:"channel" dynamodbav:"channel"` // "email" | "sms"
	Subject        string    `json:"subject" dynamodbav:"subject"`
	Message        string    `json:"message" dynamodbav:"message"`
	Readed         int       `json:"readed" dynamodbav:"readed"` // legacy field name preserved
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated" dynamodbav:"updated_at"`
}

package config

import (
	"os"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string

	// GeneralSigningSecret signs session bearer tokens. ResetSigningSecret
	// signs password-reset link tokens and must stay distinct so holders of
	// the general secret cannot forge reset tokens.
	GeneralSigningSecret string
	ResetSigningSecret   string
	GeneralTokenTTL      time.Duration
	ResetTokenTTL        time.Duration
	OTPTTL               time.Duration
	RefreshTokenTTL      time.Duration

	ResetLinkBaseURL string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string
	OTPs          string
	Sessions      string
	Notifications string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:         getEnv("DYNAMO_TABLE_USERS", "users"),
			OTPs:          getEnv("DYNAMO_TABLE_OTPS", "otps"),
			Sessions:      getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			Notifications: getEnv("DYNAMO_TABLE_NOTIFICATIONS", "notifications"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "go-account-files"),

		GeneralSigningSecret: getEnv("JWT_SECRET", "dev-general-secret"),
		ResetSigningSecret:   getEnv("JWT_SECRET_RESET", "dev-reset-secret"),
		GeneralTokenTTL:      getEnvDuration("JWT_EXPIRY", 15*time.Minute),
		ResetTokenTTL:        getEnvDuration("RESET_TOKEN_EXPIRY", 15*time.Minute),
		OTPTTL:               getEnvDuration("OTP_EXPIRY", 5*time.Minute),
		RefreshTokenTTL:      getEnvDuration("REFRESH_TOKEN_EXPIRY", 30*24*time.Hour),

		ResetLinkBaseURL: getEnv("RESET_LINK_BASE_URL", "http://localhost:3000/reset-password"),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion: getEnv("SNS_REGION", "us-east-1"),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

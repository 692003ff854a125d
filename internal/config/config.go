package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort   string
	AppEnv    string
	LogLevel  string
	LogFormat string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	ChallengeStore string // "dynamo" | "redis"
	RedisURL       string
	StorageTimeout time.Duration

	ResendCooldown time.Duration
	ReaperInterval time.Duration // 0 disables the reaper
	ReaperGrace    time.Duration
	FingerprintKey string
	RedirectURL    string // sent to the client after a successful verification

	SMTPHost       string
	SMTPPort       string
	SMTPFrom       string
	SMTPUsername   string
	SMTPPassword   string
	SMTPMaxRetries int

	SNSRegion          string
	AlertTopicARN      string // empty disables alerting
	AuditArchiveBucket string // empty disables the S3 archive

	AllowedOrigins []string // CORS allowed origins
	RateLimitRPS   float64
	RateLimitBurst int
	TrustedProxies []string // peers whose forwarding headers are believed
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users         string
	OtpChallenges string
	LoginAttempts string
	OtpAttempts   string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:   getEnv("APP_PORT", "3000"),
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:         getEnv("DYNAMO_TABLE_USERS", "users"),
			OtpChallenges: getEnv("DYNAMO_TABLE_OTP_CHALLENGES", "otp_challenges"),
			LoginAttempts: getEnv("DYNAMO_TABLE_LOGIN_ATTEMPTS", "login_attempts"),
			OtpAttempts:   getEnv("DYNAMO_TABLE_OTP_ATTEMPTS", "otp_attempts"),
		},

		ChallengeStore: strings.ToLower(getEnv("CHALLENGE_STORE", "dynamo")),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		StorageTimeout: time.Duration(getEnvInt("STORAGE_TIMEOUT_MS", 3000)) * time.Millisecond,

		ResendCooldown: time.Duration(getEnvInt("OTP_RESEND_COOLDOWN_SECONDS", 60)) * time.Second,
		ReaperInterval: time.Duration(getEnvInt("OTP_REAPER_INTERVAL_MINUTES", 30)) * time.Minute,
		ReaperGrace:    time.Duration(getEnvInt("OTP_REAPER_GRACE_MINUTES", 60)) * time.Minute,
		FingerprintKey: getEnv("FINGERPRINT_SECRET", ""),
		RedirectURL:    getEnv("OTP_SUCCESS_REDIRECT_URL", "/"),

		SMTPHost:       getEnv("SMTP_HOST", "localhost"),
		SMTPPort:       getEnv("SMTP_PORT", "1025"),
		SMTPFrom:       getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SMTPMaxRetries: getEnvInt("SMTP_MAX_RETRIES", 3),

		SNSRegion:          getEnv("SNS_REGION", "us-east-1"),
		AlertTopicARN:      getEnv("ALERT_TOPIC_ARN", ""),
		AuditArchiveBucket: getEnv("AUDIT_ARCHIVE_BUCKET", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),
		TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

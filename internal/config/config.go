package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB (optional; enquiries are not persisted without it)
	MongoURI    string
	MongoDbName string

	// Redis (optional; saved sets fall back to memory without it)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret       string
	JwtTTL          time.Duration
	CaptchaTokenTTL time.Duration

	// Server
	ApiPort        string
	ServiceApiPort string

	// Cloudflare
	CloudflareTurnstileSecretKey string
	CloudflareSiteVerifyURL      string

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string
	SendGridAPIKey  string

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	ImageBaseS3URL     string
	ImageMaxDimension  int

	// Image enhancement (prototype, off by default)
	ImageEnhanceEnabled bool
	ImageGenURL         string
	ImageGenAPIKey      string
	ImageGenModel       string

	// Site behavior
	AppName            string
	UniformPriceFilter bool
	SessionIdleTTL     time.Duration
	EnquiryDelay       time.Duration

	// Chat typing delays
	ChatTopicDelay    time.Duration
	ChatQuestionDelay time.Duration
	ChatHandoffDelay  time.Duration
	ChatReplyDelay    time.Duration

	// Rate Limiting Defaults
	RateLimitSoftBucketSize int
	RateLimitSoftRefillRate int // tokens per second
	RateLimitHardBucketSize int
	RateLimitHardRefillRate int // tokens per second
	RateLimitRoutes         map[string]RouteRateLimit

	// Testing
	MockServices bool   // Store emails in Redis for the service API
	EmailLogFile string // Also append every email to this file
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.MongoURI = getEnv("MONGO_URI", "")
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "luxemap")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.CloudflareTurnstileSecretKey = getEnv("CLOUDFLARE_TURNSTILE_SECRET_KEY", "")
	cfg.CloudflareSiteVerifyURL = getEnv("CLOUDFLARE_SITEVERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "concierge@luxemap.com")
	cfg.SendGridAPIKey = getEnv("SENDGRID_API_KEY", "")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.ImageBaseS3URL = getEnv("IMAGE_BASE_S3_URL", "")
	cfg.ImageGenURL = getEnv("IMAGE_GEN_URL", "")
	cfg.ImageGenAPIKey = getEnv("IMAGE_GEN_API_KEY", "")
	cfg.ImageGenModel = getEnv("IMAGE_GEN_MODEL", "gemini-2.5-flash-image")
	cfg.AppName = getEnv("APP_NAME", "LuxeMap")

	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.SmtpPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	cfg.ImageMaxDimension, err = strconv.Atoi(getEnv("IMAGE_MAX_DIMENSION", "2048"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_DIMENSION: %w", err)
	}

	cfg.ImageEnhanceEnabled, err = strconv.ParseBool(getEnv("IMAGE_ENHANCE_ENABLED", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_ENHANCE_ENABLED: %w", err)
	}

	cfg.UniformPriceFilter, err = strconv.ParseBool(getEnv("UNIFORM_PRICE_FILTER", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid UNIFORM_PRICE_FILTER: %w", err)
	}

	if cfg.JwtTTL, err = getSeconds("JWT_TTL_SECONDS", "3600"); err != nil {
		return nil, err
	}
	if cfg.CaptchaTokenTTL, err = getSeconds("CAPTCHA_TOKEN_TTL", "1200"); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTTL, err = getSeconds("SESSION_IDLE_TTL_SECONDS", "1800"); err != nil {
		return nil, err
	}

	if cfg.EnquiryDelay, err = getMillis("ENQUIRY_DELAY_MS", "1500"); err != nil {
		return nil, err
	}
	if cfg.ChatTopicDelay, err = getMillis("CHAT_DELAY_TOPIC_MS", "600"); err != nil {
		return nil, err
	}
	if cfg.ChatQuestionDelay, err = getMillis("CHAT_DELAY_QUESTION_MS", "800"); err != nil {
		return nil, err
	}
	if cfg.ChatHandoffDelay, err = getMillis("CHAT_DELAY_HANDOFF_MS", "1000"); err != nil {
		return nil, err
	}
	if cfg.ChatReplyDelay, err = getMillis("CHAT_DELAY_REPLY_MS", "1500"); err != nil {
		return nil, err
	}

	// Rate Limiting
	cfg.RateLimitSoftBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_SOFT_BUCKET_SIZE", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SOFT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitSoftRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_SOFT_REFILL_RATE", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SOFT_REFILL_RATE: %w", err)
	}
	cfg.RateLimitHardBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_HARD_BUCKET_SIZE", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_HARD_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitHardRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_HARD_REFILL_RATE", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_HARD_REFILL_RATE: %w", err)
	}

	cfg.RateLimitRoutes, err = loadRouteRateLimits(getEnv("RATE_LIMITS_FILE", ""))
	if err != nil {
		return nil, err
	}

	cfg.MockServices, err = strconv.ParseBool(getEnv("MOCK_SERVICES", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid MOCK_SERVICES: %w", err)
	}
	cfg.EmailLogFile = getEnv("LOG_EMAILS", "")

	return cfg, nil
}

// getEnv returns the value of key, or defaultValue when unset.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getRequiredEnv(key string) (string, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return "", fmt.Errorf("missing required environment variable: %s", key)
	}
	return value, nil
}

func getSeconds(key, defaultValue string) (time.Duration, error) {
	n, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return time.Duration(n) * time.Second, nil
}

func getMillis(key, defaultValue string) (time.Duration, error) {
	n, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return time.Duration(n) * time.Millisecond, nil
}

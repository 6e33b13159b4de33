package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	TwilioAccountSID      string
	TwilioAuthToken       string
	TwilioFromNumber      string
	EnableEmergencyCalls  bool
	EmergencyCallTwimlURL string

	RedisAddr            string
	RedisPassword        string
	RedisTLS             bool
	UseRedisIdempotency  bool
	IdempotencyTTL       time.Duration
	ClinicTimezone       string
	ClinicPhone          string
	ClinicPricingURL     string
	PriceTableJSON       string
	UseMemoryStores      bool
	ClassifierProvider   string
	ClassifierTimeout    time.Duration
	SendTimeout          time.Duration
	AlertTimeout         time.Duration
	BedrockModelID       string
	GeminiAPIKey         string
	GeminiModelID        string
	AWSRegion            string
	AWSAccessKeyID       string
	AWSSecretAccessKey   string
	AWSEndpointOverride  string
	AlertQueueURL        string
	DeliveryStatusTable  string
	InteractionArchive   string
	AdminJWTSecret       string
	AdminCORSOrigins     []string
	WebhookRateLimit     float64
	WebhookRateBurst     int
	AlertEmailRecipients []string
	AlertSMSRecipients   []string
	OperatorRecipients   []string

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// SES is used when no SendGrid key is configured
	SESFromEmail string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           strings.ToLower(strings.TrimSpace(getEnv("ENV", "development"))),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		TwilioAccountSID:      getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:       getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:      getEnv("TWILIO_FROM_NUMBER", ""),
		EnableEmergencyCalls:  getEnvAsBool("ENABLE_EMERGENCY_CALLS", false),
		EmergencyCallTwimlURL: getEnv("EMERGENCY_CALL_TWIML_URL", ""),

		RedisAddr:            getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisTLS:             getEnvAsBool("REDIS_TLS", false),
		UseRedisIdempotency:  getEnvAsBool("USE_REDIS_IDEMPOTENCY", false),
		IdempotencyTTL:       getEnvAsDuration("IDEMPOTENCY_TTL", 72*time.Hour),
		ClinicTimezone:       getEnv("CLINIC_TIMEZONE", "UTC"),
		ClinicPhone:          getEnv("CLINIC_PHONE", "555-0100"),
		ClinicPricingURL:     getEnv("CLINIC_PRICING_URL", "luxemedspa.com/pricing"),
		PriceTableJSON:       getEnv("PRICE_TABLE_JSON", ""),
		UseMemoryStores:      getEnvAsBool("USE_MEMORY_STORES", false),
		ClassifierProvider:   strings.ToLower(strings.TrimSpace(getEnv("CLASSIFIER_PROVIDER", "keyword"))),
		ClassifierTimeout:    getEnvAsDuration("CLASSIFIER_TIMEOUT", 8*time.Second),
		SendTimeout:          getEnvAsDuration("SEND_TIMEOUT", 5*time.Second),
		AlertTimeout:         getEnvAsDuration("ALERT_TIMEOUT", 5*time.Second),
		BedrockModelID:       getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:        getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		AWSRegion:            getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:       getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:  getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		AlertQueueURL:        getEnv("ALERT_QUEUE_URL", ""),
		DeliveryStatusTable:  getEnv("DELIVERY_STATUS_TABLE", ""),
		InteractionArchive:   getEnv("INTERACTION_ARCHIVE_BUCKET", ""),
		AdminJWTSecret:       getEnv("ADMIN_JWT_SECRET", ""),
		AdminCORSOrigins:     getEnvAsList("ADMIN_CORS_ORIGINS"),
		WebhookRateLimit:     getEnvAsFloat("WEBHOOK_RATE_LIMIT", 20),
		WebhookRateBurst:     getEnvAsInt("WEBHOOK_RATE_BURST", 40),
		AlertEmailRecipients: getEnvAsList("ALERT_EMAIL_RECIPIENTS"),
		AlertSMSRecipients:   getEnvAsList("ALERT_SMS_RECIPIENTS"),
		OperatorRecipients:   getEnvAsList("OPERATOR_EMAIL_RECIPIENTS"),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "MedSpa Triage"),

		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
	}
}

// IsProduction reports whether provider signatures must be enforced.
// Every other environment skips verification so local tools can post callbacks.
func (c *Config) IsProduction() bool {
	return c != nil && (c.Env == "production" || c.Env == "prod")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty items.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	LogFormat      string
	ClinicName     string
	DefaultOrgID   string
	DatabaseURL    string
	SessionsDSN    string
	AuthJWTSecret  string
	ClinicTimezone string

	// Cognito is preferred when configured; AuthJWTSecret tokens are still accepted.
	CognitoRegion     string
	CognitoUserPoolID string
	CognitoClientID   string

	PublicRateLimit float64
	PublicRateBurst int

	CORSAllowedOrigins []string

	// Storage backends: "memory" or "postgres" (notifications may also be "dynamodb").
	AppointmentStore  string
	NotificationStore string
	NotificationTable string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Text generation
	TextGenProvider string // "gemini", "bedrock", or "none"
	TextGenTimeout  time.Duration
	GeminiAPIKey    string
	GeminiModelID   string
	BedrockModelID  string

	// Consultation disclaimer: "off", "short", "medium", or "full".
	ConsultationDisclaimer string

	// Cascade runs detached from the request unless disabled.
	AsyncCascade bool

	// Reminder delivery is recorded intent only unless explicitly enabled.
	ReminderDeliveryEnabled  bool
	ReminderPollInterval     time.Duration
	ReminderBatchSize        int
	ReminderMaxAttempts      int
	ReminderRetryBackoff     time.Duration
	RunWorkersInAPI          bool
	TelnyxAPIKey             string
	TelnyxMessagingProfileID string
	TelnyxFromNumber         string
	TelnyxWhatsAppFrom       string

	PatientCacheTTL time.Duration

	// Operator alerts on new suggestions
	OperatorEmailRecipients []string
	EmailProvider           string // "sendgrid", "ses", or "" for stub
	SendGridAPIKey          string
	SendGridFromEmail       string
	SendGridFromName        string
	SESFromEmail            string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	EventsQueueURL      string
	OutboxPollInterval  time.Duration
	OutboxMaxAttempts   int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		ClinicName:     getEnv("CLINIC_NAME", "MedPulse Connect"),
		DefaultOrgID:   getEnv("DEFAULT_ORG_ID", "default-clinic"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		SessionsDSN:    getEnv("SESSIONS_DSN", getEnv("DATABASE_URL", "")),
		AuthJWTSecret:  getEnv("AUTH_JWT_SECRET", ""),
		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "America/New_York"),

		CognitoRegion:     getEnv("COGNITO_REGION", getEnv("AWS_REGION", "us-east-1")),
		CognitoUserPoolID: getEnv("COGNITO_USER_POOL_ID", ""),
		CognitoClientID:   getEnv("COGNITO_CLIENT_ID", ""),

		PublicRateLimit: getEnvAsFloat("PUBLIC_RATE_LIMIT", 2),
		PublicRateBurst: getEnvAsInt("PUBLIC_RATE_BURST", 10),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		AppointmentStore:  strings.ToLower(getEnv("APPOINTMENT_STORE", "memory")),
		NotificationStore: strings.ToLower(getEnv("NOTIFICATION_STORE", "memory")),
		NotificationTable: getEnv("NOTIFICATION_TABLE", "medpulse_notifications"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		TextGenProvider: strings.ToLower(getEnv("TEXTGEN_PROVIDER", "none")),
		TextGenTimeout:  getEnvAsDuration("TEXTGEN_TIMEOUT", 8*time.Second),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:   getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		BedrockModelID:  getEnv("BEDROCK_MODEL_ID", ""),

		ConsultationDisclaimer: getEnv("CONSULTATION_DISCLAIMER", "medium"),

		AsyncCascade: getEnvAsBool("ASYNC_CASCADE", true),

		ReminderDeliveryEnabled:  getEnvAsBool("REMINDER_DELIVERY_ENABLED", false),
		ReminderPollInterval:     getEnvAsDuration("REMINDER_POLL_INTERVAL", time.Minute),
		ReminderBatchSize:        getEnvAsInt("REMINDER_BATCH_SIZE", 50),
		ReminderMaxAttempts:      getEnvAsInt("REMINDER_MAX_ATTEMPTS", 5),
		ReminderRetryBackoff:     getEnvAsDuration("REMINDER_RETRY_BACKOFF", time.Minute),
		RunWorkersInAPI:          getEnvAsBool("RUN_WORKERS_IN_API", true),
		TelnyxAPIKey:             getEnv("TELNYX_API_KEY", ""),
		TelnyxMessagingProfileID: getEnv("TELNYX_MESSAGING_PROFILE_ID", ""),
		TelnyxFromNumber:         getEnv("TELNYX_FROM_NUMBER", ""),
		TelnyxWhatsAppFrom:       getEnv("TELNYX_WHATSAPP_FROM", ""),

		PatientCacheTTL: getEnvAsDuration("PATIENT_CACHE_TTL", 5*time.Minute),

		OperatorEmailRecipients: getEnvAsList("OPERATOR_EMAIL_RECIPIENTS"),
		EmailProvider:           strings.ToLower(getEnv("EMAIL_PROVIDER", "")),
		SendGridAPIKey:          getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:       getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:        getEnv("SENDGRID_FROM_NAME", "MedPulse Connect"),
		SESFromEmail:            getEnv("SES_FROM_EMAIL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		EventsQueueURL:      getEnv("EVENTS_QUEUE_URL", ""),
		OutboxPollInterval:  getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		OutboxMaxAttempts:   getEnvAsInt("OUTBOX_MAX_ATTEMPTS", 10),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MarkKevinCanonoy/Web-Project/internal/clinictime"
	"github.com/MarkKevinCanonoy/Web-Project/internal/scheduling"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	DatabaseURL        string
	RedisAddr          string
	RedisPassword      string
	RedisTLS           bool
	JWTSecret          string
	JWTTTL             time.Duration
	CORSAllowedOrigins []string
	AuthRateLimit      float64
	AuthRateBurst      int

	// Seed administrator, created on startup when all three are set.
	BootstrapAdminName     string
	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	// Clinic policy
	ClinicUTCOffsetHours    int
	ClinicOpenHour          int
	ClinicCloseHour         int
	ClinicLunchHour         int
	ClinicClosedWeekday     string
	ClinicSlotInterval      time.Duration
	ClinicAppointmentLength time.Duration

	// Assistant
	LLMProvider    string
	GoogleAPIKey   string
	GeminiModelID  string
	BedrockModelID string
	ChatRateLimit  float64
	ChatRateBurst  int
	SessionTTL     time.Duration

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Email
	EmailProvider  string
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string
	EmailReplyTo   string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTTTL:             getEnvAsDuration("JWT_TTL", 24*time.Hour),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		AuthRateLimit:      getEnvAsFloat("AUTH_RATE_LIMIT", 0.5),
		AuthRateBurst:      getEnvAsInt("AUTH_RATE_BURST", 10),

		BootstrapAdminName:     getEnv("BOOTSTRAP_ADMIN_NAME", "Clinic Administrator"),
		BootstrapAdminEmail:    getEnv("BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),

		ClinicUTCOffsetHours:    getEnvAsInt("CLINIC_UTC_OFFSET_HOURS", 8),
		ClinicOpenHour:          getEnvAsInt("CLINIC_OPEN_HOUR", 8),
		ClinicCloseHour:         getEnvAsInt("CLINIC_CLOSE_HOUR", 17),
		ClinicLunchHour:         getEnvAsInt("CLINIC_LUNCH_HOUR", 12),
		ClinicClosedWeekday:     getEnv("CLINIC_CLOSED_WEEKDAY", "sunday"),
		ClinicSlotInterval:      getEnvAsDuration("CLINIC_SLOT_INTERVAL", 30*time.Minute),
		ClinicAppointmentLength: getEnvAsDuration("CLINIC_APPOINTMENT_LENGTH", time.Hour),

		LLMProvider:    strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "none"))),
		GoogleAPIKey:   getEnv("GOOGLE_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-1.5-flash"),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		ChatRateLimit:  getEnvAsFloat("CHAT_RATE_LIMIT", 1),
		ChatRateBurst:  getEnvAsInt("CHAT_RATE_BURST", 5),
		SessionTTL:     getEnvAsDuration("SESSION_TTL", 2*time.Hour),

		AWSRegion:           getEnv("AWS_REGION", "ap-southeast-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		EmailProvider:  strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", "clinic@example.edu"),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "School Clinic"),
		EmailReplyTo:   getEnv("EMAIL_REPLY_TO", ""),
	}
}

// SchedulingPolicy converts the clinic keys into a validated policy.
func (c *Config) SchedulingPolicy() (scheduling.Policy, error) {
	closed, err := scheduling.ParseWeekday(c.ClinicClosedWeekday)
	if err != nil {
		return scheduling.Policy{}, fmt.Errorf("config: CLINIC_CLOSED_WEEKDAY: %w", err)
	}
	p := scheduling.Policy{
		Location:      clinictime.FixedZone(c.ClinicUTCOffsetHours),
		OpenHour:      c.ClinicOpenHour,
		CloseHour:     c.ClinicCloseHour,
		LunchHour:     c.ClinicLunchHour,
		ClosedWeekday: closed,
		SlotInterval:  c.ClinicSlotInterval,
		Occupancy:     c.ClinicAppointmentLength,
		MinSeparation: c.ClinicAppointmentLength,
	}
	if err := p.Check(); err != nil {
		return scheduling.Policy{}, fmt.Errorf("config: %w", err)
	}
	return p, nil
}

// BootstrapAdmin reports whether a seed administrator is configured.
func (c *Config) BootstrapAdmin() bool {
	return c.BootstrapAdminEmail != "" && c.BootstrapAdminPassword != ""
}

// Validate reports settings that would leave the API unusable.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("config: JWT_SECRET is required in production")
		}
		c.JWTSecret = "dev-insecure-secret"
	}
	switch c.LLMProvider {
	case "none", "":
	case "gemini":
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("config: GOOGLE_API_KEY is required for LLM_PROVIDER=gemini")
		}
	case "bedrock":
		if c.BedrockModelID == "" {
			return fmt.Errorf("config: BEDROCK_MODEL_ID is required for LLM_PROVIDER=bedrock")
		}
	default:
		return fmt.Errorf("config: unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.EmailProvider {
	case "stub", "", "ses":
	case "sendgrid":
		if c.SendGridAPIKey == "" {
			return fmt.Errorf("config: SENDGRID_API_KEY is required for EMAIL_PROVIDER=sendgrid")
		}
	default:
		return fmt.Errorf("config: unknown EMAIL_PROVIDER %q", c.EmailProvider)
	}
	_, err := c.SchedulingPolicy()
	return err
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

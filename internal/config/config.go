package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	FrontendURL string
	CORSOrigins []string

	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	JWTSecret        string
	EncryptionSecret string

	NATSURL string

	MailgunAPIKey string
	MailgunDomain string

	GoogleMapsAPIKey string

	GoogleClientID       string
	GoogleClientSecret   string
	LinkedInClientID     string
	LinkedInClientSecret string
	OAuthCallbackBase    string
}

// Load reads .env when present (local dev) and falls back to the process
// environment otherwise.
func Load() *Config {
	_ = godotenv.Load(".env.dev")

	return &Config{
		AppPort:     getenv("APP_PORT", "8001"),
		FrontendURL: getenv("FRONTEND_URL", "http://localhost:3000"),
		CORSOrigins: splitList(getenv("CORS_ORIGINS", "http://localhost:3000")),

		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBHost:     getenv("DB_HOST", "localhost"),
		DBPort:     getenv("DB_PORT", "5432"),
		DBName:     os.Getenv("DB_NAME"),

		JWTSecret:        os.Getenv("JWT_SECRET"),
		EncryptionSecret: os.Getenv("ENCRYPTION_KEY"),

		NATSURL: getenv("NATS_URL", "nats://localhost:4222"),

		MailgunAPIKey: os.Getenv("MAILGUN_API_KEY"),
		MailgunDomain: os.Getenv("MAILGUN_DOMAIN"),

		GoogleMapsAPIKey: os.Getenv("GOOGLE_MAPS_API_KEY"),

		GoogleClientID:       os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:   os.Getenv("GOOGLE_CLIENT_SECRET"),
		LinkedInClientID:     os.Getenv("LINKEDIN_CLIENT_ID"),
		LinkedInClientSecret: os.Getenv("LINKEDIN_CLIENT_SECRET"),
		OAuthCallbackBase:    getenv("OAUTH_CALLBACK_BASE", "http://localhost:8001"),
	}
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

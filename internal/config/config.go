package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the client.
type Config struct {
	// APIBaseURL is the base URL of the backend REST API, e.g.
	// "https://api.example.com/api/v1".
	APIBaseURL string `validate:"required,url"`

	// WSBaseURL is the base URL of the chat socket endpoint, e.g.
	// "wss://api.example.com/ws/chat".
	WSBaseURL string `validate:"required,url"`

	// Token is the bearer token for the authenticated session.
	Token string `validate:"required"`

	// UserID is the local participant's identifier.
	UserID int64 `validate:"gt=0"`

	// PartnerID is the other participant's identifier.
	PartnerID int64 `validate:"gt=0,nefield=UserID"`
}

// New loads configuration from environment variables.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	userID, err := envInt64("DUETCHAT_USER_ID")
	if err != nil {
		return nil, err
	}
	partnerID, err := envInt64("DUETCHAT_PARTNER_ID")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		APIBaseURL: os.Getenv("DUETCHAT_API_URL"),
		WSBaseURL:  os.Getenv("DUETCHAT_WS_URL"),
		Token:      os.Getenv("DUETCHAT_TOKEN"),
		UserID:     userID,
		PartnerID:  partnerID,
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func envInt64(key string) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return v, nil
}

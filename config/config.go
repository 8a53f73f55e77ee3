package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all bootstrap configuration for the service. Runtime-tunable
// parameters (dry-run, schedule windows, thresholds) live in the settings
// store instead; only secrets and wiring belong here.
type Config struct {
	DatabaseURL string
	DatabaseID  string // logical environment identity, compared against the active_db parameter
	Port        string

	WhatsAppBaseURL string
	WhatsAppSecret  string

	ClaudeBaseURL string
	ClaudeAPIKey  string
	ClaudeVersion string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string

	RabbitURL   string
	RabbitQueue string

	S3Enabled   bool
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	APIToken string // control-plane auth token
}

// LoadConfig loads configuration from environment variables, reading a .env
// file first when present. Environment variables take precedence.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DatabaseID:      os.Getenv("DATABASE_ID"),
		Port:            os.Getenv("PORT"),
		WhatsAppBaseURL: os.Getenv("WHATSAPP_BASE_URL"),
		WhatsAppSecret:  os.Getenv("WHATSAPP_API_SECRET"),
		ClaudeBaseURL:   os.Getenv("CLAUDE_BASE_URL"),
		ClaudeAPIKey:    os.Getenv("CLAUDE_API_KEY"),
		ClaudeVersion:   os.Getenv("CLAUDE_ANTHROPIC_VERSION"),
		SMTPHost:        os.Getenv("SMTP_HOST"),
		SMTPUser:        os.Getenv("SMTP_USER"),
		SMTPPass:        os.Getenv("SMTP_PASS"),
		RabbitURL:       os.Getenv("RABBITMQ_URL"),
		RabbitQueue:     os.Getenv("RABBITMQ_QUEUE"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3Region:        os.Getenv("S3_REGION"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		APIToken:        os.Getenv("API_TOKEN"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "glenda.db"
		log.Info().Str("database_url", cfg.DatabaseURL).Msg("DATABASE_URL not set, using local sqlite file")
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.WhatsAppBaseURL == "" {
		cfg.WhatsAppBaseURL = "https://whatsapp.massivamovil.com/api"
	}
	if cfg.ClaudeBaseURL == "" {
		cfg.ClaudeBaseURL = "https://api.anthropic.com/v1"
	}
	if cfg.ClaudeVersion == "" {
		cfg.ClaudeVersion = "2023-06-01"
	}
	if cfg.RabbitQueue == "" {
		cfg.RabbitQueue = "glenda_events"
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT %q: %w", port, err)
		}
		cfg.SMTPPort = p
	} else {
		cfg.SMTPPort = 587
	}
	cfg.S3Enabled = cfg.S3Bucket != "" && cfg.S3AccessKey != "" && cfg.S3SecretKey != ""

	log.Info().Str("databaseID", cfg.DatabaseID).Bool("s3Enabled", cfg.S3Enabled).Msg("Configuration loaded")
	return cfg, nil
}

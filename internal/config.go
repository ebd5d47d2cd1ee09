package internal

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/constat/internal/email"
	"github.com/DukeRupert/constat/internal/storage"
	"github.com/joho/godotenv"
)

// PDF engines selectable with PDF_ENGINE.
const (
	PDFEngineFPDF   = "fpdf"
	PDFEngineChrome = "chrome"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Frontend origin; validation links point at {FrontendURL}/validation/{token}
	FrontendURL string
	CORSOrigins []string

	// Email
	EmailProvider  string // "smtp", "sendgrid" or "log"
	EmailFrom      string
	EmailFromName  string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	SendGridAPIKey string

	// Storage
	StorageProvider  string // "local", "r2" or "minio"
	LocalStoragePath string
	LocalStorageURL  string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string

	MinIOEndpoint        string
	MinIOAccessKeyID     string
	MinIOSecretAccessKey string
	MinIOBucketName      string
	MinIOUseSSL          bool

	// PDF rendering
	PDFEngine     string // "fpdf" or "chrome"
	FontsDir      string // empty uses the built-in Helvetica faces
	ChromePath    string
	ChromeTimeout time.Duration

	// Rate limiting on the public validation endpoints.
	// With RedisURL empty the limiter is per-process.
	RedisURL          string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Proxies whose X-Forwarded-For is believed, as CIDRs or addresses.
	// Empty means the socket peer is the client.
	TrustedProxies []string

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
		CORSOrigins: getEnvList("CORS_ORIGINS"),

		// Email defaults to Mailpit on localhost (development)
		EmailProvider:  getEnv("EMAIL_PROVIDER", email.ProviderSMTP),
		EmailFrom:      getEnv("EMAIL_FROM", email.DefaultFromEmail),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", email.DefaultFromName),
		SMTPHost:       getEnv("SMTP_HOST", "localhost"),
		SMTPPort:       getEnvInt("SMTP_PORT", 1025),
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", storage.ProviderLocal),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),

		MinIOEndpoint:        getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKeyID:     getEnv("MINIO_ACCESS_KEY_ID", ""),
		MinIOSecretAccessKey: getEnv("MINIO_SECRET_ACCESS_KEY", ""),
		MinIOBucketName:      getEnv("MINIO_BUCKET_NAME", ""),
		MinIOUseSSL:          getEnvBool("MINIO_USE_SSL", false),

		PDFEngine:     getEnv("PDF_ENGINE", PDFEngineFPDF),
		FontsDir:      getEnv("FONTS_DIR", ""),
		ChromePath:    getEnv("CHROME_PATH", ""),
		ChromeTimeout: getEnvDuration("CHROME_TIMEOUT", 30*time.Second),

		RedisURL:          getEnv("REDIS_URL", ""),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		TrustedProxies:    getEnvList("TRUSTED_PROXIES"),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StorageConfig converts the flat settings into a storage.Config.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Provider: c.StorageProvider,
		Local: storage.LocalConfig{
			BasePath: c.LocalStoragePath,
			BaseURL:  c.LocalStorageURL,
		},
		R2: storage.R2Config{
			AccountID:       c.R2AccountID,
			AccessKeyID:     c.R2AccessKeyID,
			SecretAccessKey: c.R2SecretAccessKey,
			BucketName:      c.R2BucketName,
		},
		MinIO: storage.MinIOConfig{
			Endpoint:        c.MinIOEndpoint,
			AccessKeyID:     c.MinIOAccessKeyID,
			SecretAccessKey: c.MinIOSecretAccessKey,
			BucketName:      c.MinIOBucketName,
			UseSSL:          c.MinIOUseSSL,
		},
	}
}

// SMTPConfig returns the SMTP sender settings.
func (c *Config) SMTPConfig() email.SMTPConfig {
	return email.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
		From:     c.EmailFrom,
		FromName: c.EmailFromName,
	}
}

// SendGridConfig returns the SendGrid sender settings.
func (c *Config) SendGridConfig() email.SendGridConfig {
	return email.SendGridConfig{
		APIKey:   c.SendGridAPIKey,
		From:     c.EmailFrom,
		FromName: c.EmailFromName,
	}
}

func (c *Config) validate() error {
	switch c.EmailProvider {
	case email.ProviderSMTP, email.ProviderLog:
	case email.ProviderSendGrid:
		if c.SendGridAPIKey == "" {
			return errors.New("SENDGRID_API_KEY is required when EMAIL_PROVIDER is 'sendgrid'")
		}
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be 'smtp', 'sendgrid' or 'log', got: %s", c.EmailProvider)
	}

	switch c.StorageProvider {
	case storage.ProviderLocal:
	case storage.ProviderR2:
		if err := requireAll("r2", map[string]string{
			"R2_ACCOUNT_ID":        c.R2AccountID,
			"R2_ACCESS_KEY_ID":     c.R2AccessKeyID,
			"R2_SECRET_ACCESS_KEY": c.R2SecretAccessKey,
			"R2_BUCKET_NAME":       c.R2BucketName,
		}); err != nil {
			return err
		}
	case storage.ProviderMinIO:
		if err := requireAll("minio", map[string]string{
			"MINIO_ENDPOINT":          c.MinIOEndpoint,
			"MINIO_ACCESS_KEY_ID":     c.MinIOAccessKeyID,
			"MINIO_SECRET_ACCESS_KEY": c.MinIOSecretAccessKey,
			"MINIO_BUCKET_NAME":       c.MinIOBucketName,
		}); err != nil {
			return err
		}
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be 'local', 'r2' or 'minio', got: %s", c.StorageProvider)
	}

	if c.PDFEngine != PDFEngineFPDF && c.PDFEngine != PDFEngineChrome {
		return fmt.Errorf("PDF_ENGINE must be either 'fpdf' or 'chrome', got: %s", c.PDFEngine)
	}

	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

// requireAll reports the first empty key in alphabetical order.
func requireAll(provider string, values map[string]string) error {
	var missing []string
	for key, v := range values {
		if v == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("%s is required when STORAGE_PROVIDER is '%s'", missing[0], provider)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port             int           `envconfig:"PORT" default:"8080"`
	Host             string        `envconfig:"HOST" default:"0.0.0.0"`
	RequestTimeout   time.Duration `envconfig:"REQUEST_TIMEOUT" default:"5s"`
	MaxContentLength int           `envconfig:"MAX_CONTENT_LENGTH" default:"2000"`
	RoomListLimit    int           `envconfig:"ROOM_LIST_LIMIT" default:"50"`
	NotifyBufferSize int           `envconfig:"NOTIFY_BUFFER_SIZE" default:"256"`
}

// Addr is the listen address.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database configuration settings
type DatabaseConfig struct {
	Type string `envconfig:"DB_TYPE" default:"mongo"` // "mongo", "postgres" or "memory"

	// MongoDB
	MongoURI      string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"uniconnect"`

	// PostgreSQL, DATABASE_URL wins over the individual parts
	URI      string `envconfig:"DATABASE_URL"`
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME" default:"postgres"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"require"`
}

// Config holds the complete application configuration
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
	JWTSecret      string   `envconfig:"JWT_SECRET"`
	LogLevel       string   `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string   `envconfig:"LOG_FORMAT" default:"text"`
	Debug          bool     `envconfig:"DEBUG" default:"false"`
}

// Used when DEBUG=true and no JWT_SECRET is set.
const debugJWTSecret = "uniconnect-dev-secret"

// LoadConfig loads configuration from .env files and environment variables and applies defaults
func LoadConfig() (*Config, error) {
	loadEnvFiles()
	return FromEnvironment()
}

// Try to load .env file from multiple possible locations
func loadEnvFiles() {
	envLocations := []string{
		".env",          // Current directory
		"../../.env",    // Project root when running from cmd/engine
		"../../../.env", // Even higher directory
		filepath.Join(os.Getenv("GOPATH"), "src/uniconnect-chat/.env"),
	}

	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			return
		}
	}
}

// FromEnvironment decodes and validates the process environment without touching .env files.
func FromEnvironment() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.AllowedOrigins = cleanOrigins(c.AllowedOrigins)

	switch c.Database.Type {
	case "mongo", "memory":
	case "postgres":
		if c.Database.URI != "" {
			c.Database.SSLMode = getSSLModeFromURI(c.Database.URI)
			break
		}
		if c.Database.User == "" {
			return fmt.Errorf("DB_USER environment variable is required when DB_TYPE is postgres and DATABASE_URL is not set")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD environment variable is required when DB_TYPE is postgres and DATABASE_URL is not set")
		}
		// Build connection string from individual parts
		c.Database.URI = (&url.URL{
			Scheme:   "postgresql",
			User:     url.UserPassword(c.Database.User, c.Database.Password),
			Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
			Path:     "/" + c.Database.Name,
			RawQuery: "sslmode=" + c.Database.SSLMode,
		}).String()
	default:
		return fmt.Errorf("unsupported DB_TYPE %q (expected mongo, postgres or memory)", c.Database.Type)
	}

	if c.JWTSecret == "" {
		if !c.Debug {
			return fmt.Errorf("JWT_SECRET environment variable is required")
		}
		c.JWTSecret = debugJWTSecret
	}

	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.Server.MaxContentLength <= 0 {
		return fmt.Errorf("MAX_CONTENT_LENGTH must be positive")
	}
	return nil
}

func cleanOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

// Helper function to extract sslmode from a DSN, defaults to "require"
func getSSLModeFromURI(uri string) string {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "require"
	}
	if mode := parsed.Query().Get("sslmode"); mode != "" {
		return mode
	}
	return "require"
}

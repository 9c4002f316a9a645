// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Database holds connection settings. Defaults suit local development.
type Database struct {
	Driver     string `env:"DB_DRIVER"   envDefault:"postgres"`
	Host       string `env:"DB_HOST"     envDefault:"localhost"`
	Port       string `env:"DB_PORT"     envDefault:"5432"`
	User       string `env:"DB_USER"     envDefault:"postgres"`
	Password   string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name       string `env:"DB_NAME"     envDefault:"registration"`
	SSLMode    string `env:"DB_SSLMODE"  envDefault:"disable"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"registration.db"`
}

// DSN builds a libpq-compatible connection string.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// Payment configures the card processor.
type Payment struct {
	StripeSecretKey string `env:"STRIPE_SECRET_KEY,required,notEmpty"`
	Currency        string `env:"PAYMENT_CURRENCY" envDefault:"usd"`
}

// Email configures outgoing notifications.
type Email struct {
	ResendAPIKey string        `env:"RESEND_API_KEY"`
	From         string        `env:"EMAIL_FROM"               envDefault:"3D Mushing Events<no-reply@3dmushingevents.com>"`
	ContactFrom  string        `env:"CONTACT_FROM"             envDefault:"3D Mushing Events<support@3dmushingevents.com>"`
	AdminTo      string        `env:"ADMIN_NOTIFICATION_EMAIL,required,notEmpty"`
	ContactTo    string        `env:"CONTACT_FORM_TO_EMAIL"`
	Timezone     string        `env:"EMAIL_TIMEZONE"           envDefault:"America/Chicago"`
	SiteURL      string        `env:"SITE_URL"                 envDefault:"https://3dmushingevents.com"`
	Timeout      time.Duration `env:"EMAIL_TIMEOUT"            envDefault:"10s"`
}

// Config is the full service configuration.
type Config struct {
	Port          string   `env:"PORT"       envDefault:"8080"`
	LogLevel      string   `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat     string   `env:"LOG_FORMAT" envDefault:"json"`
	AdminAPIToken string   `env:"ADMIN_API_TOKEN"`
	AllowedOrigin string   `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`
	OTLPEndpoint  string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Database      Database
	Payment       Payment
	Email         Email
}

// Load reads an optional .env file and then parses the environment.
// Missing required secrets are reported as an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads configuration from the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Email.ContactTo == "" {
		cfg.Email.ContactTo = cfg.Email.AdminTo
	}
	if err := cfg.Database.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (d Database) validate() error {
	switch d.Driver {
	case "postgres", "sqlite":
		return nil
	}
	return fmt.Errorf("parse env: DB_DRIVER must be postgres or sqlite, got %q", d.Driver)
}

// ParseDatabase reads only the database settings, for commands that do not
// need payment or email secrets.
func ParseDatabase() (Database, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Database{}, fmt.Errorf("load .env: %w", err)
	}
	var db Database
	if err := env.Parse(&db); err != nil {
		return Database{}, fmt.Errorf("parse env: %w", err)
	}
	if err := db.validate(); err != nil {
		return Database{}, err
	}
	return db, nil
}

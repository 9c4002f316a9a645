package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("ADMIN_NOTIFICATION_EMAIL", "admin@example.com")
}

func TestParseDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "usd", cfg.Payment.Currency)
	assert.Equal(t, "admin@example.com", cfg.Email.ContactTo)
	assert.Equal(t, "America/Chicago", cfg.Email.Timezone)
	assert.Equal(t, 10*time.Second, cfg.Email.Timeout)
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=postgres dbname=registration sslmode=disable",
		cfg.Database.DSN())
}

func TestParseMissingSecrets(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("ADMIN_NOTIFICATION_EMAIL", "admin@example.com")

	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_SECRET_KEY")
}

func TestParseRejectsUnknownDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "mongo")

	_, err := Parse()
	assert.Error(t, err)
}

func TestParseContactOverride(t *testing.T) {
	setRequired(t)
	t.Setenv("CONTACT_FORM_TO_EMAIL", "hello@example.com")
	t.Setenv("DB_DRIVER", "sqlite")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "hello@example.com", cfg.Email.ContactTo)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

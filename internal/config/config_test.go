package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"DOFFIN_SUBSCRIPTION_KEY", "DOFFIN_API_KEY", "DOFFIN_API_URL", "DOFFIN_CSV_URL",
		"MAIL_PROVIDER", "PUBLIC_APP_URL", "CSV_MAX_ROWS", "SOURCE_TIMEOUT", "DIGEST_WORKERS",
		"HOOK_WORKERS", "IMMEDIATE_TRIGGER",
	} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.doffin.no", cfg.Sources.SearchBaseURL)
	assert.Equal(t, 400, cfg.Sources.CSVMaxRows)
	assert.Equal(t, 30, cfg.Sources.SearchWindowDays)
	assert.Equal(t, "varsler@resend.dev", cfg.Mail.FromEmail)
	assert.Equal(t, "https://anbudsvarsler.no", cfg.App.PublicURL)
	assert.Equal(t, 30*24*time.Hour, cfg.App.TokenTTL)
	assert.Equal(t, "resend", cfg.Mail.Provider)
	assert.Equal(t, 4, cfg.Dispatch.HookWorkers)
	assert.Equal(t, TriggerInline, cfg.Dispatch.ImmediateTrigger)
	assert.True(t, cfg.Dispatch.InlineDelivery())
}

func TestSubscriptionKeyFallback(t *testing.T) {
	t.Setenv("DOFFIN_SUBSCRIPTION_KEY", "")
	t.Setenv("DOFFIN_API_KEY", "legacy-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy-key", cfg.Sources.SubscriptionKey)

	t.Setenv("DOFFIN_SUBSCRIPTION_KEY", "primary")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "primary", cfg.Sources.SubscriptionKey)
}

func TestPublicURLTrailingSlash(t *testing.T) {
	t.Setenv("PUBLIC_APP_URL", "https://example.no/")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://example.no", cfg.App.PublicURL)
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	t.Setenv("MAIL_PROVIDER", "pigeon")
	_, err := Load()
	assert.Error(t, err)
}

func TestHookWorkersIndependentOfDigest(t *testing.T) {
	t.Setenv("DIGEST_WORKERS", "2")
	t.Setenv("HOOK_WORKERS", "9")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Dispatch.DigestWorkers)
	assert.Equal(t, 9, cfg.Dispatch.HookWorkers)
}

func TestImmediateTrigger(t *testing.T) {
	t.Setenv("IMMEDIATE_TRIGGER", "Webhook")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, TriggerWebhook, cfg.Dispatch.ImmediateTrigger)
	assert.False(t, cfg.Dispatch.InlineDelivery())

	t.Setenv("IMMEDIATE_TRIGGER", "both")
	_, err = Load()
	assert.Error(t, err)
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("X_DUR", "15")
	assert.Equal(t, 15*time.Second, getEnvDuration("X_DUR", time.Second))
	t.Setenv("X_DUR", "2m")
	assert.Equal(t, 2*time.Minute, getEnvDuration("X_DUR", time.Second))
	t.Setenv("X_DUR", "soon")
	assert.Equal(t, time.Second, getEnvDuration("X_DUR", time.Second))
}

func TestDatabaseURL(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "5432", DBName: "varsly"}
	assert.Equal(t, "postgres://u:p@h:5432/varsly?sslmode=disable", d.URL())
	assert.True(t, d.Configured())

	d = DatabaseConfig{DatabaseURL: "postgres://x/y"}
	assert.Equal(t, "postgres://x/y", d.URL())

	assert.False(t, (&DatabaseConfig{}).Configured())
}

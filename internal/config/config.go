package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig HTTP server settings
type ServerConfig struct {
	Port           string
	Env            string
	InternalAPIKey string // X-API-Key for /v1/internal and subscriber routes
}

// DatabaseConfig Postgres settings. URL wins over the individual parts.
type DatabaseConfig struct {
	DatabaseURL string
	User        string
	Password    string
	Host        string
	Port        string
	DBName      string
	MaxConns    int
	MinConns    int
}

// URL connection string for pgxpool
func (d *DatabaseConfig) URL() string {
	if d.DatabaseURL != "" {
		return d.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

// Configured reports whether any database was configured
func (d *DatabaseConfig) Configured() bool {
	return d.DatabaseURL != "" || d.DBName != ""
}

// RedisConfig optional event bus
type RedisConfig struct {
	URL     string
	Channel string
}

// SourceConfig upstream notice sources, tried in priority order
type SourceConfig struct {
	SubscriptionKey  string
	SearchBaseURL    string
	JSONURL          string
	CSVURL           string
	Timeout          time.Duration
	CSVMaxRows       int
	SearchWindowDays int
	SearchPageSize   int
	SearchStatus     string
}

// MailConfig notification provider settings
type MailConfig struct {
	Provider     string // resend | smtp
	ResendAPIKey string
	ResendAPIURL string
	FromEmail    string
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPUseTLS   bool
}

// AppConfig links and signing secret used in outgoing mail
type AppConfig struct {
	PublicURL         string
	UnsubscribeSecret string
	TokenTTL          time.Duration
}

// ScheduleConfig cron specs for the batch stages
type ScheduleConfig struct {
	IngestCron string
	DigestCron string
	Timezone   string
	RunAtStart bool
}

// Location configured timezone, Europe/Oslo when unknown
func (s *ScheduleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		loc, _ = time.LoadLocation("Europe/Oslo")
	}
	if loc == nil {
		return time.UTC
	}
	return loc
}

// Immediate delivery triggers; exactly one is active
const (
	TriggerInline  = "inline"
	TriggerWebhook = "webhook"
)

// DispatchConfig notification fan-out
type DispatchConfig struct {
	DigestWorkers int
	DigestWindow  time.Duration

	// HookWorkers parallelism of alert-created hooks during ingest
	HookWorkers int

	// ImmediateTrigger inline sends from the ingest run, webhook sends from /v1/hooks/alert-created
	ImmediateTrigger string
}

// InlineDelivery true when ingest sends immediate emails itself
func (d *DispatchConfig) InlineDelivery() bool {
	return d.ImmediateTrigger == TriggerInline
}

// Config all settings
type Config struct {
	LogLevel string
	Server   ServerConfig
	DB       DatabaseConfig
	Redis    RedisConfig
	Sources  SourceConfig
	Mail     MailConfig
	App      AppConfig
	Schedule ScheduleConfig
	Dispatch DispatchConfig
}

// Load reads configuration from the environment (and .env when present)
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:           getEnv("PORT", "3000"),
			Env:            getEnv("APP_ENV", "development"),
			InternalAPIKey: getEnv("INTERNAL_API_KEY", ""),
		},
		DB: DatabaseConfig{
			DatabaseURL: getEnv("DATABASE_URL", ""),
			User:        getEnv("POSTGRES_USER", ""),
			Password:    getEnv("POSTGRES_PASSWORD", ""),
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnv("POSTGRES_PORT", "5432"),
			DBName:      getEnv("POSTGRES_DB", ""),
			MaxConns:    getEnvInt("DB_MAX_CONNS", 10),
			MinConns:    getEnvInt("DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", ""),
			Channel: getEnv("REDIS_CHANNEL", "varsly.events"),
		},
		Sources: SourceConfig{
			SubscriptionKey:  getEnvWithFallback("DOFFIN_SUBSCRIPTION_KEY", "DOFFIN_API_KEY", ""),
			SearchBaseURL:    getEnv("DOFFIN_API_BASE_URL", "https://api.doffin.no"),
			JSONURL:          getEnv("DOFFIN_API_URL", ""),
			CSVURL:           getEnv("DOFFIN_CSV_URL", ""),
			Timeout:          getEnvDuration("SOURCE_TIMEOUT", 20*time.Second),
			CSVMaxRows:       getEnvInt("CSV_MAX_ROWS", 400),
			SearchWindowDays: getEnvInt("SEARCH_WINDOW_DAYS", 30),
			SearchPageSize:   getEnvInt("SEARCH_PAGE_SIZE", 200),
			SearchStatus:     getEnv("SEARCH_STATUS", "SUBMITTED"),
		},
		Mail: MailConfig{
			Provider:     strings.ToLower(getEnv("MAIL_PROVIDER", "resend")),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			ResendAPIURL: getEnv("RESEND_API_URL", "https://api.resend.com/emails"),
			FromEmail:    getEnv("RESEND_FROM_EMAIL", "varsler@resend.dev"),
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			SMTPUseTLS:   getEnvBool("SMTP_USE_TLS", true),
		},
		App: AppConfig{
			PublicURL:         strings.TrimRight(getEnv("PUBLIC_APP_URL", "https://anbudsvarsler.no"), "/"),
			UnsubscribeSecret: getEnv("UNSUBSCRIBE_JWT_SECRET", ""),
			TokenTTL:          getEnvDuration("TOKEN_TTL", 30*24*time.Hour),
		},
		Schedule: ScheduleConfig{
			IngestCron: getEnv("INGEST_CRON", "@hourly"),
			DigestCron: getEnv("DIGEST_CRON", "0 7 * * *"),
			Timezone:   getEnv("TIMEZONE", "Europe/Oslo"),
			RunAtStart: getEnvBool("RUN_AT_START", false),
		},
		Dispatch: DispatchConfig{
			DigestWorkers:    getEnvInt("DIGEST_WORKERS", 4),
			DigestWindow:     getEnvDuration("DIGEST_WINDOW", 24*time.Hour),
			HookWorkers:      getEnvInt("HOOK_WORKERS", 4),
			ImmediateTrigger: strings.ToLower(getEnv("IMMEDIATE_TRIGGER", TriggerInline)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects malformed values. Missing credentials are not an error here;
// the stage that needs them reports it.
func (c *Config) Validate() error {
	switch c.Mail.Provider {
	case "resend", "smtp":
	default:
		return fmt.Errorf("unknown MAIL_PROVIDER %q (want resend or smtp)", c.Mail.Provider)
	}
	if c.Sources.CSVMaxRows <= 0 {
		return fmt.Errorf("CSV_MAX_ROWS must be positive, got %d", c.Sources.CSVMaxRows)
	}
	if c.Dispatch.DigestWorkers <= 0 {
		return fmt.Errorf("DIGEST_WORKERS must be positive, got %d", c.Dispatch.DigestWorkers)
	}
	if c.Dispatch.HookWorkers <= 0 {
		return fmt.Errorf("HOOK_WORKERS must be positive, got %d", c.Dispatch.HookWorkers)
	}
	switch c.Dispatch.ImmediateTrigger {
	case TriggerInline, TriggerWebhook:
	default:
		return fmt.Errorf("unknown IMMEDIATE_TRIGGER %q (want inline or webhook)", c.Dispatch.ImmediateTrigger)
	}
	if c.Sources.Timeout <= 0 {
		return fmt.Errorf("SOURCE_TIMEOUT must be positive, got %s", c.Sources.Timeout)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvWithFallback tries key, then fallbackKey
func getEnvWithFallback(key, fallbackKey, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return getEnv(fallbackKey, defaultValue)
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// getEnvDuration accepts Go durations ("20s") or plain seconds ("20")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

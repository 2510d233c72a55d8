package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	// Collaborator base URLs. Empty values disable the remote call and
	// the consuming check degrades per its own policy.
	PatientServiceURL     string `mapstructure:"PATIENT_SERVICE_URL"`
	DoctorServiceURL      string `mapstructure:"DOCTOR_SERVICE_URL"`
	AppointmentServiceURL string `mapstructure:"APPOINTMENT_SERVICE_URL"`
	BillingServiceURL     string `mapstructure:"BILLING_SERVICE_URL"`
	NotificationURL       string `mapstructure:"NOTIFICATION_URL"`
	PharmacyServiceURL    string `mapstructure:"PHARMACY_SERVICE_URL"`

	DailyCap        int      `mapstructure:"DAILY_CAP"`
	ClientTimeoutMS int      `mapstructure:"CLIENT_TIMEOUT_MS"`
	OutboxPollMS    int      `mapstructure:"OUTBOX_POLL_INTERVAL_MS"`
	RateLimitRPS    float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int      `mapstructure:"RATE_LIMIT_BURST"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DAILY_CAP", 20)
	v.SetDefault("CLIENT_TIMEOUT_MS", 3000)
	v.SetDefault("OUTBOX_POLL_INTERVAL_MS", 2000)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("PATIENT_SERVICE_URL")
	v.BindEnv("DOCTOR_SERVICE_URL")
	v.BindEnv("APPOINTMENT_SERVICE_URL")
	v.BindEnv("BILLING_SERVICE_URL")
	v.BindEnv("NOTIFICATION_URL")
	v.BindEnv("PHARMACY_SERVICE_URL")
	v.BindEnv("DAILY_CAP")
	v.BindEnv("CLIENT_TIMEOUT_MS")
	v.BindEnv("OUTBOX_POLL_INTERVAL_MS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// ClientTimeout returns the timeout applied to every outbound
// collaborator call.
func (c *Config) ClientTimeout() time.Duration {
	return time.Duration(c.ClientTimeoutMS) * time.Millisecond
}

// OutboxPollInterval returns how often the event dispatcher polls for
// undelivered lifecycle events.
func (c *Config) OutboxPollInterval() time.Duration {
	return time.Duration(c.OutboxPollMS) * time.Millisecond
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.DailyCap <= 0 {
		return fmt.Errorf("DAILY_CAP must be positive, got %d", c.DailyCap)
	}
	if c.ClientTimeoutMS <= 0 {
		return fmt.Errorf("CLIENT_TIMEOUT_MS must be positive, got %d", c.ClientTimeoutMS)
	}
	if c.OutboxPollMS <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL_MS must be positive, got %d", c.OutboxPollMS)
	}
	return nil
}

// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// APIKey protects the internal /api/v1 surface. The webhook endpoint
	// is authenticated by its signature instead.
	APIKey        string        `yaml:"api_key"`
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	// Tolerance bounds the accepted age of a signed webhook timestamp.
	Tolerance time.Duration `yaml:"tolerance"`
}

type EmailJSConfig struct {
	ServiceID  string `yaml:"service_id"`
	PublicKey  string `yaml:"public_key"`
	PrivateKey string `yaml:"private_key"`
}

type TemplatesConfig struct {
	Welcome   string `yaml:"welcome"`
	Upgrade   string `yaml:"upgrade"`
	Downgrade string `yaml:"downgrade"`
	Cancelled string `yaml:"cancelled"`
}

type NotifyConfig struct {
	EmailJS   EmailJSConfig   `yaml:"emailjs"`
	Templates TemplatesConfig `yaml:"templates"`
}

type AppConfig struct {
	// BaseURL is the health app's public URL, used for checkout
	// success/cancel and portal return redirects.
	BaseURL string `yaml:"base_url"`
}

type SchedulerConfig struct {
	ExpiryInterval time.Duration `yaml:"expiry_interval"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Stripe    StripeConfig    `yaml:"stripe"`
	Notify    NotifyConfig    `yaml:"notify"`
	App       AppConfig       `yaml:"app"`
	Scheduler SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file, then lets the environment override the
// secrets so credentials never have to live in the file. A .env next to
// the binary is honored when present.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)

	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.SessionTTL <= 0 {
		cfg.Server.SessionTTL = 30 * time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.Stripe.Tolerance <= 0 {
		cfg.Stripe.Tolerance = 5 * time.Minute
	}
	if cfg.Scheduler.ExpiryInterval <= 0 {
		cfg.Scheduler.ExpiryInterval = time.Hour
	}

	// Minimal validation. Provider credentials are NOT validated here:
	// their absence degrades the affected endpoint, not the process.
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.App.BaseURL == "" {
		return nil, errors.New("app.base_url is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Database.URL, "DATABASE_URL")
	set(&cfg.Redis.URL, "REDIS_URL")
	set(&cfg.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	set(&cfg.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	set(&cfg.Notify.EmailJS.ServiceID, "EMAILJS_SERVICE_ID")
	set(&cfg.Notify.EmailJS.PublicKey, "EMAILJS_PUBLIC_KEY")
	set(&cfg.Notify.EmailJS.PrivateKey, "EMAILJS_PRIVATE_KEY")
	set(&cfg.Notify.Templates.Welcome, "EMAILJS_TEMPLATE_WELCOME")
	set(&cfg.Notify.Templates.Upgrade, "EMAILJS_TEMPLATE_UPGRADE")
	set(&cfg.Notify.Templates.Downgrade, "EMAILJS_TEMPLATE_DOWNGRADE")
	set(&cfg.Notify.Templates.Cancelled, "EMAILJS_TEMPLATE_CANCELLED")
	set(&cfg.Server.APIKey, "BILLING_API_KEY")
	set(&cfg.Server.SessionSecret, "BILLING_SESSION_SECRET")
}

// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"premium-activation/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	PublicBaseURL  string        `yaml:"public_base_url"` // used to build return/cancel URLs
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"` // optional; the attempt ledger is disabled when empty
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // optional; durable state is in-process only when empty
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type PaymentConfig struct {
	BaseURL           string        `yaml:"base_url"` // backend exposing POST /payment-link
	DescriptionBudget int           `yaml:"description_budget"`
	Timeout           time.Duration `yaml:"timeout"`
	ReturnPath        string        `yaml:"return_path"`
	CancelPath        string        `yaml:"cancel_path"`
}

type AccountConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type RateLimitConfig struct {
	InitiatePerWindow int           `yaml:"initiate_per_window"`
	Window            time.Duration `yaml:"window"`
}

type SweeperConfig struct {
	Interval   time.Duration `yaml:"interval"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

// AdminConfig guards the support routes. They are not mounted without a secret.
type AdminConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type I18nConfig struct {
	Lang string `yaml:"lang"`
}

type Config struct {
	Log       LogConfig        `yaml:"log"`
	HTTP      HTTPConfig       `yaml:"http"`
	Database  DatabaseConfig   `yaml:"database"`
	Redis     RedisConfig      `yaml:"redis"`
	Payment   PaymentConfig    `yaml:"payment"`
	Account   AccountConfig    `yaml:"account"`
	Plans     []model.PlanTier `yaml:"plans"`
	RateLimit RateLimitConfig  `yaml:"ratelimit"`
	Sweeper   SweeperConfig    `yaml:"sweeper"`
	I18n      I18nConfig       `yaml:"i18n"`
	Admin     AdminConfig      `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

// DefaultPlans is the catalog used when the config lists none.
func DefaultPlans() []model.PlanTier {
	return []model.PlanTier{
		{ID: "premium-1m", Name: "Premium 1 month", DurationMonths: 1, AmountMinor: 49000, Currency: "VND"},
		{ID: "premium-3m", Name: "Premium 3 months", DurationMonths: 3, AmountMinor: 129000, Currency: "VND"},
		{ID: "premium-6m", Name: "Premium 6 months", DurationMonths: 6, AmountMinor: 239000, Currency: "VND"},
		{ID: "premium-12m", Name: "Premium 12 months", DurationMonths: 12, AmountMinor: 429000, Currency: "VND"},
	}
}

func LoadConfig(configPath string, dev bool) (*Config, error) {
	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes YAML, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// the hosted checkout rejects descriptions longer than 25 characters
	if cfg.Payment.DescriptionBudget <= 0 {
		cfg.Payment.DescriptionBudget = 25
	}
	if cfg.Payment.Timeout <= 0 {
		cfg.Payment.Timeout = 15 * time.Second
	}
	if cfg.Payment.ReturnPath == "" {
		cfg.Payment.ReturnPath = "/payment/return"
	}
	if cfg.Payment.CancelPath == "" {
		cfg.Payment.CancelPath = "/payment/cancel"
	}
	if cfg.Account.Timeout <= 0 {
		cfg.Account.Timeout = 10 * time.Second
	}
	if len(cfg.Plans) == 0 {
		cfg.Plans = DefaultPlans()
	}
	if cfg.RateLimit.InitiatePerWindow <= 0 {
		cfg.RateLimit.InitiatePerWindow = 5
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.Sweeper.Interval <= 0 {
		cfg.Sweeper.Interval = 5 * time.Minute
	}
	if cfg.Sweeper.StaleAfter <= 0 {
		cfg.Sweeper.StaleAfter = 30 * time.Minute
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 30 * time.Minute
	}
	if cfg.I18n.Lang == "" {
		cfg.I18n.Lang = "en"
	}
}

func validate(cfg *Config) error {
	if cfg.Payment.BaseURL == "" {
		return errors.New("payment.base_url is required")
	}
	if cfg.Account.BaseURL == "" {
		return errors.New("account.base_url is required")
	}
	if cfg.HTTP.PublicBaseURL == "" {
		return errors.New("http.public_base_url is required")
	}
	if _, err := url.ParseRequestURI(cfg.HTTP.PublicBaseURL); err != nil {
		return fmt.Errorf("invalid http.public_base_url: %w", err)
	}
	for _, p := range []string{cfg.Payment.ReturnPath, cfg.Payment.CancelPath} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("payment paths must start with '/': %q", p)
		}
	}
	if cfg.Payment.ReturnPath == cfg.Payment.CancelPath {
		return errors.New("payment.return_path and payment.cancel_path must differ")
	}
	if s := cfg.Admin.JWTSecret; s != "" && len(s) < 16 {
		return errors.New("admin.jwt_secret must be at least 16 characters")
	}
	if _, err := model.NewPlanCatalog(cfg.Plans); err != nil {
		return fmt.Errorf("invalid plans: %w", err)
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 24 * time.Hour
	}
	return d
}

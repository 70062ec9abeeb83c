// Package config loads the process configuration once at startup.
// No other package reads the environment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	tierentity "crypto_quote_bot/internal/feature/entitlement/domain/entity"
)

type Config struct {
	Server    ServerConfig
	Bot       BotConfig
	DB        DBConfig
	Gateway   GatewayConfig
	Market    MarketConfig
	Cache     CacheConfig
	Quota     QuotaConfig
	Narrative NarrativeConfig
	Redis     RedisConfig
	NATS      NATSConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int `validate:"required,min=1,max=65535"`
}

type BotConfig struct {
	// PremiumRoleID はプレミアムティアを付与するメンバーシップID
	PremiumRoleID string `validate:"required"`
}

type DBConfig struct {
	URL           string `validate:"required"`
	RunMigrations bool
	MaxConns      int32 `validate:"min=0"`
}

type GatewayConfig struct {
	JWTSecret string        `validate:"required,min=16"`
	TokenTTL  time.Duration `validate:"gt=0"`
}

type MarketConfig struct {
	APIKey            string        `validate:"required"`
	BaseURL           string        `validate:"required,url"`
	Timeout           time.Duration `validate:"gt=0"`
	MaxAttempts       int           `validate:"min=1,max=10"`
	RequestsPerMinute int           `validate:"min=0"`
}

type CacheConfig struct {
	TTL           time.Duration `validate:"gt=0"`
	Capacity      int           `validate:"min=1"`
	SweepInterval time.Duration `validate:"gt=0"`
}

type QuotaConfig struct {
	FreeLimit    int           `validate:"min=-1"`
	PremiumLimit int           `validate:"min=-1"`
	Window       time.Duration `validate:"gt=0"`
	FailOpen     bool
	Backend      string        `validate:"oneof=gorm pgx"`
	StoreTimeout time.Duration `validate:"gt=0"`
}

type NarrativeConfig struct {
	Enabled bool
	Timeout time.Duration `validate:"gt=0"`
	// APIKey が空の場合はApplication Default Credentialsを使う
	APIKey string
	Model  string `validate:"required"`
}

type RedisConfig struct {
	Addr     string
	Password string
}

type NATSConfig struct {
	URL string
}

type LogConfig struct {
	Level  string `validate:"oneof=debug info warn warning error"`
	Format string `validate:"oneof=text json"`
	File   string
}

// Policies builds the tier table from the configured limits.
func (c *Config) Policies() tierentity.Policies {
	return tierentity.Policies{
		tierentity.TierFree:    {QuotaLimit: c.Quota.FreeLimit, Enrichment: false},
		tierentity.TierPremium: {QuotaLimit: c.Quota.PremiumLimit, Enrichment: true},
	}
}

// Load reads envFile (if it exists) and then the environment, which wins.
func Load(envFile string) (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	if envFile != "" {
		_ = k.Load(file.Provider(envFile), dotenv.Parser())
	}

	// Load environment variables (override .env)
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	r := reader{k: k}
	cfg := &Config{
		Server: ServerConfig{
			Port: r.integer("PORT", 8080),
		},
		Bot: BotConfig{
			PremiumRoleID: k.String("PREMIUM_ROLE_ID"),
		},
		DB: DBConfig{
			URL:           k.String("DATABASE_URL"),
			RunMigrations: r.boolean("RUN_MIGRATIONS", false),
			MaxConns:      int32(r.integer("DB_MAX_CONNS", 10)),
		},
		Gateway: GatewayConfig{
			JWTSecret: k.String("GATEWAY_JWT_SECRET"),
			TokenTTL:  r.duration("GATEWAY_TOKEN_TTL", 24*time.Hour),
		},
		Market: MarketConfig{
			APIKey:            k.String("CMC_API_KEY"),
			BaseURL:           r.str("CMC_BASE_URL", "https://pro-api.coinmarketcap.com"),
			Timeout:           r.duration("CMC_TIMEOUT", 10*time.Second),
			MaxAttempts:       r.integer("CMC_MAX_ATTEMPTS", 3),
			RequestsPerMinute: r.integer("CMC_REQUESTS_PER_MINUTE", 30),
		},
		Cache: CacheConfig{
			TTL:           r.duration("QUOTE_CACHE_TTL", 5*time.Minute),
			Capacity:      r.integer("QUOTE_CACHE_CAPACITY", 1024),
			SweepInterval: r.duration("QUOTE_CACHE_SWEEP", time.Minute),
		},
		Quota: QuotaConfig{
			FreeLimit:    r.integer("QUOTA_FREE_LIMIT", 10),
			PremiumLimit: r.integer("QUOTA_PREMIUM_LIMIT", tierentity.Unlimited),
			Window:       r.duration("QUOTA_WINDOW", 24*time.Hour),
			FailOpen:     r.boolean("QUOTA_FAIL_OPEN", false),
			Backend:      strings.ToLower(r.str("QUOTA_BACKEND", "gorm")),
			StoreTimeout: r.duration("STORE_TIMEOUT", 2*time.Second),
		},
		Narrative: NarrativeConfig{
			Enabled: r.boolean("NARRATIVE_ENABLED", true),
			Timeout: r.duration("NARRATIVE_TIMEOUT", 8*time.Second),
			APIKey:  k.String("GEMINI_API_KEY"),
			Model:   r.str("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Redis: RedisConfig{
			Addr:     k.String("REDIS_ADDR"),
			Password: k.String("REDIS_PASSWORD"),
		},
		NATS: NATSConfig{
			URL: k.String("NATS_URL"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(r.str("LOG_LEVEL", "info")),
			Format: strings.ToLower(r.str("LOG_FORMAT", "text")),
			File:   k.String("LOG_FILE"),
		},
	}

	if len(r.errs) > 0 {
		return nil, fmt.Errorf("config parse failed: %w", errors.Join(r.errs...))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required keys and ranges and reports every problem at once.
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config validation failed: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", envKey(fe.StructNamespace()), fe.Tag()))
	}
	return errors.New("config validation failed:\n  " + strings.Join(msgs, "\n  "))
}

// envKeys maps struct fields back to the variable an operator has to fix.
var envKeys = map[string]string{
	"Config.Server.Port":              "PORT",
	"Config.Bot.PremiumRoleID":        "PREMIUM_ROLE_ID",
	"Config.DB.URL":                   "DATABASE_URL",
	"Config.DB.MaxConns":              "DB_MAX_CONNS",
	"Config.Gateway.JWTSecret":        "GATEWAY_JWT_SECRET",
	"Config.Gateway.TokenTTL":         "GATEWAY_TOKEN_TTL",
	"Config.Market.APIKey":            "CMC_API_KEY",
	"Config.Market.BaseURL":           "CMC_BASE_URL",
	"Config.Market.Timeout":           "CMC_TIMEOUT",
	"Config.Market.MaxAttempts":       "CMC_MAX_ATTEMPTS",
	"Config.Market.RequestsPerMinute": "CMC_REQUESTS_PER_MINUTE",
	"Config.Cache.TTL":                "QUOTE_CACHE_TTL",
	"Config.Cache.Capacity":           "QUOTE_CACHE_CAPACITY",
	"Config.Cache.SweepInterval":      "QUOTE_CACHE_SWEEP",
	"Config.Quota.FreeLimit":          "QUOTA_FREE_LIMIT",
	"Config.Quota.PremiumLimit":       "QUOTA_PREMIUM_LIMIT",
	"Config.Quota.Window":             "QUOTA_WINDOW",
	"Config.Quota.Backend":            "QUOTA_BACKEND",
	"Config.Quota.StoreTimeout":       "STORE_TIMEOUT",
	"Config.Narrative.Timeout":        "NARRATIVE_TIMEOUT",
	"Config.Narrative.Model":          "GEMINI_MODEL",
	"Config.Log.Level":                "LOG_LEVEL",
	"Config.Log.Format":               "LOG_FORMAT",
}

func envKey(ns string) string {
	if k, ok := envKeys[ns]; ok {
		return k
	}
	return ns
}

// reader wraps koanf lookups with defaults and collects parse errors.
type reader struct {
	k    *koanf.Koanf
	errs []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.k.String(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	raw := strings.TrimSpace(r.k.String(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not an integer", key, raw))
		return def
	}
	return v
}

func (r *reader) boolean(key string, def bool) bool {
	raw := strings.TrimSpace(r.k.String(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a boolean", key, raw))
		return def
	}
	return v
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(r.k.String(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a duration", key, raw))
		return def
	}
	return v
}

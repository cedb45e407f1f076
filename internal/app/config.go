package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (BOOKPROOF_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (BOOKPROOF_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	TokenSecret string `usage:"HMAC secret for bearer tokens (BOOKPROOF_TOKEN_SECRET)" flag:"token-secret"`
	TokenTTL    time.Duration `default:"24h" usage:"Bearer token lifetime" flag:"token-ttl"`

	Redis      RedisConfig
	Kafka      KafkaConfig
	Credits    CreditsConfig
	Commission CommissionConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Graceful   GracefulConfig
}

// RedisConfig controls the optional coupon lookup cache. An empty address
// disables caching entirely.
type RedisConfig struct {
	Addr string        `default:"" usage:"Redis address for the coupon cache; empty disables caching"`
	TTL  time.Duration `default:"5m" usage:"Coupon cache entry TTL"`
}

// KafkaConfig controls the optional event stream. An empty broker list makes
// the service publish to a no-op sink.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka broker addresses; empty disables event publishing"`
	Topic   string   `default:"bookproof.events" usage:"Kafka topic for domain events"`
}

// CreditsConfig controls the credit ledger timing rules.
type CreditsConfig struct {
	Validity         time.Duration `default:"8760h" usage:"How long purchased credits stay usable"`
	ActivationWindow time.Duration `default:"720h" usage:"Window for activating a purchase before forfeiture" flag:"activation-window"`
	ExpiryLookAhead  time.Duration `default:"720h" usage:"Expiring-soon window reported in balances" flag:"expiry-look-ahead"`
}

// CommissionConfig controls affiliate commission rules.
type CommissionConfig struct {
	DefaultRate   string        `default:"10" usage:"Platform default commission rate in percent" flag:"default-rate"`
	HoldingPeriod time.Duration `default:"720h" usage:"Pending commission holding period before auto-approval" flag:"holding-period"`
	SweepInterval time.Duration `default:"1h" usage:"How often matured commissions are approved" flag:"sweep-interval"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BOOKPROOF",
		Files:     []string{"config.yaml", "/etc/bookproof/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set BOOKPROOF_DATABASE_URL or DATABASE_URL")
	}
	if cfg.TokenSecret == "" {
		return nil, errors.New("token secret is required: set BOOKPROOF_TOKEN_SECRET")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's BOOKPROOF_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

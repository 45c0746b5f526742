package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	coreconfig "github.com/go-core-fx/config"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

type Config struct {
	Port           string        `koanf:"port"`
	AllowedOrigin  string        `koanf:"allowed_origin"`
	RedisAddr      string        `koanf:"redis_addr"`
	RedisPassword  string        `koanf:"redis_password"`
	RedisDB        int           `koanf:"redis_db"`
	AuthSecret     string        `koanf:"auth_secret"`
	AccessTokenTTL time.Duration `koanf:"access_token_ttl"`
	Timezone       string        `koanf:"timezone"`
	StrictStock    bool          `koanf:"strict_stock"`
	SeedDemoData   bool          `koanf:"seed_demo_data"`
	Debug          bool          `koanf:"debug"`
	LogFile        string        `koanf:"log_file"`
	// PrometheusEnabled exposes /metrics on the API port.
	PrometheusEnabled bool `koanf:"prometheus_enabled"`
}

func Default() Config {
	return Config{
		Port:           "8080",
		AllowedOrigin:  "http://127.0.0.1:5173",
		AccessTokenTTL: 8 * time.Hour,
		Timezone:       "UTC",
		StrictStock:    true,
		SeedDemoData:   true,
	}
}

func New() (Config, error) {
	// A missing .env file is not an error; the environment alone is enough.
	_ = godotenv.Load()

	cfg := Default()
	if err := coreconfig.Load(&cfg); err != nil {
		return Config{}, fmt.Errorf("loading config: %w", err)
	}
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive")
	}
	if err := validateOrigin(c.AllowedOrigin); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// validateOrigin accepts "*" or an http(s) origin with a host, the forms
// the CORS middleware accepts without panicking.
func validateOrigin(origin string) error {
	if origin == "*" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("ALLOWED_ORIGIN must be \"*\" or an http(s) origin, got %q", origin)
	}
	return nil
}

func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func Module() fx.Option {
	return fx.Module(
		"config",
		fx.Provide(New),
	)
}

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	AppEnv     string `env:"APP_ENV" envDefault:"development"`
	AppURL     string `env:"APP_URL" envDefault:"http://localhost:3000"`
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"http://localhost:3000"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	DBURL string `env:"DB_URL,required,notEmpty"`

	Auth   AuthConfig
	Stripe StripeConfig

	// Credits granted to a user the first time the identity provider vouches for them.
	NewUserCredits int `env:"NEW_USER_CREDITS" envDefault:"10"`

	// DotEnvLoaded reports whether LoadEnv found a .env file.
	DotEnvLoaded bool
}

type AuthConfig struct {
	JWTSecret    string `env:"JWT_SECRET"`
	OIDCIssuer   string `env:"AUTH_OIDC_ISSUER"`
	OIDCClientID string `env:"AUTH_OIDC_CLIENT_ID"`
	CookieName   string `env:"AUTH_COOKIE_NAME" envDefault:"access_token"`
}

type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY,required,notEmpty"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required,notEmpty"`

	PriceBasicMonthly string `env:"STRIPE_PRICE_BASIC_ID,required,notEmpty"`
	PriceBasicAnnual  string `env:"STRIPE_PRICE_BASIC_ANNUAL_ID"`
	PriceProMonthly   string `env:"STRIPE_PRICE_PRO_ID,required,notEmpty"`
	PriceProAnnual    string `env:"STRIPE_PRICE_PRO_ANNUAL_ID"`
}

var ErrNoIdentityProvider = errors.New("config: either JWT_SECRET or AUTH_OIDC_ISSUER must be set")

// LoadEnv reads the given .env files (".env" by default) when present, then
// the process environment. A missing file is not an error.
func LoadEnv(files ...string) (*Config, error) {
	dotEnvErr := godotenv.Load(files...)
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	cfg.DotEnvLoaded = dotEnvErr == nil
	return cfg, nil
}

// Parse builds a Config from the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" && c.Auth.OIDCIssuer == "" {
		return ErrNoIdentityProvider
	}
	if c.NewUserCredits < 0 {
		return fmt.Errorf("config: NEW_USER_CREDITS must not be negative, got %d", c.NewUserCredits)
	}
	c.AppURL = strings.TrimRight(c.AppURL, "/")
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

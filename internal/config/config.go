package config

import (
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Config holds the application configuration. Values come from the process
// environment (optionally seeded from a .env file) and an optional config.yaml.
type Config struct {
	Port            string        `env:"PORT" default:"5000"`
	MongoURI        string        `env:"MONGO_URI"`
	DBName          string        `env:"DB_NAME" default:"lyvore"`
	JWTSecret       string        `env:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" default:"20m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" default:"168h"`
	LogLevel        string        `env:"LOG_LEVEL" default:"info"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" default:"*"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"15s"`

	RazorpayKeyID     string `env:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret string `env:"RAZORPAY_KEY_SECRET"`
	RazorpayBaseURL   string `env:"RAZORPAY_BASE_URL" default:"https://api.razorpay.com"`
	PaymentCurrency   string `env:"PAYMENT_CURRENCY" default:"INR"`
}

// Load reads .env (when present), config.yaml (when present) and the
// environment, in that order of increasing precedence.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags:        true,
		AllowUnknownEnvs: true,
		Files:            []string{"config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.MongoURI = strings.TrimSpace(c.MongoURI)
	c.JWTSecret = strings.TrimSpace(c.JWTSecret)

	if c.MongoURI == "" {
		return errors.New("MONGO_URI is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("ACCESS_TOKEN_TTL must be positive")
	}
	if c.RefreshTokenTTL <= 0 {
		return errors.New("REFRESH_TOKEN_TTL must be positive")
	}
	return nil
}

// PaymentsEnabled reports whether gateway credentials are configured.
func (c *Config) PaymentsEnabled() bool {
	return c.RazorpayKeyID != "" && c.RazorpayKeySecret != ""
}

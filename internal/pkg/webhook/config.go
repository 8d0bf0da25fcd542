package webhook

import (
	"fmt"
	"time"

	"github.com/ManuelReschke/PayHook/internal/pkg/env"
	caarlos "github.com/caarlos0/env/v6"
)

// Config holds the webhook pipeline settings read from the environment.
type Config struct {
	MercadoPagoSecret string `env:"MERCADOPAGO_WEBHOOK_SECRET"`
	AsaasToken        string `env:"ASAAS_WEBHOOK_TOKEN"`

	RateLimitMax      int `env:"WEBHOOK_RATE_LIMIT_MAX" envDefault:"100" validate:"gte=1"`
	RateLimitWindowMs int `env:"WEBHOOK_RATE_LIMIT_WINDOW_MS" envDefault:"60000" validate:"gte=1"`

	RetryMaxAttempts int `env:"WEBHOOK_RETRY_MAX_ATTEMPTS" envDefault:"3" validate:"gte=1,lte=10"`
	RetryBaseDelayMs int `env:"WEBHOOK_RETRY_BASE_DELAY_MS" envDefault:"1000" validate:"gte=0"`

	BodyLimitBytes int `env:"WEBHOOK_BODY_LIMIT_BYTES" envDefault:"1048576" validate:"gte=1024"`

	// RequestTimeoutMs bounds one delivery including retries.
	RequestTimeoutMs int `env:"WEBHOOK_REQUEST_TIMEOUT_MS" envDefault:"30000" validate:"gte=0,lt=600000"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		RateLimitMax:      100,
		RateLimitWindowMs: 60000,
		RetryMaxAttempts:  DefaultRetryMaxAttempts,
		RetryBaseDelayMs:  int(DefaultRetryBaseDelay / time.Millisecond),
		BodyLimitBytes:    1 << 20,
		RequestTimeoutMs:  30000,
	}
}

// LoadConfig parses the pipeline settings from the .env file and the process
// environment.
func LoadConfig() (Config, error) {
	return ParseConfig(env.All())
}

// ParseConfig parses the pipeline settings from an explicit variable set.
func ParseConfig(vars map[string]string) (Config, error) {
	var cfg Config
	if err := caarlos.Parse(&cfg, caarlos.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse webhook config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid webhook config: %w", err)
	}
	if cfg.RequestTimeoutMs > 0 {
		backoff := Retrier{MaxAttempts: cfg.RetryMaxAttempts, BaseDelay: cfg.RetryBaseDelay()}.MaxBlocking()
		if backoff >= cfg.RequestTimeout() {
			return Config{}, fmt.Errorf("invalid webhook config: retry backoff %v does not fit in request timeout %v", backoff, cfg.RequestTimeout())
		}
	}
	return cfg, nil
}

func (c Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMs) * time.Millisecond
}

func (c Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

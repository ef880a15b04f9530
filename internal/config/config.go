package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "MEDIATOR_"

type Config struct {
	HTTP      HTTP      `yaml:"http" envPrefix:"HTTP_"`
	Store     Store     `yaml:"store" envPrefix:"STORE_"`
	Payments  Payments  `yaml:"payments" envPrefix:"PAYMENTS_"`
	Processor Processor `yaml:"processor" envPrefix:"PROCESSOR_"`
	Telegram  Telegram  `yaml:"telegram" envPrefix:"TELEGRAM_"`
	Notify    Notify    `yaml:"notify" envPrefix:"NOTIFY_"`
	Redis     Redis     `yaml:"redis" envPrefix:"REDIS_"`
	Tracing   Tracing   `yaml:"tracing" envPrefix:"TRACING_"`
	Log       Log       `yaml:"log" envPrefix:"LOG_"`
}

type HTTP struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// Store selects the payment and outbox storage. Driver is one of memory,
// sqlite (pure Go), sqlite3 (cgo), mysql or postgres.
type Store struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	DSN    string `yaml:"dsn" env:"DSN"`
}

type Payments struct {
	Currency     string        `yaml:"currency" env:"CURRENCY"`
	RetryDelay   time.Duration `yaml:"retry_delay" env:"RETRY_DELAY"`
	ScanInterval time.Duration `yaml:"scan_interval" env:"SCAN_INTERVAL"`
	ScanTimeout  time.Duration `yaml:"scan_timeout" env:"SCAN_TIMEOUT"`
}

type Processor struct {
	Kind      string        `yaml:"kind" env:"KIND"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
	ReturnURL string        `yaml:"return_url" env:"RETURN_URL"`
	YooKassa  YooKassa      `yaml:"yookassa" envPrefix:"YOOKASSA_"`
	PayPal    PayPal        `yaml:"paypal" envPrefix:"PAYPAL_"`
}

type YooKassa struct {
	ShopID    string `yaml:"shop_id" env:"SHOP_ID"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	BaseURL   string `yaml:"base_url" env:"BASE_URL"`
}

type PayPal struct {
	ClientID     string `yaml:"client_id" env:"CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"CLIENT_SECRET"`
	Sandbox      bool   `yaml:"sandbox" env:"SANDBOX"`
	CancelURL    string `yaml:"cancel_url" env:"CANCEL_URL"`
}

// Telegram is optional. Without a token operator messages go to the log.
type Telegram struct {
	Token   string `yaml:"token" env:"TOKEN"`
	ChatID  string `yaml:"chat_id" env:"CHAT_ID"`
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
}

type Notify struct {
	Attempts     uint          `yaml:"attempts" env:"ATTEMPTS"`
	BaseDelay    time.Duration `yaml:"base_delay" env:"BASE_DELAY"`
	SendTimeout  time.Duration `yaml:"send_timeout" env:"SEND_TIMEOUT"`
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
	BatchSize    int           `yaml:"batch_size" env:"BATCH_SIZE"`
	// Lease is how long a claimed message stays invisible to other
	// dispatchers. It must outlast every attempt of one delivery.
	Lease time.Duration `yaml:"lease" env:"LEASE"`
}

// Redis enables the cross-instance retry lock when Addr is set.
type Redis struct {
	Addr       string        `yaml:"addr" env:"ADDR"`
	Password   string        `yaml:"password" env:"PASSWORD"`
	DB         int           `yaml:"db" env:"DB"`
	LockExpiry time.Duration `yaml:"lock_expiry" env:"LOCK_EXPIRY"`
}

type Tracing struct {
	ServiceName  string `yaml:"service_name" env:"SERVICE_NAME"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
}

type Log struct {
	Level string `yaml:"level" env:"LEVEL"`
}

func Default() *Config {
	return &Config{
		HTTP: HTTP{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: Store{
			Driver: "sqlite",
			DSN:    "payments.db",
		},
		Payments: Payments{
			Currency:     "RUB",
			RetryDelay:   24 * time.Hour,
			ScanInterval: 10 * time.Second,
			ScanTimeout:  time.Minute,
		},
		Processor: Processor{
			Kind:      "yookassa",
			Timeout:   15 * time.Second,
			ReturnURL: "https://example.com",
		},
		Notify: Notify{
			Attempts:     3,
			BaseDelay:    time.Second,
			SendTimeout:  10 * time.Second,
			PollInterval: time.Second,
			BatchSize:    50,
			Lease:        5 * time.Minute,
		},
		Redis: Redis{
			LockExpiry: 2 * time.Minute,
		},
		Tracing: Tracing{
			ServiceName: "payment-mediator",
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path and MEDIATOR_* environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite", "sqlite3", "mysql", "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %s", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not supported", c.Store.Driver))
	}

	if c.Payments.Currency == "" {
		errs = append(errs, errors.New("payments.currency is required"))
	}
	if c.Payments.RetryDelay <= 0 {
		errs = append(errs, errors.New("payments.retry_delay must be positive"))
	}
	if c.Payments.ScanInterval <= 0 {
		errs = append(errs, errors.New("payments.scan_interval must be positive"))
	}

	switch c.Processor.Kind {
	case "yookassa":
		if c.Processor.YooKassa.ShopID == "" || c.Processor.YooKassa.SecretKey == "" {
			errs = append(errs, errors.New("processor.yookassa shop_id and secret_key are required"))
		}
	case "paypal":
		if c.Processor.PayPal.ClientID == "" || c.Processor.PayPal.ClientSecret == "" {
			errs = append(errs, errors.New("processor.paypal client_id and client_secret are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("processor.kind %q is not supported", c.Processor.Kind))
	}

	if c.Telegram.Token != "" && c.Telegram.ChatID == "" {
		errs = append(errs, errors.New("telegram.chat_id is required when a token is set"))
	}

	if c.Notify.Attempts == 0 {
		errs = append(errs, errors.New("notify.attempts must be at least 1"))
	}
	if c.Notify.PollInterval <= 0 {
		errs = append(errs, errors.New("notify.poll_interval must be positive"))
	}
	if c.Notify.BatchSize <= 0 {
		errs = append(errs, errors.New("notify.batch_size must be positive"))
	}
	if c.Notify.Lease <= 0 {
		errs = append(errs, errors.New("notify.lease must be positive"))
	}

	if c.Redis.Addr != "" && c.Redis.LockExpiry <= 0 {
		errs = append(errs, errors.New("redis.lock_expiry must be positive"))
	}

	return errors.Join(errs...)
}

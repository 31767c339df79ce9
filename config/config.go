package config

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"goflare.io/storefront/models/enum"
)

const EnvPrefix = "STOREFRONT"

type Config struct {
	App     AppConfig
	Store   StoreConfig
	Redis   RedisConfig
	DB      DBConfig
	NATS    NATSConfig
	Catalog CatalogConfig
	Shop    ShopConfig
}

type AppConfig struct {
	Env      string `envconfig:"ENV" default:"dev" validate:"oneof=dev prod test"`
	Addr     string `envconfig:"ADDR" default:":8080" validate:"required"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, "prod")
}

type StoreConfig struct {
	Driver     enum.StoreDriver `envconfig:"DRIVER" default:"file"`
	FilePath   string           `envconfig:"FILE" default:"data/cart.json"`
	StorageKey string           `envconfig:"KEY" default:"cart" validate:"required"`
}

type RedisConfig struct {
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0" validate:"gte=0"`
	// WishlistKey enables the redis backed wishlist when set.
	WishlistKey string `envconfig:"WISHLIST_KEY"`
}

type DBConfig struct {
	DSN     string `envconfig:"DSN"`
	Migrate bool   `envconfig:"MIGRATE" default:"true"`
}

type NATSConfig struct {
	URL     string `envconfig:"URL"`
	Subject string `envconfig:"SUBJECT" default:"storefront.cart.changed" validate:"required"`
	Workers int    `envconfig:"WORKERS" default:"2" validate:"gte=1"`
}

type CatalogConfig struct {
	StripeKey string        `envconfig:"STRIPE_KEY"`
	CacheTTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	// BreakerFailures consecutive remote failures open the breaker for BreakerTimeout.
	BreakerFailures uint32        `envconfig:"BREAKER_FAILURES" default:"5"`
	BreakerTimeout  time.Duration `envconfig:"BREAKER_TIMEOUT" default:"30s"`
	// SeedFile is a JSON array of catalog products used when no Stripe key is set.
	SeedFile string `envconfig:"SEED_FILE"`
}

type ShopConfig struct {
	CurrencySymbol string `envconfig:"CURRENCY_SYMBOL" default:"₴"`
	OpenHour       int    `envconfig:"OPEN_HOUR" default:"10" validate:"gte=0,lte=23"`
	CloseHour      int    `envconfig:"CLOSE_HOUR" default:"22" validate:"gte=0,lte=23"`
}

// Load reads an optional .env file, then the environment. Keys are
// STOREFRONT_<GROUP>_<NAME>, e.g. STOREFRONT_STORE_DRIVER or STOREFRONT_REDIS_ADDR.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && len(files) > 0 {
		return nil, errors.Wrap(err, "loading env files")
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if !c.Store.Driver.Valid() {
		return errors.Errorf("invalid config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == enum.StoreDriverPostgres && c.DB.DSN == "" {
		return errors.New("invalid config: postgres store requires STOREFRONT_DB_DSN")
	}
	if c.Store.Driver == enum.StoreDriverFile && c.Store.FilePath == "" {
		return errors.New("invalid config: file store requires STOREFRONT_STORE_FILE")
	}
	return nil
}

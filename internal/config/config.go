// Package config provides runtime configuration values for the pipeline stages.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Stage string

const (
	StageConfig  Stage = "config-engine"
	StagePricing Stage = "pricing-engine"
	StageCart    Stage = "cart-worker"
)

// Config holds everything one stage process needs. Values are resolved from
// stage defaults, then the optional CONFIG_FILE, then the environment.
type Config struct {
	Stage          Stage  `yaml:"-"`
	ServiceName    string `yaml:"serviceName"`
	ServiceVersion string `yaml:"serviceVersion"`
	Env            string `yaml:"env"`
	LogLevel       string `yaml:"logLevel"`

	RedisURL string        `yaml:"redisUrl"`
	Stream   StreamConfig  `yaml:"stream"`
	Admin    ServiceConfig `yaml:"admin"`
	Cart     ServiceConfig `yaml:"cart"`
	Otlp     OtlpConfig    `yaml:"otlp"`

	BatchSize       int           `yaml:"batchSize"`
	HTTPTimeout     time.Duration `yaml:"httpTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type StreamConfig struct {
	Name        string `yaml:"name"`
	Group       string `yaml:"group"`
	Destination string `yaml:"destination"`
	DeadLetter  string `yaml:"deadLetter"`

	ReadCount       int           `yaml:"readCount"`
	BlockTimeout    time.Duration `yaml:"blockTimeout"`
	ReclaimInterval time.Duration `yaml:"reclaimInterval"`
	ReclaimMinIdle  time.Duration `yaml:"reclaimMinIdle"`
	MaxDeliveries   int           `yaml:"maxDeliveries"`
}

type ServiceConfig struct {
	BaseURL string `yaml:"baseUrl"`
}

type OtlpConfig struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Defaults returns the configuration a stage runs with when nothing is set.
func Defaults(stage Stage) Config {
	cfg := Config{
		Stage:          stage,
		ServiceName:    string(stage),
		ServiceVersion: "unknown",
		Env:            "dev",
		LogLevel:       "info",
		RedisURL:       "redis://127.0.0.1:6379",
		Stream: StreamConfig{
			ReadCount:       10,
			BlockTimeout:    5 * time.Second,
			ReclaimInterval: 30 * time.Second,
			ReclaimMinIdle:  time.Minute,
			MaxDeliveries:   5,
		},
		Admin:           ServiceConfig{BaseURL: "https://localhost:7190/api"},
		Cart:            ServiceConfig{BaseURL: "https://localhost:7036/api"},
		Otlp:            OtlpConfig{Insecure: true},
		BatchSize:       20,
		HTTPTimeout:     10 * time.Second,
		ShutdownTimeout: 15 * time.Second,
	}

	switch stage {
	case StageConfig:
		cfg.Stream.Name, cfg.Stream.Group, cfg.Stream.Destination = "config-stream", "config-engine", "pricing-stream"
	case StagePricing:
		cfg.Stream.Name, cfg.Stream.Group, cfg.Stream.Destination = "pricing-stream", "pricing-engine", "cart-stream"
	case StageCart:
		cfg.Stream.Name, cfg.Stream.Group = "cart-stream", "cart-worker"
	}

	return cfg
}

// Load resolves the configuration of stage and validates it.
func Load(stage Stage) (Config, error) {
	cfg := Defaults(stage)

	if path := getenv("CONFIG_FILE", ""); path != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, fmt.Errorf("readFile[%s]: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.Stream.DeadLetter == "" {
		cfg.Stream.DeadLetter = cfg.Stream.Name + "-dlq"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("cfg.Validate: %w", err)
	}

	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("os.ReadFile: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("yaml.Unmarshal: %w", err)
	}

	return nil
}

func (c *Config) applyEnv() {
	c.ServiceName = getenv("SERVICE_NAME", c.ServiceName)
	c.ServiceVersion = getenv("SERVICE_VERSION", c.ServiceVersion)
	c.Env = getenv("APP_ENV", c.Env)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.RedisURL = getenv("REDIS_URL", c.RedisURL)

	c.Stream.Name = getenv("STREAM_NAME", c.Stream.Name)
	c.Stream.Group = getenv("CONSUMER_GROUP", c.Stream.Group)
	c.Stream.Destination = getenv("DESTINATION_STREAM", c.Stream.Destination)
	c.Stream.DeadLetter = getenv("DEAD_LETTER_STREAM", c.Stream.DeadLetter)
	c.Stream.ReadCount = atoienv("STREAM_READ_COUNT", c.Stream.ReadCount)
	c.Stream.BlockTimeout = durenvms("STREAM_BLOCK_TIMEOUT_MS", c.Stream.BlockTimeout)
	c.Stream.ReclaimInterval = durenvms("STREAM_RECLAIM_INTERVAL_MS", c.Stream.ReclaimInterval)
	c.Stream.ReclaimMinIdle = durenvms("STREAM_RECLAIM_MIN_IDLE_MS", c.Stream.ReclaimMinIdle)
	c.Stream.MaxDeliveries = atoienv("STREAM_MAX_DELIVERIES", c.Stream.MaxDeliveries)

	c.Admin.BaseURL = getenv("ADMIN_SERVICE_URL", c.Admin.BaseURL)
	c.Cart.BaseURL = getenv("CART_SERVICE_URL", c.Cart.BaseURL)

	c.Otlp.Endpoint = getenv("OTLP_ENDPOINT", c.Otlp.Endpoint)
	c.Otlp.Insecure = boolenv("OTLP_INSECURE", c.Otlp.Insecure)

	c.BatchSize = atoienv("BATCH_SIZE", c.BatchSize)
	c.HTTPTimeout = durenvms("HTTP_TIMEOUT_MS", c.HTTPTimeout)
	c.ShutdownTimeout = durenvms("SHUTDOWN_TIMEOUT_MS", c.ShutdownTimeout)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Stage {
	case StageConfig, StagePricing, StageCart:
	default:
		errs = append(errs, fmt.Errorf("stage[%s] is unknown", c.Stage))
	}

	if c.RedisURL == "" {
		errs = append(errs, fmt.Errorf("redisUrl is empty"))
	}
	if c.Stream.Name == "" {
		errs = append(errs, fmt.Errorf("stream.name is empty"))
	}
	if c.Stream.Group == "" {
		errs = append(errs, fmt.Errorf("stream.group is empty"))
	}
	if c.Stage != StageCart && c.Stream.Destination == "" {
		errs = append(errs, fmt.Errorf("stream.destination is empty"))
	}
	if c.Stream.Destination != "" && c.Stream.Destination == c.Stream.Name {
		errs = append(errs, fmt.Errorf("stream.destination equals stream.name: %s", c.Stream.Name))
	}
	if c.Stream.ReadCount <= 0 {
		errs = append(errs, fmt.Errorf("stream.readCount must be positive: %d", c.Stream.ReadCount))
	}
	if c.Stream.BlockTimeout <= 0 {
		errs = append(errs, fmt.Errorf("stream.blockTimeout must be positive: %s", c.Stream.BlockTimeout))
	}
	if c.Stream.MaxDeliveries <= 0 {
		errs = append(errs, fmt.Errorf("stream.maxDeliveries must be positive: %d", c.Stream.MaxDeliveries))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batchSize must be positive: %d", c.BatchSize))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("httpTimeout must be positive: %s", c.HTTPTimeout))
	}

	if c.Stage == StageConfig || c.Stage == StagePricing {
		if err := validURL("admin.baseUrl", c.Admin.BaseURL); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Stage == StagePricing || c.Stage == StageCart {
		if err := validURL("cart.baseUrl", c.Cart.BaseURL); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func validURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not valid: %w", name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s is not an absolute URL: %q", name, raw)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolenv(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func durenvms(key string, def time.Duration) time.Duration {
	ms := atoienv(key, -1)
	if ms < 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

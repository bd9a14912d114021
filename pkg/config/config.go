// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"sms-transactions/pkg/logging"

	"github.com/joho/godotenv"
)

// Config holds the service configuration.
type Config struct {
	// Address to listen on (e.g., ":8000")
	Address string

	// DataPath is the XML document loaded at startup
	DataPath string

	// LoadStrict turns a document load failure into a startup error instead of
	// serving an empty store
	LoadStrict bool

	// Credentials is a comma-separated list of user:secret pairs. Empty means
	// the built-in credential set.
	Credentials string

	// Realm is advertised in the WWW-Authenticate challenge
	Realm string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MaxBodyBytes caps request bodies
	MaxBodyBytes int64

	MetricsEnabled   bool
	MetricsNamespace string

	// BloomFilter guards id lookups with a bloom filter
	BloomFilter        bool
	BloomExpectedItems uint
	BloomFPRate        float64

	// Events configures the change feed. No brokers disables publishing.
	Events EventsConfig

	Logging logging.Config
}

// EventsConfig configures change event publishing.
type EventsConfig struct {
	Brokers        []string
	Topic          string
	QueueSize      int
	Workers        int
	PublishTimeout time.Duration
	CircuitTimeout time.Duration
}

// Enabled reports whether events are published anywhere.
func (c EventsConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// DefaultConfig returns the configuration used when no variables are set.
func DefaultConfig() Config {
	return Config{
		Address:            ":8000",
		DataPath:           "data/modified_sms_v2.xml",
		Realm:              "SMS Transaction API",
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		MaxBodyBytes:       1 << 20,
		MetricsEnabled:     true,
		MetricsNamespace:   "sms_api",
		BloomExpectedItems: 10000,
		BloomFPRate:        0.01,
		Events: EventsConfig{
			Topic:          "sms-transactions",
			QueueSize:      1000,
			Workers:        2,
			PublishTimeout: 5 * time.Second,
			CircuitTimeout: 30 * time.Second,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// A missing .env file is not an error
	_ = godotenv.Load()

	return FromEnv(os.LookupEnv)
}

// FromEnv builds a configuration using lookup to read variables.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	if port, ok := lookup("PORT"); ok && port != "" {
		cfg.Address = ":" + port
	}
	str("ADDRESS", &cfg.Address)
	str("DATA_PATH", &cfg.DataPath)
	boolean("LOAD_STRICT", &cfg.LoadStrict)
	str("API_CREDENTIALS", &cfg.Credentials)
	str("AUTH_REALM", &cfg.Realm)
	duration("READ_TIMEOUT", &cfg.ReadTimeout)
	duration("WRITE_TIMEOUT", &cfg.WriteTimeout)
	duration("IDLE_TIMEOUT", &cfg.IdleTimeout)
	duration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	maxBody := int(cfg.MaxBodyBytes)
	integer("MAX_BODY_BYTES", &maxBody)
	cfg.MaxBodyBytes = int64(maxBody)

	boolean("METRICS_ENABLED", &cfg.MetricsEnabled)
	str("METRICS_NAMESPACE", &cfg.MetricsNamespace)

	boolean("STORE_BLOOM_FILTER", &cfg.BloomFilter)
	expected := int(cfg.BloomExpectedItems)
	integer("BLOOM_EXPECTED_ITEMS", &expected)
	if expected > 0 {
		cfg.BloomExpectedItems = uint(expected)
	}
	if v, ok := lookup("BLOOM_FP_RATE"); ok && v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("BLOOM_FP_RATE: %w", err))
		} else {
			cfg.BloomFPRate = rate
		}
	}

	if v, ok := lookup("EVENTS_BROKERS"); ok && v != "" {
		cfg.Events.Brokers = splitList(v)
	}
	str("EVENTS_TOPIC", &cfg.Events.Topic)
	integer("EVENTS_QUEUE_SIZE", &cfg.Events.QueueSize)
	integer("EVENTS_WORKERS", &cfg.Events.Workers)
	duration("EVENTS_PUBLISH_TIMEOUT", &cfg.Events.PublishTimeout)
	duration("EVENTS_CIRCUIT_TIMEOUT", &cfg.Events.CircuitTimeout)

	cfg.Logging = logging.ConfigFromEnv(lookup)

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.Address == "" {
		errs = append(errs, errors.New("address is required"))
	}
	if c.DataPath == "" {
		errs = append(errs, errors.New("data path is required"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max body bytes must be positive"))
	}
	if c.BloomFPRate <= 0 || c.BloomFPRate >= 1 {
		errs = append(errs, fmt.Errorf("bloom false positive rate %v outside (0, 1)", c.BloomFPRate))
	}
	if c.Events.Enabled() {
		if c.Events.Topic == "" {
			errs = append(errs, errors.New("events topic is required when brokers are set"))
		}
		if c.Events.QueueSize <= 0 || c.Events.Workers <= 0 {
			errs = append(errs, errors.New("events queue size and workers must be positive"))
		}
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

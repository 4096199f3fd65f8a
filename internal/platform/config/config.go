// Package config loads process configuration from IDMASK_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string `env:"ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR"`
	AdminToken  string `env:"ADMIN_TOKEN"`
}

// Log selects the slog handler.
type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Store selects where the override snapshot lives.
type Store struct {
	Driver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	DSN    string `env:"STORE_DSN" envDefault:"file:idmask.db?_pragma=busy_timeout(5000)"`
	Slot   string `env:"STORE_SLOT" envDefault:"device_info"`
}

// RedisConfig is used when the store driver is redis.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"1"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Examples configures the example-configuration fetcher.
type Examples struct {
	URL     string        `env:"EXAMPLES_URL" envDefault:"https://www.myfakeinfo.com/mobile/get-android-device-information.php"`
	Timeout time.Duration `env:"EXAMPLES_TIMEOUT" envDefault:"30s"`
}

// Kafka is optional; with no brokers the command listener and the kafka audit
// sink stay off.
type Kafka struct {
	Brokers       []string `env:"KAFKA_BROKERS" envSeparator:","`
	CommandTopic  string   `env:"KAFKA_COMMAND_TOPIC" envDefault:"idmask.commands"`
	ResultTopic   string   `env:"KAFKA_RESULT_TOPIC" envDefault:"idmask.command-results"`
	AuditTopic    string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"idmask.audit"`
	ConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"idmask"`
}

// Enabled reports whether any broker is configured.
func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0
}

// Identity locates the host profile and the compatibility settings.
type Identity struct {
	ProfilePath         string `env:"PROFILE_PATH"`
	ReadDMI             bool   `env:"READ_DMI" envDefault:"true"`
	DMIRoot             string `env:"DMI_ROOT" envDefault:"/sys/class/dmi/id"`
	TelephonyThresholds []int  `env:"TELEPHONY_THRESHOLDS" envSeparator:"," envDefault:"26,29"`
	SerialThresholds    []int  `env:"SERIAL_THRESHOLDS" envSeparator:"," envDefault:"26,29"`
	CompatTablePath     string `env:"COMPAT_TABLE_PATH"`
}

// Export configures the script export target.
type Export struct {
	Dir string `env:"EXPORT_DIR" envDefault:"."`
}

// Tracing is opt-in: no endpoint, no exporter.
type Tracing struct {
	Endpoint    string `env:"OTEL_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"idmask"`
}

// Config is the whole process configuration.
type Config struct {
	Server   Server
	Log      Log
	Store    Store
	Redis    RedisConfig
	Examples Examples
	Kafka    Kafka
	Identity Identity
	Export   Export
	Tracing  Tracing
}

// Load parses IDMASK_* variables and validates the result.
func Load() (Config, error) {
	return LoadFrom(nil)
}

// LoadFrom parses from vars instead of the process environment when vars is
// non-nil.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Prefix: "IDMASK_"}
	if vars != nil {
		opts.Environment = vars
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the settings are coherent.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if strings.TrimSpace(c.Store.DSN) == "" {
			errs = append(errs, fmt.Errorf("store driver %s requires IDMASK_STORE_DSN", c.Store.Driver))
		}
	case DriverRedis:
		if strings.TrimSpace(c.Redis.URL) == "" {
			errs = append(errs, errors.New("store driver redis requires IDMASK_REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Store.Slot == "" {
		errs = append(errs, errors.New("store slot must not be empty"))
	}
	if c.Examples.Timeout <= 0 {
		errs = append(errs, errors.New("examples timeout must be positive"))
	}
	if err := checkThresholds("telephony", c.Identity.TelephonyThresholds); err != nil {
		errs = append(errs, err)
	}
	if err := checkThresholds("serial", c.Identity.SerialThresholds); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func checkThresholds(name string, t []int) error {
	if len(t) != 2 {
		return fmt.Errorf("%s thresholds need exactly two versions, got %d", name, len(t))
	}
	if t[0] <= 0 || t[0] >= t[1] {
		return fmt.Errorf("%s thresholds must be positive and ascending, got %v", name, t)
	}
	return nil
}

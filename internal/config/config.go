// Package config loads service settings from defaults, an optional config
// file and BALANCES_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix     = "BALANCES"
	ConfigFileEnv = "BALANCES_CONFIG"
)

const (
	StoreSQLite   = "sqlite3"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

type Config struct {
	ServerPort string `mapstructure:"server_port"`

	StoreDriver string `mapstructure:"store_driver"`

	// DatabaseURL takes precedence over the DB* fields for postgres.
	DatabaseURL    string `mapstructure:"database_url"`
	DBHost         string `mapstructure:"db_host"`
	DBPort         string `mapstructure:"db_port"`
	DBUser         string `mapstructure:"db_user"`
	DBPassword     string `mapstructure:"db_password"`
	DBName         string `mapstructure:"db_name"`
	DBSSLMode      string `mapstructure:"db_sslmode"`
	DBMaxOpenConns int    `mapstructure:"db_max_open_conns"`

	SQLitePath        string        `mapstructure:"sqlite_path"`
	SQLiteBusyTimeout time.Duration `mapstructure:"sqlite_busy_timeout"`

	RedisAddr       string `mapstructure:"redis_addr"`
	RedisPassword   string `mapstructure:"redis_password"`
	RedisDB         int    `mapstructure:"redis_db"`
	RedisKeyPrefix  string `mapstructure:"redis_key_prefix"`
	RedisMaxRetries int    `mapstructure:"redis_max_retries"`

	SeedDemoAccounts bool `mapstructure:"seed_demo_accounts"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SetDefaults registers every key on v, which also makes each one visible to
// AutomaticEnv during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server_port", "8080")
	v.SetDefault("store_driver", StoreSQLite)

	v.SetDefault("database_url", "")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "password")
	v.SetDefault("db_name", "balances")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("db_max_open_conns", 25)

	v.SetDefault("sqlite_path", filepath.Join("data", "balances.db"))
	v.SetDefault("sqlite_busy_timeout", 5*time.Second)

	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_key_prefix", "balances:")
	v.SetDefault("redis_max_retries", 50)

	v.SetDefault("seed_demo_accounts", false)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("shutdown_timeout", 30*time.Second)
}

// New returns a viper instance with defaults and environment binding. A
// non-empty configFile is read as well; otherwise BALANCES_CONFIG is consulted.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		configFile = os.Getenv(ConfigFileEnv)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	return v, nil
}

// FromViper decodes and validates the settings held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads the configuration from the environment and, when set, the file
// named by BALANCES_CONFIG.
func Load() (*Config, error) {
	v, err := New("")
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreSQLite:
		switch {
		case c.SQLitePath == "":
			errs = append(errs, errors.New("sqlite_path must be set for the sqlite3 store"))
		case strings.Contains(c.SQLitePath, ":memory:") || strings.Contains(c.SQLitePath, "mode=memory"):
			// Every pooled connection would open its own empty database.
			errs = append(errs, errors.New("sqlite_path must name a file; use store_driver memory for an in-process ledger"))
		}
	case StorePostgres:
		if c.DatabaseURL == "" && c.DBHost == "" {
			errs = append(errs, errors.New("database_url or db_host must be set for the postgres store"))
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis_addr must be set for the redis store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store_driver %q (want sqlite3, postgres, redis or memory)", c.StoreDriver))
	}

	if c.RequestTimeout < 0 {
		errs = append(errs, errors.New("request_timeout must not be negative"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}

	return errors.Join(errs...)
}

// GetDBConnectionString returns the postgres URL used by both lib/pq and
// golang-migrate.
func (c *Config) GetDBConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   net.JoinHostPort(c.DBHost, c.DBPort),
		Path:   "/" + c.DBName,
	}
	if c.DBSSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.DBSSLMode}}.Encode()
	}
	return u.String()
}

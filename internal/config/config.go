// Package config loads the job configuration from the process environment.
//
// Values come from environment variables, optionally seeded from a dotenv
// file. The connection settings (user, password, host, port, kind) are shared
// by both stores; each side then picks its database name, and optionally its
// own kind or a complete DSN, from variables named after a configurable
// prefix:
//
//	DB_USER=etl DB_PASS=secret DB_HOST=localhost DB_PORT=5432
//	SOURCE_PREFIX=DBS   DBS_NAME=olist          (source database)
//	TARGET_PREFIX=DBT   DBT_NAME=olist_dw       (target database)
//	DBT_KIND=sqlite     DBT_DSN=/var/lib/olist/dw.db
//
// Load builds the Config once at startup; callers pass it explicitly.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded when present and no explicit file is given.
const DefaultEnvFile = ".env"

// Config is the complete job configuration.
type Config struct {
	DB DBConfig

	SourcePrefix string `env:"SOURCE_PREFIX" env-default:"DBS" env-description:"prefix of the source database variables"`
	TargetPrefix string `env:"TARGET_PREFIX" env-default:"DBT" env-description:"prefix of the target database variables"`

	// Source and Target are resolved from the prefixed variables.
	Source Side
	Target Side

	Job         string `env:"JOB_NAME" env-default:"olist_etl"`
	CatalogMode string `env:"CATALOG_MODE" env-default:"lazy" env-description:"lazy or eager"`
	BatchSize   int    `env:"BATCH_SIZE" env-default:"5000"`
	StrictExit  bool   `env:"STRICT_EXIT" env-default:"true" env-description:"exit 1 when the job fails"`

	Log     LogConfig
	Metrics MetricsConfig
}

// DBConfig holds the connection settings shared by both stores.
type DBConfig struct {
	User     string `env:"DB_USER"`
	Password string `env:"DB_PASS"`
	Host     string `env:"DB_HOST"`
	Port     int    `env:"DB_PORT" env-description:"server port; defaults to 5432, 1433 or 3306 by store kind"`
	Kind     string `env:"DB_KIND" env-default:"postgres" env-description:"postgres, mssql, mysql or sqlite"`
}

// Side is one store, source or target.
type Side struct {
	Prefix string
	Name   string // <prefix>_NAME
	Kind   string // <prefix>_KIND, else DB_KIND
	DSN    string // <prefix>_DSN, overrides everything else
}

// LogConfig configures the persistent log.
type LogConfig struct {
	File  string `env:"LOG_FILE" env-default:"olist.log"`
	Level string `env:"LOG_LEVEL" env-default:"debug"`
}

// MetricsConfig selects an optional metrics backend.
type MetricsConfig struct {
	Backend        string `env:"METRICS_BACKEND" env-default:"none" env-description:"none, pushgateway or datadog"`
	PushgatewayURL string `env:"PUSHGATEWAY_URL"`
	DatadogAddr    string `env:"DD_AGENT_ADDR"`
}

// Load reads the configuration. envFile, when non-empty, must exist and is
// loaded before the environment is read; otherwise DefaultEnvFile is loaded
// if present. Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	switch {
	case envFile != "":
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	default:
		if _, err := os.Stat(DefaultEnvFile); err == nil {
			if err := godotenv.Load(DefaultEnvFile); err != nil {
				return nil, fmt.Errorf("config: load %s: %w", DefaultEnvFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: stat %s: %w", DefaultEnvFile, err)
		}
	}

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	cfg.Source = resolveSide(cfg.SourcePrefix, cfg.DB.Kind)
	cfg.Target = resolveSide(cfg.TargetPrefix, cfg.DB.Kind)
	return cfg, nil
}

// resolveSide reads the prefix-named variables of one side. The names depend
// on runtime prefixes, so they cannot be expressed as struct tags.
func resolveSide(prefix, defaultKind string) Side {
	s := Side{
		Prefix: prefix,
		Name:   strings.TrimSpace(os.Getenv(prefix + "_NAME")),
		Kind:   strings.ToLower(strings.TrimSpace(os.Getenv(prefix + "_KIND"))),
		DSN:    strings.TrimSpace(os.Getenv(prefix + "_DSN")),
	}
	if s.Kind == "" {
		s.Kind = strings.ToLower(strings.TrimSpace(defaultKind))
	}
	return s
}

// Usage describes the environment variables Load reads.
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return err.Error()
	}
	return text + "\n  <SOURCE_PREFIX|TARGET_PREFIX>_NAME string\n    \tdatabase name" +
		"\n  <SOURCE_PREFIX|TARGET_PREFIX>_KIND string\n    \tstore kind override" +
		"\n  <SOURCE_PREFIX|TARGET_PREFIX>_DSN string\n    \tfull connection string override"
}

// DefaultPort is the server port used for kind when DB_PORT is unset.
func DefaultPort(kind string) int {
	switch kind {
	case "postgres":
		return 5432
	case "mssql":
		return 1433
	case "mysql":
		return 3306
	}
	return 0
}

// DSN renders the connection string for s. An unset DB_PORT takes the
// default port of s.Kind.
func (c *Config) DSN(s Side) (string, error) {
	if s.DSN != "" {
		return s.DSN, nil
	}
	if s.Name == "" {
		return "", fmt.Errorf("config: %s_NAME is not set", s.Prefix)
	}
	port := c.DB.Port
	if port == 0 {
		port = DefaultPort(s.Kind)
	}
	host := net.JoinHostPort(c.DB.Host, strconv.Itoa(port))

	switch s.Kind {
	case "postgres":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.DB.User, c.DB.Password),
			Host:     host,
			Path:     "/" + s.Name,
			RawQuery: "sslmode=disable&pool_max_conns=1",
		}
		return u.String(), nil
	case "mssql":
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(c.DB.User, c.DB.Password),
			Host:     host,
			RawQuery: url.Values{"database": {s.Name}}.Encode(),
		}
		return u.String(), nil
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = c.DB.User
		mc.Passwd = c.DB.Password
		mc.Net = "tcp"
		mc.Addr = host
		mc.DBName = s.Name
		mc.ParseTime = true
		mc.Loc = time.UTC
		return mc.FormatDSN(), nil
	case "sqlite":
		return s.Name, nil
	default:
		return "", fmt.Errorf("config: %s: unknown kind %q", s.Prefix, s.Kind)
	}
}

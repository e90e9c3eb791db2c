// Package config loads service configuration from the environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env            string   `yaml:"env" env:"ENV" env-default:"local"`
	HTTP           HTTP     `yaml:"http"`
	Postgres       Postgres `yaml:"postgres"`
	Redis          Redis    `yaml:"redis"`
	Auth           Auth     `yaml:"auth"`
	Log            Log      `yaml:"log"`
	Notify         Notify   `yaml:"notify"`
	Tracing        Tracing  `yaml:"tracing"`
	MigrationsPath string   `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
}

type HTTP struct {
	Port         string        `yaml:"port" env:"PORT" env-default:"8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

// Postgres holds connection settings, with local-development defaults.
type Postgres struct {
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password string `yaml:"password" env:"DB_PASSWORD" env-default:"postgres"`
	DBName   string `yaml:"dbname" env:"DB_NAME" env-default:"eventreservations"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	MaxConns int32  `yaml:"max_conns" env:"DB_MAX_CONNS" env-default:"20"`
	MinConns int32  `yaml:"min_conns" env:"DB_MIN_CONNS" env-default:"2"`
}

// URL builds a postgres:// connection string usable by both pgx and migrate.
func (p Postgres) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     fmt.Sprintf("%s:%s", p.Host, p.Port),
		Path:     p.DBName,
		RawQuery: url.Values{"sslmode": []string{p.SSLMode}}.Encode(),
	}
	return u.String()
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// Notify tunes the post-commit notification dispatcher.
type Notify struct {
	QueueSize      int           `yaml:"queue_size" env:"NOTIFY_QUEUE_SIZE" env-default:"1024"`
	PublishTimeout time.Duration `yaml:"publish_timeout" env:"NOTIFY_PUBLISH_TIMEOUT" env-default:"2s"`
	EnqueueTimeout time.Duration `yaml:"enqueue_timeout" env:"NOTIFY_ENQUEUE_TIMEOUT" env-default:"250ms"`
}

// Tracing is disabled when Endpoint is empty.
type Tracing struct {
	Endpoint    string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"event-reservations"`
}

// ErrMissingJWTSecret is returned when no token secret is configured.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

// Load reads .env (if any), then CONFIG_PATH (if it exists), then the
// environment, which always wins.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	path := os.Getenv("CONFIG_PATH")
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	return &cfg, nil
}

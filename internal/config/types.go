package config

import (
	"errors"
	"fmt"
	"time"
)

type Config struct {
	Server   ServerConfig  `json:"server"`
	Webhook  WebhookConfig `json:"webhook"`
	Ingest   IngestConfig  `json:"ingest"`
	Worker   WorkerConfig  `json:"worker"`
	Database Database      `json:"database"`
	Redis    RedisConfig   `json:"redis"`
	Blob     BlobConfig    `json:"blob"`
	CORS     CORSConfig    `json:"cors"`
	Sentry   SentryConfig  `json:"sentry"`
}

type ServerConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type WebhookConfig struct {
	// Secret, when set, must match the inbound Authorization bearer token.
	Secret string `json:"secret"`
	// DefaultBucket backstops events that carry only an object name.
	DefaultBucket string `json:"default_bucket"`
	// ThresholdBytes: objects at or below this size are skipped.
	ThresholdBytes int64 `json:"threshold_bytes"`
}

type IngestConfig struct {
	MaxRequestBodyMB int64 `json:"max_request_body"`
	// KeyPrefix for synthesized object keys on the manual path.
	KeyPrefix string `json:"key_prefix"`
}

type WorkerConfig struct {
	URL     string        `json:"url"`
	Token   string        `json:"token"`
	Timeout time.Duration `json:"timeout"` // seconds
}

type Database struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	Password            string        `json:"password"`
	DatabaseID          int           `json:"database_id"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
	DialTimeout         time.Duration `json:"dial_timeout"`
	ReadTimeout         time.Duration `json:"read_timeout"`
	WriteTimeout        time.Duration `json:"write_timeout"`
	PoolSize            int           `json:"pool_size"`
	Nodes               []RedisNode   `json:"nodes"`
}

type RedisNode struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (n RedisNode) Addr() string { return fmt.Sprintf("%s:%d", n.Host, n.Port) }

type BlobConfig struct {
	AccountID   string `json:"account_id"`
	AccessKeyID string `json:"access_key_id"`
	SecretKey   string `json:"secret_key"`
	Endpoint    string `json:"endpoint"`
}

type CORSConfig struct {
	// AllowedOrigins holds exact origins plus "*.suffix" wildcard entries.
	AllowedOrigins []string `json:"allowed_origins"`
}

type SentryConfig struct {
	SentryDSN   string `json:"sentry_dsn"`
	Environment string `json:"environment"`
}

// Validate rejects a config that would make every request fail later.
func (c *Config) Validate() error {
	if c.Worker.URL == "" {
		return errors.New("config: worker.url is required")
	}
	if c.Database.DSN == "" {
		return errors.New("config: database.dsn is required")
	}
	if c.Webhook.ThresholdBytes <= 0 {
		return errors.New("config: webhook.threshold_bytes must be positive")
	}
	return nil
}

// WorkerTimeout returns the outbound worker deadline, defaulting to 120s.
func (c *Config) WorkerTimeout() time.Duration {
	if c.Worker.Timeout <= 0 {
		return 120 * time.Second
	}
	return c.Worker.Timeout * time.Second
}

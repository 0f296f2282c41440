package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends for object ACL metadata.
const (
	StorageNone = "none"
	StorageGCS  = "gcs"
	StorageS3   = "s3"
)

// Config holds application configuration.
type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string
	Timezone  string
	BaseURL   string

	SessionTTL        time.Duration
	SchedulerInterval time.Duration
	SchedulerWorkers  int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	StorageBackend string
	StorageBucket  string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	GCSCredentials string
	AllowedOrigins []string
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Port:            get("FRISFOCUS_PORT", "8080"),
		DBPath:          get("FRISFOCUS_DB_PATH", "frisfocus.db"),
		LogLevel:        get("FRISFOCUS_LOG_LEVEL", "info"),
		LogFormat:       get("FRISFOCUS_LOG_FORMAT", "text"),
		Timezone:        get("FRISFOCUS_TIMEZONE", "UTC"),
		BaseURL:         get("FRISFOCUS_BASE_URL", "http://localhost:8080"),
		RedisAddr:       get("FRISFOCUS_REDIS_ADDR", ""),
		RedisPassword:   get("FRISFOCUS_REDIS_PASSWORD", ""),
		VAPIDPublicKey:  get("FRISFOCUS_VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: get("FRISFOCUS_VAPID_PRIVATE_KEY", ""),
		VAPIDSubscriber: get("FRISFOCUS_VAPID_SUBSCRIBER", "mailto:noreply@frisfocus.app"),
		StorageBackend:  strings.ToLower(get("FRISFOCUS_STORAGE_BACKEND", StorageNone)),
		StorageBucket:   get("FRISFOCUS_STORAGE_BUCKET", ""),
		S3Region:        get("FRISFOCUS_S3_REGION", "us-east-1"),
		S3Endpoint:      get("FRISFOCUS_S3_ENDPOINT", ""),
		S3AccessKey:     get("FRISFOCUS_S3_ACCESS_KEY", ""),
		S3SecretKey:     get("FRISFOCUS_S3_SECRET_KEY", ""),
		GCSCredentials:  get("FRISFOCUS_GCS_CREDENTIALS", ""),
	}

	var err error
	if cfg.SessionTTL, err = duration(get("FRISFOCUS_SESSION_TTL", "720h")); err != nil {
		return nil, fmt.Errorf("FRISFOCUS_SESSION_TTL: %w", err)
	}
	if cfg.SchedulerInterval, err = duration(get("FRISFOCUS_SCHEDULER_INTERVAL", "1m")); err != nil {
		return nil, fmt.Errorf("FRISFOCUS_SCHEDULER_INTERVAL: %w", err)
	}
	if cfg.SchedulerWorkers, err = strconv.Atoi(get("FRISFOCUS_SCHEDULER_WORKERS", "4")); err != nil {
		return nil, fmt.Errorf("FRISFOCUS_SCHEDULER_WORKERS: %w", err)
	}
	if cfg.RedisDB, err = strconv.Atoi(get("FRISFOCUS_REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("FRISFOCUS_REDIS_DB: %w", err)
	}
	if origins := get("FRISFOCUS_ALLOWED_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	return cfg, nil
}

func duration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}

// Validate checks option combinations.
func (c *Config) Validate() error {
	var errs []error

	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("port %q is not a number", c.Port))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		errs = append(errs, errors.New("VAPID public and private keys must be set together"))
	}
	if c.SchedulerWorkers < 1 {
		errs = append(errs, errors.New("scheduler workers must be at least 1"))
	}

	switch c.StorageBackend {
	case StorageNone:
	case StorageGCS:
		if c.StorageBucket == "" {
			errs = append(errs, errors.New("gcs storage requires a bucket"))
		}
	case StorageS3:
		if c.StorageBucket == "" {
			errs = append(errs, errors.New("s3 storage requires a bucket"))
		}
		if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
			errs = append(errs, errors.New("s3 access and secret keys must be set together"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.StorageBackend))
	}

	return errors.Join(errs...)
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

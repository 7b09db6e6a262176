package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

const (
	DefaultValidFraction = 0.01
	DefaultDest          = "."
	DefaultExt           = "flac"
	DefaultSeed          = 42
	// DefaultMaxFiles caps how many discovered files get measured; the rest are dropped.
	DefaultMaxFiles = 80_000
	DefaultWorkers  = 6
)

// Config stores the configuration of one manifest run.
// Values come from defaults, then the environment (.env included), then CLI flags.
type Config struct {
	Root            string
	ValidFraction   float64
	Dest            string
	Ext             string // without the leading dot
	Seed            int64
	PathMustContain string // empty means no filter

	MaxFiles     int
	Workers      int
	ProbeTimeout time.Duration // 0 disables the per-file timeout
	FFprobePath  string

	LogLevel string
	LogFile  string

	// Redis 帧数缓存（--cache）
	Cache         bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// MinIO 清单上传（--upload）
	Upload         bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string
	MinioPrefix    string
}

// Error is a configuration validation failure (ConfigError).
type Error struct {
	Field string
	Value any
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s %v: %v", e.Field, e.Value, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsConfigError reports whether err (or anything it wraps) is a *Error.
func IsConfigError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
// godotenv.Load() never overrides variables that are already set.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env.
func FromEnv() *Config {
	return &Config{
		ValidFraction: DefaultValidFraction,
		Dest:          DefaultDest,
		Ext:           DefaultExt,
		Seed:          DefaultSeed,

		MaxFiles:     getEnvInt("MANIFEST_MAX_FILES", DefaultMaxFiles),
		Workers:      getEnvInt("MANIFEST_WORKERS", DefaultWorkers),
		ProbeTimeout: getEnvDuration("MANIFEST_PROBE_TIMEOUT", 0),
		FFprobePath:  getEnv("FFPROBE_PATH", "ffprobe"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "manifests"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", ""),
		MinioPrefix:    getEnv("MINIO_PREFIX", ""),
	}
}

// Validate checks flag values before any I/O happens.
// A leading dot on Ext is tolerated and stripped.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return &Error{Field: "root", Value: c.Root, Err: errors.New("must not be empty")}
	}
	if math.IsNaN(c.ValidFraction) || c.ValidFraction < 0 || c.ValidFraction > 1 {
		return &Error{Field: "valid-percent", Value: c.ValidFraction, Err: errors.New("must be between 0 and 1")}
	}
	c.Ext = strings.TrimPrefix(strings.TrimSpace(c.Ext), ".")
	if c.Ext == "" {
		return &Error{Field: "ext", Value: c.Ext, Err: errors.New("must not be empty")}
	}
	if strings.TrimSpace(c.Dest) == "" {
		return &Error{Field: "dest", Value: c.Dest, Err: errors.New("must not be empty")}
	}
	if c.Workers < 1 {
		return &Error{Field: "workers", Value: c.Workers, Err: errors.New("must be at least 1")}
	}
	if c.MaxFiles < 1 {
		return &Error{Field: "max-files", Value: c.MaxFiles, Err: errors.New("must be at least 1")}
	}
	if c.ProbeTimeout < 0 {
		return &Error{Field: "probe-timeout", Value: c.ProbeTimeout, Err: errors.New("must not be negative")}
	}
	if c.Upload && c.MinioEndpoint == "" {
		return &Error{Field: "upload", Value: c.Upload, Err: errors.New("MINIO_ENDPOINT is not set")}
	}
	return nil
}

// WriteValid reports whether valid.tsv should be produced at all.
func (c *Config) WriteValid() bool {
	return c.ValidFraction > 0
}

// RedisAddr returns host:port for the frame cache.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

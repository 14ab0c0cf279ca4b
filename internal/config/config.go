package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kode4food/timebox"

	"github.com/kode4food/quarry/pkg/events"
)

type (
	// Config holds configuration settings for the flow engine
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		LogLevel string

		// Stores & Archiving
		FlowStore     timebox.StoreConfig
		IndexStore    timebox.StoreConfig
		ClientIndex   RedisConfig
		ArchiveBucket string

		// Transport
		AgentEndpoint   string
		DispatchTimeout time.Duration

		// Engine
		RequestTimeout  time.Duration
		DispatchWorkers int
		FlowCacheSize   int
		ShutdownTimeout time.Duration

		// Flows
		Interrogate InterrogateConfig
	}

	// RedisConfig locates the Redis instance backing the client index
	RedisConfig struct {
		Addr     string
		Password string
		Prefix   string
		DB       int
	}

	// InterrogateConfig holds server-side defaults for client discovery
	InterrogateConfig struct {
		CollectCloudMetadata bool
		Lightweight          bool
	}
)

const (
	DefaultRequestTimeout  = 10 * time.Minute
	DefaultDispatchTimeout = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	MaxTCPPort     = 65535
	DefaultRedisDB = 0

	DefaultRedisEndpoint       = "localhost:6379"
	DefaultRedisPrefix         = "quarry"
	DefaultClientIndexPrefix   = "quarry:clients"
	DefaultSnapshotWorkers     = 4
	DefaultSnapshotQueueSize   = 1000
	DefaultSnapshotSaveTimeout = 30 * time.Second
	DefaultCacheSize           = 4096
	DefaultDispatchWorkers     = 8
	DefaultAgentEndpoint       = "http://localhost:9090/agents/{client_id}"
	DefaultArchiveBucket       = "mem://quarry-results"

	ClientIDPlaceholder = "{client_id}"

	MaxFlowCacheSize   = 1_000_000
	MaxDispatchWorkers = 1024
	MaxRequestTimeout  = 30 * 24 * time.Hour
)

var (
	ErrInvalidAPIPort         = errors.New("invalid API port")
	ErrInvalidRequestTimeout  = errors.New("request timeout must be positive")
	ErrInvalidDispatchTimeout = errors.New(
		"dispatch timeout must be positive",
	)
	ErrInvalidDispatchWorkers = errors.New(
		"dispatch workers must be positive",
	)
	ErrInvalidAgentEndpoint = errors.New(
		"agent endpoint must contain " + ClientIDPlaceholder,
	)
	ErrArchiveBucketRequired = errors.New("archive bucket URL is required")
)

// NewDefaultConfig creates a configuration with sensible defaults for all
// engine settings, stores, and transport behavior
func NewDefaultConfig() *Config {
	return &Config{
		APIPort: DefaultAPIPort,
		APIHost: DefaultAPIHost,
		FlowStore: timebox.StoreConfig{
			Addr:         DefaultRedisEndpoint,
			Password:     "",
			DB:           DefaultRedisDB,
			Prefix:       DefaultRedisPrefix,
			WorkerCount:  DefaultSnapshotWorkers,
			MaxQueueSize: DefaultSnapshotQueueSize,
			SaveTimeout:  DefaultSnapshotSaveTimeout,
			JoinKey:      events.FlowJoinKey,
			ParseKey:     events.FlowParseKey,
		},
		IndexStore: timebox.StoreConfig{
			Addr:         DefaultRedisEndpoint,
			Password:     "",
			DB:           DefaultRedisDB,
			Prefix:       DefaultRedisPrefix,
			WorkerCount:  DefaultSnapshotWorkers,
			MaxQueueSize: DefaultSnapshotQueueSize,
			SaveTimeout:  DefaultSnapshotSaveTimeout,
			TrimEvents:   true,
		},
		ClientIndex: RedisConfig{
			Addr:   DefaultRedisEndpoint,
			DB:     DefaultRedisDB,
			Prefix: DefaultClientIndexPrefix,
		},
		ArchiveBucket:   DefaultArchiveBucket,
		AgentEndpoint:   DefaultAgentEndpoint,
		DispatchTimeout: DefaultDispatchTimeout,
		RequestTimeout:  DefaultRequestTimeout,
		DispatchWorkers: DefaultDispatchWorkers,
		FlowCacheSize:   DefaultCacheSize,
		ShutdownTimeout: DefaultShutdownTimeout,
		LogLevel:        "info",
		Interrogate: InterrogateConfig{
			CollectCloudMetadata: true,
		},
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed.
func (c *Config) LoadFromEnv() error {
	LoadStoreConfigFromEnv(&c.FlowStore, "FLOW")
	LoadStoreConfigFromEnv(&c.IndexStore, "INDEX")
	loadRedisConfigFromEnv(&c.ClientIndex, "CLIENT_INDEX")

	if apiHost := os.Getenv("API_HOST"); apiHost != "" {
		c.APIHost = apiHost
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if endpoint := os.Getenv("AGENT_ENDPOINT"); endpoint != "" {
		c.AgentEndpoint = endpoint
	}
	if bucket := os.Getenv("ARCHIVE_BUCKET_URL"); bucket != "" {
		c.ArchiveBucket = bucket
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"FLOW_CACHE_SIZE", &c.FlowCacheSize, 0, MaxFlowCacheSize,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"DISPATCH_WORKERS", &c.DispatchWorkers, 0, MaxDispatchWorkers,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"REQUEST_TIMEOUT", &c.RequestTimeout, MaxRequestTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"DISPATCH_TIMEOUT", &c.DispatchTimeout, MaxRequestTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvDuration(
		"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout, MaxRequestTimeout,
	); err != nil {
		return err
	}

	if err := loadEnvBool(
		"INTERROGATE_CLOUD_METADATA", &c.Interrogate.CollectCloudMetadata,
	); err != nil {
		return err
	}
	return loadEnvBool(
		"INTERROGATE_LIGHTWEIGHT", &c.Interrogate.Lightweight,
	)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidRequestTimeout
	}

	if c.DispatchTimeout <= 0 {
		return ErrInvalidDispatchTimeout
	}

	if c.DispatchWorkers <= 0 {
		return ErrInvalidDispatchWorkers
	}

	if !strings.Contains(c.AgentEndpoint, ClientIDPlaceholder) {
		return fmt.Errorf("%w: %s", ErrInvalidAgentEndpoint, c.AgentEndpoint)
	}

	if c.ArchiveBucket == "" {
		return ErrArchiveBucketRequired
	}

	return nil
}

// LoadStoreConfigFromEnv loads Redis store configuration from environment
// variables with the given prefix (e.g., "FLOW" or "INDEX")
func LoadStoreConfigFromEnv(s *timebox.StoreConfig, prefix string) {
	if addr := os.Getenv(prefix + "_REDIS_ADDR"); addr != "" {
		s.Addr = addr
	}
	if password := os.Getenv(prefix + "_REDIS_PASSWORD"); password != "" {
		s.Password = password
	}
	if dbStr := os.Getenv(prefix + "_REDIS_DB"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err == nil {
			s.DB = db
		}
	}
	if envPrefix := os.Getenv(prefix + "_REDIS_PREFIX"); envPrefix != "" {
		s.Prefix = envPrefix
	}
	if envCount := os.Getenv(prefix + "_SNAPSHOT_WORKERS"); envCount != "" {
		if wc, err := strconv.Atoi(envCount); err == nil && wc >= 0 {
			s.WorkerCount = wc
		}
	}
}

func loadRedisConfigFromEnv(r *RedisConfig, prefix string) {
	if addr := os.Getenv(prefix + "_REDIS_ADDR"); addr != "" {
		r.Addr = addr
	}
	if password := os.Getenv(prefix + "_REDIS_PASSWORD"); password != "" {
		r.Password = password
	}
	if dbStr := os.Getenv(prefix + "_REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			r.DB = db
		}
	}
	if envPrefix := os.Getenv(prefix + "_REDIS_PREFIX"); envPrefix != "" {
		r.Prefix = envPrefix
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if
// the value cannot be parsed or falls outside the valid range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

func loadEnvDuration(key string, dst *time.Duration, max time.Duration) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	if d <= 0 || d > max {
		return fmt.Errorf("invalid %s: %s out of range (0, %s]", key, d, max)
	}
	*dst = d
	return nil
}

func loadEnvBool(key string, dst *bool) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	*dst = b
	return nil
}

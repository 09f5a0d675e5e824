package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/gotrs-io/eventclone/internal/cache"
	"github.com/gotrs-io/eventclone/internal/clone"
	"github.com/gotrs-io/eventclone/internal/database"
	"github.com/gotrs-io/eventclone/internal/storage"
)

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
)

// EnvPrefix is the prefix of environment overrides, e.g. EVENTCLONE_WORKER_COUNT.
const EnvPrefix = "EVENTCLONE"

// Config represents the application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Clone       CloneConfig       `mapstructure:"clone"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type AppConfig struct {
	Name  string `mapstructure:"name"`
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	StatusTTL   time.Duration `mapstructure:"status_ttl"`
	Compression bool          `mapstructure:"compression"`
	Channel     string        `mapstructure:"channel"`
}

type StorageConfig struct {
	Type     string `mapstructure:"type"`
	BasePath string `mapstructure:"base_path"`
	S3       struct {
		Bucket    string `mapstructure:"bucket"`
		Region    string `mapstructure:"region"`
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		PathStyle bool   `mapstructure:"path_style"`
	} `mapstructure:"s3"`
}

type CloneConfig struct {
	StepConcurrency int `mapstructure:"step_concurrency"`
	Retry           struct {
		MaxAttempts     int           `mapstructure:"max_attempts"`
		InitialInterval time.Duration `mapstructure:"initial_interval"`
		MaxInterval     time.Duration `mapstructure:"max_interval"`
	} `mapstructure:"retry"`
}

type WorkerConfig struct {
	Count        int           `mapstructure:"count"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	LeaseTTL     time.Duration `mapstructure:"lease_ttl"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

type MaintenanceConfig struct {
	LeaseReaperSchedule       string        `mapstructure:"lease_reaper_schedule"`
	IdentityRetentionSchedule string        `mapstructure:"identity_retention_schedule"`
	IdentityRetention         time.Duration `mapstructure:"identity_retention"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "eventclone")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", false)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.key_prefix", "eventclone:")
	v.SetDefault("redis.status_ttl", 10*time.Second)
	v.SetDefault("redis.compression", true)
	v.SetDefault("redis.channel", "eventclone:jobs")

	v.SetDefault("storage.type", "fs")
	v.SetDefault("storage.base_path", "./data/assets")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.path_style", false)

	v.SetDefault("clone.step_concurrency", 1)
	v.SetDefault("clone.retry.max_attempts", 3)
	v.SetDefault("clone.retry.initial_interval", 200*time.Millisecond)
	v.SetDefault("clone.retry.max_interval", 5*time.Second)

	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.poll_interval", 2*time.Second)
	v.SetDefault("worker.lease_ttl", 30*time.Second)
	v.SetDefault("worker.max_attempts", 3)

	v.SetDefault("maintenance.lease_reaper_schedule", "*/30 * * * * *")
	v.SetDefault("maintenance.identity_retention_schedule", "0 17 * * * *")
	v.SetDefault("maintenance.identity_retention", 14*24*time.Hour)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads config.yaml from configPath (optional), applies environment
// overrides and watches the file for changes.
func Load(configPath string) error {
	var err error
	once.Do(func() {
		v := newViper()
		v.SetConfigName("config")
		v.AddConfigPath(configPath)
		if rerr := v.ReadInConfig(); rerr != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(rerr, &notFound) {
				err = fmt.Errorf("failed to read config: %w", rerr)
				return
			}
		}

		var loaded *Config
		if loaded, err = decode(v); err != nil {
			return
		}
		mu.Lock()
		cfg = loaded
		mu.Unlock()

		if v.ConfigFileUsed() == "" {
			return
		}
		v.OnConfigChange(func(e fsnotify.Event) {
			log.Printf("[CONFIG] Config file changed: %s", e.Name)
			newCfg, err := decode(v)
			if err != nil {
				log.Printf("[CONFIG] Failed to reload config: %v", err)
				return
			}
			mu.Lock()
			cfg = newCfg
			mu.Unlock()
			log.Println("[CONFIG] Configuration reloaded successfully")
		})
		v.WatchConfig()
	})
	return err
}

// LoadFromFile loads configuration from a specific file without watching it.
// An empty path loads defaults and environment overrides only.
func LoadFromFile(configFile string) (*Config, error) {
	v := newViper()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	loaded, err := decode(v)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	cfg = loaded
	mu.Unlock()
	return loaded, nil
}

// Get returns the current configuration (thread-safe)
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Validate checks driver names, worker counts and durations.
func (c *Config) Validate() error {
	var problems []string
	if _, err := database.NormalizeDriver(c.Database.Driver); err != nil {
		problems = append(problems, err.Error())
	}
	sc := c.StorageConfig()
	if err := sc.Validate(); err != nil {
		problems = append(problems, "storage: "+err.Error())
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Worker.Count < 1 {
		problems = append(problems, "worker.count must be at least 1")
	}
	if c.Worker.MaxAttempts < 1 {
		problems = append(problems, "worker.max_attempts must be at least 1")
	}
	if c.Worker.LeaseTTL < time.Second {
		problems = append(problems, "worker.lease_ttl must be at least 1s")
	}
	if c.Worker.PollInterval <= 0 {
		problems = append(problems, "worker.poll_interval must be positive")
	}
	if c.Clone.StepConcurrency < 1 {
		problems = append(problems, "clone.step_concurrency must be at least 1")
	}
	if c.Clone.Retry.MaxAttempts < 1 {
		problems = append(problems, "clone.retry.max_attempts must be at least 1")
	}
	if c.Clone.Retry.InitialInterval <= 0 || c.Clone.Retry.MaxInterval < c.Clone.Retry.InitialInterval {
		problems = append(problems, "clone.retry intervals must be positive with max_interval >= initial_interval")
	}
	if c.Maintenance.IdentityRetention < 0 {
		problems = append(problems, "maintenance.identity_retention must not be negative")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		problems = append(problems, "redis.addr is required when redis is enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

// GetServerAddr returns the server listen address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction returns true if running in production mode
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// DatabaseOptions converts the database section for database.Open.
func (c *Config) DatabaseOptions() database.Options {
	return database.Options{
		Driver:          c.Database.Driver,
		DSN:             c.Database.DSN,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
	}
}

// StorageConfig converts the storage section for storage.New.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Type:     c.Storage.Type,
		BasePath: c.Storage.BasePath,
		S3: storage.S3Config{
			Bucket:    c.Storage.S3.Bucket,
			Region:    c.Storage.S3.Region,
			Endpoint:  c.Storage.S3.Endpoint,
			AccessKey: c.Storage.S3.AccessKey,
			SecretKey: c.Storage.S3.SecretKey,
			PathStyle: c.Storage.S3.PathStyle,
		},
	}
}

// RedisOptions converts the redis section for the cache package.
func (c *Config) RedisOptions() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:        c.Redis.Addr,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		PoolSize:    c.Redis.PoolSize,
		KeyPrefix:   c.Redis.KeyPrefix,
		TTL:         c.Redis.StatusTTL,
		Compression: c.Redis.Compression,
		Channel:     c.Redis.Channel,
	}
}

// RetryPolicy converts the clone.retry section.
func (c *Config) RetryPolicy() clone.RetryPolicy {
	return clone.RetryPolicy{
		MaxAttempts:     c.Clone.Retry.MaxAttempts,
		InitialInterval: c.Clone.Retry.InitialInterval,
		MaxInterval:     c.Clone.Retry.MaxInterval,
	}
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/gilchrisn/graph-bundling-service/pkg/bundling"
)

// EnvPrefix prefixes every environment override, e.g. BUNDLER_SERVER_ADDRESS
const EnvPrefix = "BUNDLER"

type Config struct {
	Server   ServerConfig
	Jobs     JobConfig
	Storage  StorageConfig
	Cache    CacheConfig
	Logging  LoggingConfig
	Bundling bundling.Config
}

type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type JobConfig struct {
	MaxWorkers      int
	JobTimeout      time.Duration
	CleanupInterval time.Duration
	ResultTTL       time.Duration
}

type StorageConfig struct {
	DatabasePath  string
	MaxUploadSize int64
}

type CacheConfig struct {
	RedisURL   string
	TTL        time.Duration
	MaxEntries int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")

	v.SetDefault("jobs.max_workers", 4)
	v.SetDefault("jobs.job_timeout", "10m")
	v.SetDefault("jobs.cleanup_interval", "5m")
	v.SetDefault("jobs.result_ttl", "1h")

	v.SetDefault("storage.database_path", "bundler.db")
	v.SetDefault("storage.max_upload_size", 100*1024*1024) // 100MB

	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.max_entries", 256)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads .env (if present), the optional file named by BUNDLER_CONFIG
// and BUNDLER_* environment variables, in increasing precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadFile(os.Getenv(EnvPrefix + "_CONFIG"))
}

// LoadFile is Load without the .env step; an empty path skips the file
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bv := bundling.NewViperConfig()
	bv.BindEnv(EnvPrefix)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := bv.LoadFromFile(path); err != nil {
			return nil, fmt.Errorf("failed to read bundling config: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Address: v.GetString("server.address"),
		},
		Jobs: JobConfig{
			MaxWorkers: v.GetInt("jobs.max_workers"),
		},
		Storage: StorageConfig{
			DatabasePath:  v.GetString("storage.database_path"),
			MaxUploadSize: v.GetInt64("storage.max_upload_size"),
		},
		Cache: CacheConfig{
			RedisURL:   v.GetString("cache.redis_url"),
			MaxEntries: v.GetInt("cache.max_entries"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Bundling: bv.Config(),
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"server.read_timeout", &cfg.Server.ReadTimeout},
		{"server.write_timeout", &cfg.Server.WriteTimeout},
		{"jobs.job_timeout", &cfg.Jobs.JobTimeout},
		{"jobs.cleanup_interval", &cfg.Jobs.CleanupInterval},
		{"jobs.result_ttl", &cfg.Jobs.ResultTTL},
		{"cache.ttl", &cfg.Cache.TTL},
	}
	for _, d := range durations {
		raw := v.GetString(d.key)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid duration for %s: %q", d.key, raw)
		}
		*d.dst = parsed
	}

	if cfg.Jobs.MaxWorkers <= 0 {
		return nil, fmt.Errorf("jobs.max_workers must be positive, got %d", cfg.Jobs.MaxWorkers)
	}
	if err := cfg.Bundling.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SetupLogging configures the global zerolog logger
func SetupLogging(cfg LoggingConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return nil
}

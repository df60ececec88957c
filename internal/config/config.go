package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
}

type ServerConfig struct {
	Port           int        `mapstructure:"port"`
	Mode           string     `mapstructure:"mode"`
	MaxUploadBytes int64      `mapstructure:"max_upload_bytes"`
	CORS           CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// StorageConfig selects where uploaded files are kept: "local" or an
// S3-compatible bucket ("s3", "r2", "s3compatible").
type StorageConfig struct {
	Type      string `mapstructure:"type"`
	Root      string `mapstructure:"root"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

// IsLocal reports whether uploads are stored on the local filesystem.
func (s StorageConfig) IsLocal() bool {
	return s.Type == "" || s.Type == "local"
}

// QueueConfig configures the worker pool and the job store behind it.
type QueueConfig struct {
	Workers         int           `mapstructure:"workers"`
	JobStore        string        `mapstructure:"job_store"` // memory, database
	Retention       time.Duration `mapstructure:"retention"`
	StuckJobTimeout time.Duration `mapstructure:"stuck_job_timeout"`
	ReapInterval    time.Duration `mapstructure:"reap_interval"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type IngestConfig struct {
	InsertChunkSize int    `mapstructure:"insert_chunk_size"`
	DropDir         string `mapstructure:"drop_dir"`
}

func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and deployment knobs commonly injected by the platform
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("queue.workers", "QUEUE_WORKERS")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_upload_bytes", 32<<20)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/shareledger.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "shareledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.root", "./data/media")
	v.SetDefault("storage.bucket", "shareledger-uploads")

	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.job_store", "memory")
	v.SetDefault("queue.retention", 24*time.Hour)
	v.SetDefault("queue.stuck_job_timeout", 0)
	v.SetDefault("queue.reap_interval", time.Minute)

	v.SetDefault("auth.issuer", "shareledger")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("ingest.insert_chunk_size", 500)
	v.SetDefault("ingest.drop_dir", "./data/inbox")
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Queue.Workers < 1 {
		return fmt.Errorf("queue.workers must be at least 1, got %d", c.Queue.Workers)
	}
	switch c.Queue.JobStore {
	case "memory", "database":
	default:
		return fmt.Errorf("queue.job_store: unknown store %q", c.Queue.JobStore)
	}
	if c.Queue.StuckJobTimeout < 0 {
		return fmt.Errorf("queue.stuck_job_timeout must not be negative")
	}
	if c.Ingest.InsertChunkSize < 1 {
		return fmt.Errorf("ingest.insert_chunk_size must be at least 1")
	}
	if c.Server.MaxUploadBytes < 1 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	if c.Storage.IsLocal() {
		if c.Storage.Root == "" {
			return fmt.Errorf("storage.root is required for local storage")
		}
	} else if c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required for %s storage", c.Storage.Type)
	}
	return c.Database.Validate()
}

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Upload   UploadConfig
	Database DatabaseConfig
	Redis    RedisConfig
	S3       S3Config
	Worker   WorkerConfig
	Cleanup  CleanupConfig
	Log      LogConfig
}

// AppConfig describes what the upload pages display
type AppConfig struct {
	Version  string `env:"APP_VERSION" envDefault:"1.0"`
	ImageURL string `env:"APP_IMAGE_URL" envDefault:""`
}

type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type UploadConfig struct {
	// Upper bound for a whole multipart request
	MaxSize int64 `env:"UPLOAD_MAX_SIZE" envDefault:"10485760"`
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"ot2protocol"`
	Password        string        `env:"DB_PASSWORD" envDefault:"secret"`
	Name            string        `env:"DB_NAME" envDefault:"ot2protocol"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns        int           `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	AutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// MigrateDSN returns the DSN in the scheme expected by the migrate pgx/v5 driver
func (d DatabaseConfig) MigrateDSN() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type S3Config struct {
	Endpoint  string `env:"S3_ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"S3_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"S3_SECRET_KEY" envDefault:"minioadmin"`
	Bucket    string `env:"S3_BUCKET" envDefault:"protocols"`
	UseSSL    bool   `env:"S3_USE_SSL" envDefault:"false"`
}

type WorkerConfig struct {
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"10"`
}

type CleanupConfig struct {
	Enabled   bool          `env:"CLEANUP_ENABLED" envDefault:"true"`
	Interval  time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
	MaxAge    time.Duration `env:"CLEANUP_MAX_AGE" envDefault:"168h"`
	BatchSize int           `env:"CLEANUP_BATCH_SIZE" envDefault:"100"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	// json or console
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	// A missing .env file is not an error
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env        string     `yaml:"env" env:"APP_ENV" env-default:"local"`
	HTTPServer HTTPServer `yaml:"http_server"`
	Postgres   Postgres   `yaml:"postgres"`
	JWT        JWT        `yaml:"jwt"`
	Session    Session    `yaml:"session"`
	CORS       CORS       `yaml:"cors"`
	ES         ES         `yaml:"elasticsearch"`
	Minio      Minio      `yaml:"minio"`
}

type Minio struct {
	Enabled   bool   `yaml:"enabled" env:"MINIO_ENABLED" env-default:"false"`
	Endpoint  string `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:"minio:9000"`
	AccessKey string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	UseSSL    bool   `yaml:"use_ssl" env:"MINIO_USE_SSL"`
	Region    string `yaml:"region" env-default:"us-east-1"`
	// Bucket holding course logos, keyed by logo object key.
	LogoBucket BucketConfig `yaml:"logo_bucket"`
}

type BucketConfig struct {
	Name       string        `yaml:"name" env-default:"course-logos"`
	PresignTTL time.Duration `yaml:"presign_ttl" env-default:"1h"`
}

type ES struct {
	Enabled        bool     `yaml:"enabled" env:"ES_ENABLED" env-default:"false"`
	Hosts          []string `yaml:"hosts" env:"ES_HOSTS" env-separator:","`
	Index          string   `yaml:"index" env-default:"courses"`
	Username       string   `yaml:"username" env-default:"elastic"`
	Password       string   `yaml:"password" env:"ES_PASSWORD"`
	ReindexOnStart bool     `yaml:"reindex_on_start" env-default:"true"`
}

type JWT struct {
	SecretKey string        `yaml:"secret_key" env:"JWT_SECRET" env-required:"true"`
	Issuer    string        `yaml:"issuer" env-default:"chain-academy"`
	AccessTTL time.Duration `yaml:"access_token_ttl" env-default:"24h"`
}

type Session struct {
	Name     string        `yaml:"name" env-default:"chain_academy_session"`
	Secret   string        `yaml:"secret" env:"SESSION_SECRET" env-required:"true"`
	MaxAge   time.Duration `yaml:"max_age" env-default:"168h"`
	Secure   bool          `yaml:"secure" env:"SESSION_SECURE"`
	SameSite string        `yaml:"same_site" env-default:"lax"`
}

type CORS struct {
	AllowOrigins []string      `yaml:"allow_origins" env:"CORS_ALLOW_ORIGINS" env-separator:"," env-default:"http://localhost:5173"`
	MaxAge       time.Duration `yaml:"max_age" env-default:"12h"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
	Migrate  bool   `yaml:"migrate" env-default:"true"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8081"`
	Timeout         time.Duration `yaml:"timeout" env-default:"5s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
}

// Load reads the YAML file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return &cfg, nil
}

func MustLoad() *Config {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("can not read .env: %s", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("Can not read config file %s", err)
	}
	return cfg
}

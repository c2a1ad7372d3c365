package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location of the service configuration file.
const ConfigPath = "config.yaml"

// MinioConfig configures the object store used for story cover images.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"useSSL"`
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	// BaseURL is the public URL of the web frontend; logout redirects and
	// the billing portal return URL are built from it.
	BaseURL string `yaml:"baseURL"`

	DatabaseURL string `yaml:"databaseURL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	JWTSecret         string `yaml:"jwtSecret"`
	SessionTTL        string `yaml:"sessionTTL"`
	SessionCookieName string `yaml:"sessionCookieName"`

	GenerationCost int    `yaml:"generationCost"`
	AIBaseURL      string `yaml:"aiBaseURL"`
	AIAPIKey       string `yaml:"aiAPIKey"`
	AIModel        string `yaml:"aiModel"`

	StripeSecretKey string `yaml:"stripeSecretKey"`

	ImageOriginURL string `yaml:"imageOriginURL"`

	Minio MinioConfig `yaml:"minio"`

	LoginRateLimitPerMinute    int `yaml:"loginRateLimitPerMinute"`
	GenerateRateLimitPerMinute int `yaml:"generateRateLimitPerMinute"`
}

// Load reads config from path (defaults to config.yaml) and applies
// environment overrides for deploy-time values and secrets.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		cfg.BaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("AI_BASE_URL"); v != "" {
		cfg.AIBaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("AI_API_KEY"); v != "" {
		cfg.AIAPIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("AI_MODEL"); v != "" {
		cfg.AIModel = strings.TrimSpace(v)
	}
	if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
		cfg.StripeSecretKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("IMAGE_ORIGIN_URL"); v != "" {
		cfg.ImageOriginURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.Minio.Endpoint = strings.TrimSpace(v)
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.Minio.SecretKey = v
	}
	if v := os.Getenv("GENERATION_COST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.GenerationCost = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return errors.New("config: baseURL is required (set in config.yaml or BASE_URL)")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: a session store is required (set jwtSecret or redisAddr)")
	}
	if strings.TrimSpace(cfg.ImageOriginURL) == "" {
		return errors.New("config: imageOriginURL is required (set in config.yaml or IMAGE_ORIGIN_URL)")
	}
	if cfg.GenerationCost < 0 {
		return errors.New("config: generationCost must be >= 0")
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.GenerateRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	return nil
}

// ParseSessionTTL parses the optional session TTL duration string.
func ParseSessionTTL(ttl string) (time.Duration, error) {
	if ttl == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(ttl)
	if err != nil {
		return 0, fmt.Errorf("invalid sessionTTL duration: %w", err)
	}
	return dur, nil
}

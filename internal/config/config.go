// Package config loads service configuration from YAML with env overrides
// for the values that differ per deployment or carry secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	AllowedOrigins []string `yaml:"allowedOrigins"`
	TrustedProxies []string `yaml:"trustedProxies"`

	Auth0Domain       string `yaml:"auth0Domain"`
	Auth0Audience     string `yaml:"auth0Audience"`
	Auth0ClientID     string `yaml:"auth0ClientId"`
	Auth0ClientSecret string `yaml:"auth0ClientSecret"`

	AIGatewayBaseURL string `yaml:"aiGatewayBaseURL"`
	AIGatewayAPIKey  string `yaml:"aiGatewayApiKey"`
	TitleModel       string `yaml:"titleModel"`

	TranscriptAPIBaseURL string `yaml:"transcriptApiBaseURL"`
	TranscriptAPIKey     string `yaml:"transcriptApiKey"`

	ServiceTokenSecret string `yaml:"serviceTokenSecret"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	ChatRateLimitPerMinute       int `yaml:"chatRateLimitPerMinute"`
	TranscriptRateLimitPerMinute int `yaml:"transcriptRateLimitPerMinute"`
}

// Load reads config from path (defaults to config.yaml) and applies env
// overrides. Secrets are expected via env in production.
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
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
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
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("AUTH0_DOMAIN"); v != "" {
		cfg.Auth0Domain = strings.TrimSpace(v)
	}
	if v := os.Getenv("AUTH0_AUDIENCE"); v != "" {
		cfg.Auth0Audience = strings.TrimSpace(v)
	}
	if v := os.Getenv("AUTH0_CLIENT_ID"); v != "" {
		cfg.Auth0ClientID = strings.TrimSpace(v)
	}
	if v := os.Getenv("AUTH0_CLIENT_SECRET"); v != "" {
		cfg.Auth0ClientSecret = strings.TrimSpace(v)
	}
	if v := os.Getenv("AI_GATEWAY_BASE_URL"); v != "" {
		cfg.AIGatewayBaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("AI_GATEWAY_API_KEY"); v != "" {
		cfg.AIGatewayAPIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("TITLE_MODEL"); v != "" {
		cfg.TitleModel = strings.TrimSpace(v)
	}
	if v := os.Getenv("TRANSCRIPT_API_BASE_URL"); v != "" {
		cfg.TranscriptAPIBaseURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("TRANSCRIPT_API_KEY"); v != "" {
		cfg.TranscriptAPIKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("SERVICE_TOKEN_SECRET"); v != "" {
		cfg.ServiceTokenSecret = strings.TrimSpace(v)
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = strings.TrimSpace(v)
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = strings.TrimSpace(v)
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("CHAT_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.ChatRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("TRANSCRIPT_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.TranscriptRateLimitPerMinute = n
		}
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// splitList turns a comma-separated env value into trimmed entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.Auth0Domain) == "" {
		return errors.New("config: auth0Domain is required (set in config.yaml or AUTH0_DOMAIN)")
	}
	if strings.TrimSpace(cfg.Auth0Audience) == "" {
		return errors.New("config: auth0Audience is required (set in config.yaml or AUTH0_AUDIENCE)")
	}
	if strings.TrimSpace(cfg.AIGatewayAPIKey) == "" {
		return errors.New("config: aiGatewayApiKey is required (set in config.yaml or AI_GATEWAY_API_KEY)")
	}
	if strings.TrimSpace(cfg.ServiceTokenSecret) == "" {
		return errors.New("config: serviceTokenSecret is required (set in config.yaml or SERVICE_TOKEN_SECRET)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for distributed rate limiting")
	}
	if cfg.ChatRateLimitPerMinute < 0 || cfg.TranscriptRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	return nil
}

// Issuer derives the Auth0 issuer URL (tenant URL with trailing slash).
func (c FileConfig) Issuer() string {
	domain := strings.TrimRight(strings.TrimSpace(c.Auth0Domain), "/")
	if domain == "" {
		return ""
	}
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	return domain + "/"
}

// JWKSURL derives the tenant JWKS endpoint.
func (c FileConfig) JWKSURL() string {
	issuer := c.Issuer()
	if issuer == "" {
		return ""
	}
	return issuer + ".well-known/jwks.json"
}

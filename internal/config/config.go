package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const defaultJWTSecret = "change-me-marketplace-secret"

// Config holds all configuration for the service.
type Config struct {
	ServiceName    string `mapstructure:"SERVICE_NAME"`
	ServiceVersion string `mapstructure:"SERVICE_VERSION"`
	Environment    string `mapstructure:"ENVIRONMENT"`
	HTTPPort       string `mapstructure:"HTTP_PORT"`

	MongoURI            string        `mapstructure:"MONGO_URI"`
	MongoDatabase       string        `mapstructure:"MONGO_DATABASE"`
	MongoConnectTimeout time.Duration `mapstructure:"MONGO_CONNECT_TIMEOUT"`

	RedisAddress  string        `mapstructure:"REDIS_ADDRESS"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	AdCacheTTL    time.Duration `mapstructure:"AD_CACHE_TTL"`

	MinIOEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinIOAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinIOSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinIOBucket    string `mapstructure:"MINIO_BUCKET"`
	MinIOUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`
	MinIOPublicURL string `mapstructure:"MINIO_PUBLIC_URL"`

	NATSURL string `mapstructure:"NATS_URL"`

	JWTSecret       string `mapstructure:"JWT_SECRET"`
	TokenRetryLimit int    `mapstructure:"TOKEN_RETRY_LIMIT"`
	SecureCookies   bool   `mapstructure:"SECURE_COOKIES"`

	AdCategories []string `mapstructure:"AD_CATEGORIES"`
	MinAdPrice   float64  `mapstructure:"MIN_AD_PRICE"`
	MaxAdPrice   float64  `mapstructure:"MAX_AD_PRICE"`
	MaxUploadMB  int64    `mapstructure:"MAX_UPLOAD_MB"`

	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	AuthRatePerMinute  int      `mapstructure:"AUTH_RATE_PER_MINUTE"`
	AuthRateBurst      int      `mapstructure:"AUTH_RATE_BURST"`

	PrometheusMetricsPort  string  `mapstructure:"PROMETHEUS_METRICS_PORT"`
	LogLevel               string  `mapstructure:"LOG_LEVEL"`
	LogFormat              string  `mapstructure:"LOG_FORMAT"`
	OTExporterOTLPEndpoint string  `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelSampleRatio        float64 `mapstructure:"OTEL_SAMPLE_RATIO"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "marketplace-service")
	v.SetDefault("SERVICE_VERSION", "dev")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "marketplace")
	v.SetDefault("MONGO_CONNECT_TIMEOUT", "10s")
	v.SetDefault("REDIS_ADDRESS", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("AD_CACHE_TTL", "10m")
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
	v.SetDefault("MINIO_SECRET_KEY", "minioadmin")
	v.SetDefault("MINIO_BUCKET", "ads-media")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("MINIO_PUBLIC_URL", "")
	v.SetDefault("NATS_URL", "nats://localhost:4222")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("TOKEN_RETRY_LIMIT", 16)
	v.SetDefault("SECURE_COOKIES", false)
	v.SetDefault("AD_CATEGORIES", "laptops,smartphones,tablets,consoles,tv,audio,cameras,accessories,other")
	v.SetDefault("MIN_AD_PRICE", 0)
	v.SetDefault("MAX_AD_PRICE", 100000)
	v.SetDefault("MAX_UPLOAD_MB", 32)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("AUTH_RATE_PER_MINUTE", 30)
	v.SetDefault("AUTH_RATE_BURST", 5)
	v.SetDefault("PROMETHEUS_METRICS_PORT", "9095")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)
}

// LoadConfig reads configuration from the environment. main loads .env through
// godotenv before calling it.
func LoadConfig(appLogger *logger.Logger) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		appLogger.Error("Failed to unmarshal configuration", zap.Error(err))
		return nil, err
	}
	cfg.AdCategories = normalizeList(cfg.AdCategories)
	cfg.CORSAllowedOrigins = normalizeList(cfg.CORSAllowedOrigins)

	if err := cfg.Validate(); err != nil {
		appLogger.Error("Invalid configuration", zap.Error(err))
		return nil, err
	}
	if cfg.JWTSecret == defaultJWTSecret {
		appLogger.Warn("JWT_SECRET is set to its default insecure value. Please set a strong secret in your environment.")
	}

	appLogger.Debug("Configuration loaded",
		zap.String("service_name", cfg.ServiceName),
		zap.String("http_port", cfg.HTTPPort),
		zap.Bool("mongo_uri_present", cfg.MongoURI != ""),
		zap.String("mongo_database", cfg.MongoDatabase),
		zap.String("redis_address", cfg.RedisAddress),
		zap.String("minio_endpoint", cfg.MinIOEndpoint),
		zap.String("minio_bucket", cfg.MinIOBucket),
		zap.String("nats_url", cfg.NATSURL),
		zap.Strings("ad_categories", cfg.AdCategories),
		zap.Float64("min_ad_price", cfg.MinAdPrice),
		zap.Float64("max_ad_price", cfg.MaxAdPrice),
		zap.String("prometheus_port", cfg.PrometheusMetricsPort),
		zap.String("otel_endpoint", cfg.OTExporterOTLPEndpoint),
		zap.Float64("otel_sample_ratio", cfg.OTelSampleRatio),
		zap.String("environment", cfg.Environment),
	)
	return &cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.MongoURI == "":
		return errors.New("MONGO_URI is required")
	case c.MongoDatabase == "":
		return errors.New("MONGO_DATABASE is required")
	case c.JWTSecret == "":
		return errors.New("JWT_SECRET is required")
	case len(c.AdCategories) == 0:
		return errors.New("AD_CATEGORIES must name at least one category")
	case c.MinAdPrice < 0 || c.MaxAdPrice < c.MinAdPrice:
		return fmt.Errorf("invalid price bounds [%v, %v]", c.MinAdPrice, c.MaxAdPrice)
	case c.TokenRetryLimit <= 0:
		return errors.New("TOKEN_RETRY_LIMIT must be positive")
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

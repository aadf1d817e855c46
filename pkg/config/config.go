package config

import (
	"errors"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Cache    CacheConfig
	Store    StoreConfig
	Metrics  MetricsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig selects the result cache backend and its TTL.
type CacheConfig struct {
	Backend string
	TTL     time.Duration
}

// StoreConfig bounds reads against the backing store.
type StoreConfig struct {
	MaxRowsPerQuery int
	MaxConcurrent   int
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// MetricsConfig carries the tunables of the metric engine and filter resolver.
type MetricsConfig struct {
	AtRiskScoreThreshold       float64
	AtRiskMinAttemptsPerWindow int
	AtRiskWindowDays           int
	ReliabilityWeightError     float64
	ReliabilityWeightLatency   float64
	ReliabilityLatencyTargetMs float64
	RetentionDays              int
	AggregateFreshness         time.Duration
	LowSampleThreshold         int
	DeviceTypes                []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Backend: strings.ToLower(v.GetString("CACHE_BACKEND")),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 5*time.Minute),
	}
	if seconds := v.GetString("CACHE_TTL_SECONDS"); seconds != "" {
		cfg.Cache.TTL = parseDuration(seconds, cfg.Cache.TTL)
	}
	if cfg.Cache.Backend != CacheBackendRedis {
		cfg.Cache.Backend = CacheBackendMemory
	}

	cfg.Store = StoreConfig{
		MaxRowsPerQuery: positiveInt(v.GetInt("MAX_ROWS_PER_QUERY"), 50000),
		MaxConcurrent:   positiveInt(v.GetInt("STORE_MAX_CONCURRENT"), 8),
		BreakerFailures: positiveInt(v.GetInt("STORE_BREAKER_FAILURES"), 5),
		BreakerTimeout:  parseDuration(v.GetString("STORE_BREAKER_TIMEOUT"), 30*time.Second),
	}

	cfg.Metrics = MetricsConfig{
		AtRiskScoreThreshold:       positiveFloat(v.GetFloat64("AT_RISK_SCORE_THRESHOLD"), 60),
		AtRiskMinAttemptsPerWindow: positiveInt(v.GetInt("AT_RISK_MIN_ATTEMPTS"), 2),
		AtRiskWindowDays:           positiveInt(v.GetInt("AT_RISK_WINDOW_DAYS"), 14),
		ReliabilityWeightError:     v.GetFloat64("RELIABILITY_WEIGHT_ERROR"),
		ReliabilityWeightLatency:   v.GetFloat64("RELIABILITY_WEIGHT_LATENCY"),
		ReliabilityLatencyTargetMs: positiveFloat(v.GetFloat64("RELIABILITY_LATENCY_TARGET_MS"), 500),
		RetentionDays:              positiveInt(v.GetInt("RETENTION_DAYS"), 1095),
		AggregateFreshness:         parseDuration(v.GetString("AGGREGATE_FRESHNESS"), time.Hour),
		LowSampleThreshold:         positiveInt(v.GetInt("LOW_SAMPLE_THRESHOLD"), 5),
		DeviceTypes:                splitAndTrim(strings.ToLower(v.GetString("DEVICE_TYPES"))),
	}
	if cfg.Metrics.ReliabilityWeightError < 0 || cfg.Metrics.ReliabilityWeightLatency < 0 ||
		cfg.Metrics.ReliabilityWeightError+cfg.Metrics.ReliabilityWeightLatency == 0 {
		cfg.Metrics.ReliabilityWeightError = 0.7
		cfg.Metrics.ReliabilityWeightLatency = 0.3
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "mind_analytics")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "mind-analytics")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CACHE_BACKEND", CacheBackendMemory)
	v.SetDefault("CACHE_TTL", "5m")

	v.SetDefault("MAX_ROWS_PER_QUERY", 50000)
	v.SetDefault("STORE_MAX_CONCURRENT", 8)
	v.SetDefault("STORE_BREAKER_FAILURES", 5)
	v.SetDefault("STORE_BREAKER_TIMEOUT", "30s")

	v.SetDefault("AT_RISK_SCORE_THRESHOLD", 60)
	v.SetDefault("AT_RISK_MIN_ATTEMPTS", 2)
	v.SetDefault("AT_RISK_WINDOW_DAYS", 14)
	v.SetDefault("RELIABILITY_WEIGHT_ERROR", 0.7)
	v.SetDefault("RELIABILITY_WEIGHT_LATENCY", 0.3)
	v.SetDefault("RELIABILITY_LATENCY_TARGET_MS", 500)
	v.SetDefault("RETENTION_DAYS", 1095)
	v.SetDefault("AGGREGATE_FRESHNESS", "1h")
	v.SetDefault("LOW_SAMPLE_THRESHOLD", 5)
	v.SetDefault("DEVICE_TYPES", "desktop,laptop,tablet,mobile")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	// A bare number is a count of seconds.
	if secs, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		if secs <= 0 {
			return fallback
		}
		return time.Duration(secs) * time.Second
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}

func positiveInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func positiveFloat(value, fallback float64) float64 {
	if value <= 0 {
		return fallback
	}
	return value
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

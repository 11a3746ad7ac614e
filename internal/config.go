package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	Source          string        `mapstructure:"source" validate:"required"`
}

type SecurityConfig struct {
	AccessTokenSecret    string        `mapstructure:"access_token_secret" validate:"required,min=16"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret" validate:"required,min=16"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" validate:"min=4,max=15"`
}

type CacheConfig struct {
	Driver       string          `mapstructure:"driver" validate:"oneof=redis memory none"`
	Redis        RedisConfig     `mapstructure:"redis"`
	OpTimeout    time.Duration   `mapstructure:"op_timeout"`
	TTL          CacheTTLConfig  `mapstructure:"ttl"`
	Invalidation string          `mapstructure:"invalidation" validate:"oneof=scan index"`
	SingleFlight bool            `mapstructure:"single_flight"`
	Breaker      BreakerConfig   `mapstructure:"breaker"`
	Broadcast    BroadcastConfig `mapstructure:"broadcast"`
	// memory driver only
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxItems        int           `mapstructure:"max_items" validate:"min=0"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0,max=15"`
	PoolSize int    `mapstructure:"pool_size"`
}

type CacheTTLConfig struct {
	UserAnalytics   time.Duration `mapstructure:"user_analytics"`
	GlobalAnalytics time.Duration `mapstructure:"global_analytics"`
	Categories      time.Duration `mapstructure:"categories"`
	Transactions    time.Duration `mapstructure:"transactions"`
}

type BreakerConfig struct {
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
	Interval    time.Duration `mapstructure:"interval"`
}

type BroadcastConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	AMQPURL  string `mapstructure:"amqp_url" validate:"required_if=Enabled true"`
	Exchange string `mapstructure:"exchange"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
	// LogBodies adds redacted request and response bodies to the access log.
	LogBodies bool `mapstructure:"log_bodies"`
}

// ApplyDefaults fills every zero value that has a sensible default.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 5 * time.Second
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}

	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Database.ConnMaxIdleTime == 0 {
		c.Database.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.Database.QueryTimeout == 0 {
		c.Database.QueryTimeout = 5 * time.Second
	}

	if c.Security.AccessTokenDuration == 0 {
		c.Security.AccessTokenDuration = 15 * time.Minute
	}
	if c.Security.RefreshTokenDuration == 0 {
		c.Security.RefreshTokenDuration = 7 * 24 * time.Hour
	}
	if c.Security.BCryptCost == 0 {
		c.Security.BCryptCost = 12
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = "redis"
	}
	if c.Cache.Redis.Addr == "" && c.Cache.Redis.URL == "" {
		c.Cache.Redis.Addr = "localhost:6379"
	}
	if c.Cache.OpTimeout == 0 {
		c.Cache.OpTimeout = 250 * time.Millisecond
	}
	if c.Cache.TTL.UserAnalytics == 0 {
		c.Cache.TTL.UserAnalytics = 900 * time.Second
	}
	if c.Cache.TTL.GlobalAnalytics == 0 {
		c.Cache.TTL.GlobalAnalytics = 900 * time.Second
	}
	if c.Cache.TTL.Categories == 0 {
		c.Cache.TTL.Categories = 3600 * time.Second
	}
	if c.Cache.TTL.Transactions == 0 {
		c.Cache.TTL.Transactions = 300 * time.Second
	}
	if c.Cache.Invalidation == "" {
		c.Cache.Invalidation = "scan"
	}
	if c.Cache.Breaker.MaxFailures == 0 {
		c.Cache.Breaker.MaxFailures = 5
	}
	if c.Cache.Breaker.OpenTimeout == 0 {
		c.Cache.Breaker.OpenTimeout = 30 * time.Second
	}
	if c.Cache.Breaker.Interval == 0 {
		c.Cache.Breaker.Interval = time.Minute
	}
	if c.Cache.Broadcast.Exchange == "" {
		c.Cache.Broadcast.Exchange = "finance.cache.invalidations"
	}
	if c.Cache.CleanupInterval == 0 {
		c.Cache.CleanupInterval = time.Minute
	}

	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// LoadConfigFromEnv builds the configuration from plain environment variables
// for container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvAsInt("PORT", 8080),
			BaseURL:        getEnv("BASE_URL", ""),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			QueryTimeout: getEnvAsDuration("DB_QUERY_TIMEOUT", 5*time.Second),
			Source:       getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			AccessTokenSecret:  getEnv("JWT_ACCESS_SECRET", ""),
			RefreshTokenSecret: getEnv("JWT_REFRESH_SECRET", ""),
			BCryptCost:         getEnvAsInt("BCRYPT_COST", 12),
		},
		Cache: CacheConfig{
			Driver: getEnv("CACHE_DRIVER", "redis"),
			Redis: RedisConfig{
				URL:      getEnv("REDIS_URL", ""),
				Addr:     getEnv("REDIS_HOST", "localhost") + ":" + getEnv("REDIS_PORT", "6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvAsInt("REDIS_DB", 0),
			},
			OpTimeout:    getEnvAsDuration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
			Invalidation: getEnv("CACHE_INVALIDATION", "scan"),
			SingleFlight: getEnv("CACHE_SINGLE_FLIGHT", "true") == "true",
			Broadcast: BroadcastConfig{
				Enabled: getEnv("CACHE_BROADCAST_ENABLED", "false") == "true",
				AMQPURL: getEnv("AMQP_URL", ""),
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnv("METRICS_ENABLED", "true") == "true",
			},
			Logging: LoggingConfig{
				Level:     getEnv("LOG_LEVEL", "info"),
				Format:    getEnv("LOG_FORMAT", "json"),
				LogBodies: getEnv("LOG_BODIES", "false") == "true",
			},
		},
	}

	// REDIS_ENABLED=false disables the cache entirely.
	if getEnv("REDIS_ENABLED", "true") == "false" {
		cfg.Cache.Driver = "none"
	}

	cfg.ApplyDefaults()
	return cfg
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

var configValidator = validator.New()

func (c *Config) Validate() error {
	var errs []string

	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Cache.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("cache config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *ServerConfig) Origins() []string {
	if c.AllowedOrigins == "" {
		return []string{"*"}
	}
	var out []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *CacheConfig) Validate() error {
	if c.Driver == "redis" && c.Redis.Addr == "" && c.Redis.URL == "" {
		return errors.New("redis driver requires redis.addr or redis.url")
	}
	if c.Invalidation == "index" && c.Driver != "redis" {
		return errors.New("index invalidation is only supported by the redis driver")
	}
	if c.OpTimeout <= 0 {
		return errors.New("op_timeout must be positive")
	}
	ttls := map[string]time.Duration{
		"user_analytics":   c.TTL.UserAnalytics,
		"global_analytics": c.TTL.GlobalAnalytics,
		"categories":       c.TTL.Categories,
		"transactions":     c.TTL.Transactions,
	}
	for name, ttl := range ttls {
		if ttl < time.Second {
			return fmt.Errorf("ttl.%s must be at least 1s", name)
		}
	}
	return nil
}

// Enabled reports whether a real cache store is configured.
func (c *CacheConfig) Enabled() bool {
	return c.Driver != "none"
}

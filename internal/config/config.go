package config

import (
	"fmt"
	"time"

	"crewboard/backend/internal/utils"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type RateLimitConfig struct {
	RequestsPerMin int
	BurstSize      int
}

type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         utils.GetEnv("SERVER_HOST", "0.0.0.0"),
			Port:         utils.GetEnvAsInt("SERVER_PORT", 8080),
			Environment:  utils.GetEnv("ENVIRONMENT", "development"),
			ReadTimeout:  utils.GetEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: utils.GetEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  utils.GetEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            utils.GetEnv("DB_HOST", "localhost"),
			Port:            utils.GetEnvAsInt("DB_PORT", 5432),
			User:            utils.GetEnv("DB_USER", "crewboard"),
			Password:        utils.GetEnv("DB_PASSWORD", "crewboard"),
			Name:            utils.GetEnv("DB_NAME", "crewboard"),
			SSLMode:         utils.GetEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    utils.GetEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    utils.GetEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: utils.GetEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: utils.GetEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:         utils.GetEnv("REDIS_HOST", "localhost"),
			Port:         utils.GetEnvAsInt("REDIS_PORT", 6379),
			Password:     utils.GetEnv("REDIS_PASSWORD", ""),
			DB:           utils.GetEnvAsInt("REDIS_DB", 0),
			PoolSize:     utils.GetEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: utils.GetEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
			MaxRetries:   utils.GetEnvAsInt("REDIS_MAX_RETRIES", 3),
			DialTimeout:  utils.GetEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  utils.GetEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: utils.GetEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMin: utils.GetEnvAsInt("RATE_LIMIT_PER_MIN", 300),
			BurstSize:      utils.GetEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Auth: AuthConfig{
			JWTSecret:       utils.GetEnv("JWT_SECRET", "default_secret_change_in_production"),
			AccessTokenTTL:  utils.GetEnvAsDuration("ACCESS_TOKEN_TTL", time.Hour),
			RefreshTokenTTL: utils.GetEnvAsDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		},
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.Name, c.Database.SSLMode)
}

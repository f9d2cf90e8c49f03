package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the cse-data commands read from the environment.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Sirene   SireneConfig
	Log      struct {
		Level  string
		Format string
	}
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	// StatsTTL bounds how long cached dashboard statistics may lag the
	// underlying tables.
	StatsTTL time.Duration
}

// SireneConfig points at the INSEE establishment directory used to enrich
// invitations. Disabled when the token is empty.
type SireneConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RetryCount int
}

func (c *SireneConfig) Enabled() bool { return c.Token != "" }

func Load() *Config {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "cse")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)
	cfg.Redis.StatsTTL = time.Duration(parseInt(getEnv("STATS_CACHE_TTL_SECONDS", "300"), 300)) * time.Second

	cfg.Sirene.BaseURL = getEnv("SIRENE_BASE_URL", "https://api.insee.fr/entreprises/sirene/V3.11")
	cfg.Sirene.Token = getEnv("SIRENE_TOKEN", "")
	cfg.Sirene.Timeout = time.Duration(parseInt(getEnv("SIRENE_TIMEOUT_SECONDS", "10"), 10)) * time.Second
	cfg.Sirene.RetryCount = parseInt(getEnv("SIRENE_RETRY_COUNT", "2"), 2)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "console")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

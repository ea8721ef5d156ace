package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/speedwatch/pkg/models"
)

// Config holds all configuration for the speedwatch monitor.
type Config struct {
	Monitor  MonitorConfig
	SSH      SSHConfig
	Exchange ExchangeConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Loki     LokiConfig
	Server   ServerConfig
}

type MonitorConfig struct {
	Username      string
	ServerAddress string
	// Jobs is the explicit job list. Empty with an empty Pattern means every running job.
	Jobs              []string
	Pattern           string
	DynamicJobList    bool
	SpeedHistory      int
	PollInterval      time.Duration
	CallTimeout       time.Duration
	LoggingUnit       models.Unit
	OptimalUpperLimit float64
	RemoteAggregation bool
	NodePrefix        string
	Parallelism       int
	RunaiBinary       string
}

type SSHConfig struct {
	KeyPath        string
	KnownHostsPath string
	Insecure       bool
}

type ExchangeConfig struct {
	Backend string
	Dir     string
	MaxAge  time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

type RedisConfig struct {
	URL string
}

type LokiConfig struct {
	BaseURL string
	OrgID   string
	Timeout time.Duration
}

type ServerConfig struct {
	Port         int
	APIKeyHashes []string
	RateLimit    int
	LogLevel     string
}

const (
	ExchangeFile     = "file"
	ExchangeRedis    = "redis"
	ExchangePostgres = "postgres"
)

var validExchanges = map[string]bool{
	ExchangeFile:     true,
	ExchangeRedis:    true,
	ExchangePostgres: true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error naming the offending variable if any value is missing or invalid.
func Load() (*Config, error) {
	home, _ := os.UserHomeDir()

	jobs, pattern := splitJobs(envList("SPEEDWATCH_JOBS"))

	cfg := &Config{
		Monitor: MonitorConfig{
			Username:          os.Getenv("SPEEDWATCH_USERNAME"),
			ServerAddress:     envString("SPEEDWATCH_SERVER_ADDRESS", "dgx1a"),
			Jobs:              jobs,
			Pattern:           pattern,
			DynamicJobList:    envBool("SPEEDWATCH_DYNAMIC_JOB_LIST", false),
			SpeedHistory:      envInt("SPEEDWATCH_SPEED_HISTORY", 100),
			PollInterval:      envDuration("SPEEDWATCH_POLL_INTERVAL", 100*time.Second),
			CallTimeout:       envDuration("SPEEDWATCH_CALL_TIMEOUT", 30*time.Second),
			LoggingUnit:       models.Unit(envString("SPEEDWATCH_LOGGING_UNIT", string(models.UnitSecondsPerIter))),
			OptimalUpperLimit: envFloat("SPEEDWATCH_OPTIMAL_UPPER_LIMIT", 5),
			RemoteAggregation: envBool("SPEEDWATCH_REMOTE_AGGREGATION", false),
			NodePrefix:        envString("SPEEDWATCH_NODE_PREFIX", "dgx"),
			Parallelism:       envInt("SPEEDWATCH_PARALLELISM", 4),
			RunaiBinary:       os.Getenv("SPEEDWATCH_RUNAI_BINARY"),
		},
		SSH: SSHConfig{
			KeyPath:        envString("SPEEDWATCH_SSH_KEY_PATH", filepath.Join(home, ".ssh", "id_rsa")),
			KnownHostsPath: envString("SPEEDWATCH_SSH_KNOWN_HOSTS", filepath.Join(home, ".ssh", "known_hosts")),
			Insecure:       envBool("SPEEDWATCH_SSH_INSECURE", false),
		},
		Exchange: ExchangeConfig{
			Backend: envString("SPEEDWATCH_EXCHANGE", ExchangeFile),
			Dir:     envString("SPEEDWATCH_EXCHANGE_DIR", "/nfs/project/AMIGO/Monitor_Aggregation"),
			MaxAge:  envDuration("SPEEDWATCH_SNAPSHOT_MAX_AGE", 10*time.Minute),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 5),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 1),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			MigrationsDir:   envString("DATABASE_MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Loki: LokiConfig{
			BaseURL: os.Getenv("SPEEDWATCH_LOKI_BASE_URL"),
			OrgID:   os.Getenv("SPEEDWATCH_LOKI_ORG_ID"),
			Timeout: envDuration("SPEEDWATCH_LOKI_TIMEOUT", 30*time.Second),
		},
		Server: ServerConfig{
			Port:         envInt("SPEEDWATCH_PORT", 8080),
			APIKeyHashes: envList("SPEEDWATCH_API_KEY_HASHES"),
			RateLimit:    envInt("SPEEDWATCH_RATE_LIMIT", 60),
			LogLevel:     strings.ToLower(envString("SPEEDWATCH_LOG_LEVEL", "info")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	m := c.Monitor
	if m.Username == "" {
		return fmt.Errorf("SPEEDWATCH_USERNAME is required")
	}
	if m.ServerAddress == "" {
		return fmt.Errorf("SPEEDWATCH_SERVER_ADDRESS is required")
	}
	if strings.Contains(m.Pattern, "*") && len(m.Jobs) > 0 {
		return fmt.Errorf("SPEEDWATCH_JOBS supports a single wildcard pattern and no other jobs")
	}
	if m.SpeedHistory <= 0 {
		return fmt.Errorf("SPEEDWATCH_SPEED_HISTORY must be positive, got %d", m.SpeedHistory)
	}
	if m.PollInterval <= 0 {
		return fmt.Errorf("SPEEDWATCH_POLL_INTERVAL must be positive, got %s", m.PollInterval)
	}
	if m.CallTimeout <= 0 {
		return fmt.Errorf("SPEEDWATCH_CALL_TIMEOUT must be positive, got %s", m.CallTimeout)
	}
	if _, err := models.ParseUnit(string(m.LoggingUnit)); err != nil {
		return fmt.Errorf("SPEEDWATCH_LOGGING_UNIT: %w", err)
	}
	if !(m.OptimalUpperLimit > 0) || math.IsInf(m.OptimalUpperLimit, 0) {
		return fmt.Errorf("SPEEDWATCH_OPTIMAL_UPPER_LIMIT must be a positive finite number, got %v", m.OptimalUpperLimit)
	}
	if m.Parallelism <= 0 {
		return fmt.Errorf("SPEEDWATCH_PARALLELISM must be positive, got %d", m.Parallelism)
	}

	if !validExchanges[c.Exchange.Backend] {
		return fmt.Errorf("SPEEDWATCH_EXCHANGE must be one of file, redis, postgres; got %q", c.Exchange.Backend)
	}
	if m.RemoteAggregation {
		switch c.Exchange.Backend {
		case ExchangeFile:
			if c.Exchange.Dir == "" {
				return fmt.Errorf("SPEEDWATCH_EXCHANGE_DIR is required when SPEEDWATCH_EXCHANGE is file")
			}
		case ExchangeRedis:
			if c.Redis.URL == "" {
				return fmt.Errorf("REDIS_URL is required when SPEEDWATCH_EXCHANGE is redis")
			}
		case ExchangePostgres:
			if c.Database.URL == "" {
				return fmt.Errorf("DATABASE_URL is required when SPEEDWATCH_EXCHANGE is postgres")
			}
		}
	}
	if c.Exchange.MaxAge <= 0 {
		return fmt.Errorf("SPEEDWATCH_SNAPSHOT_MAX_AGE must be positive, got %s", c.Exchange.MaxAge)
	}

	if c.Loki.BaseURL != "" &&
		!strings.HasPrefix(c.Loki.BaseURL, "http://") && !strings.HasPrefix(c.Loki.BaseURL, "https://") {
		return fmt.Errorf("SPEEDWATCH_LOKI_BASE_URL must start with http:// or https://, got %q", c.Loki.BaseURL)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SPEEDWATCH_PORT must be a valid port, got %d", c.Server.Port)
	}
	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("SPEEDWATCH_LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Server.LogLevel)
	}

	return nil
}

// splitJobs separates a wildcard pattern from an explicit job list.
func splitJobs(entries []string) (jobs []string, pattern string) {
	for _, e := range entries {
		if strings.Contains(e, "*") && pattern == "" {
			pattern = e
			continue
		}
		jobs = append(jobs, e)
	}
	return jobs, pattern
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// envList splits a comma separated variable, dropping empty entries.
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

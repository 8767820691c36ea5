// Package config loads the agent's configuration from environment
// variables, following the teacher's getEnv/getEnvAsInt style, extended
// with an explicit allow-list so unknown AGENT_-prefixed keys are rejected
// at load (spec §6: "unknown options rejected at load").
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/saan/taskflow-agent/internal/domain"
)

// Config holds every setting the agent core recognizes.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Logging  LoggingConfig

	TickInterval    time.Duration
	NudgeLookahead  time.Duration
	NudgeGrace      time.Duration
	PerUserBudget   time.Duration
	TickOuterBudget time.Duration

	IngestWindowCalendar IngestWindow
	IngestWindowMail     IngestWindow

	LLMRetryBudget   int
	SpamLLMThreshold float64

	ProviderRateLimits map[domain.Provider]RateLimit
	EmailEnabled       bool
	WorkingWindow      domain.WorkingWindow
	PromotionalPatterns []string

	StageTimeout time.Duration
	RunTimeout   time.Duration
	CallTimeout  time.Duration
}

// RateLimit is a token-bucket capacity/refill pair for one provider.
type RateLimit struct {
	RefillPerSecond float64
	Burst           int
}

// IngestWindow bounds the Fetch stage's query range relative to now (§4.2).
type IngestWindow struct {
	Past   time.Duration
	Future time.Duration
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host, User, Password, DBName, SSLMode string
	Port                                  int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// recognizedEnvKeys is the allow-list backing spec §6's "unknown options
// rejected at load". Every AGENT_-prefixed key a deployment may set must
// be listed here; LoadConfig fails fast on anything else so typos surface
// immediately instead of silently no-op'ing.
var recognizedEnvKeys = map[string]bool{
	"SERVER_HOST": true, "SERVER_PORT": true,
	"DB_HOST": true, "DB_PORT": true, "DB_USER": true, "DB_PASSWORD": true, "DB_NAME": true, "DB_SSLMODE": true,
	"REDIS_ADDR": true, "REDIS_PASSWORD": true, "REDIS_DB": true,
	"KAFKA_BROKERS": true, "KAFKA_TOPIC": true,
	"LOG_LEVEL": true, "LOG_FORMAT": true,
	"TICK_INTERVAL": true, "NUDGE_LOOKAHEAD": true, "NUDGE_GRACE": true,
	"SCHEDULER_PER_USER_BUDGET": true, "SCHEDULER_TICK_OUTER_BUDGET": true,
	"INGEST_WINDOW_CALENDAR": true, "INGEST_WINDOW_MAIL": true,
	"LLM_RETRY_BUDGET": true, "SPAM_LLM_THRESHOLD": true,
	"PROVIDER_RATE_LIMIT_CALENDAR": true, "PROVIDER_RATE_LIMIT_MAIL": true, "PROVIDER_RATE_LIMIT_TASK_MANAGER": true,
	"EMAIL_ENABLED": true,
	"WORKING_WINDOW_START_HOUR": true, "WORKING_WINDOW_END_HOUR": true,
	"PROMOTIONAL_PATTERNS": true,
	"STAGE_TIMEOUT": true, "RUN_TIMEOUT": true, "CALL_TIMEOUT": true,
}

// CheckUnknownKeys rejects any AGENT_-prefixed environment variable
// not present in recognizedEnvKeys. It is separate from LoadConfig so tests
// can exercise the rejection path without needing a full environment.
func CheckUnknownKeys(environ []string) error {
	const prefix = "AGENT_"
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		bare := strings.TrimPrefix(key, prefix)
		if !recognizedEnvKeys[bare] {
			return fmt.Errorf("unrecognized configuration option %q", key)
		}
	}
	return nil
}

// LoadConfig loads configuration from AGENT_-prefixed environment variables,
// applying the defaults named throughout spec §6.
func LoadConfig() (*Config, error) {
	if err := CheckUnknownKeys(os.Environ()); err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "taskflow"),
			Password: getEnv("DB_PASSWORD", "taskflow"),
			DBName:   getEnv("DB_NAME", "taskflow"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_TOPIC", "taskflow-events"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},

		TickInterval:    getEnvAsDuration("TICK_INTERVAL", 2*time.Minute),
		NudgeLookahead:  getEnvAsDuration("NUDGE_LOOKAHEAD", 5*time.Minute),
		NudgeGrace:      getEnvAsDuration("NUDGE_GRACE", 1*time.Minute),
		PerUserBudget:   getEnvAsDuration("SCHEDULER_PER_USER_BUDGET", 10*time.Second),
		TickOuterBudget: getEnvAsDuration("SCHEDULER_TICK_OUTER_BUDGET", 0), // 0 => tick_interval - 15s, computed by caller

		IngestWindowCalendar: IngestWindow{Past: 30 * 24 * time.Hour, Future: 90 * 24 * time.Hour},
		IngestWindowMail:     IngestWindow{Past: getEnvAsDuration("INGEST_WINDOW_MAIL", 7*24*time.Hour), Future: 0},

		LLMRetryBudget:   getEnvAsInt("LLM_RETRY_BUDGET", 3),
		SpamLLMThreshold: getEnvAsFloat("SPAM_LLM_THRESHOLD", 0.7),

		ProviderRateLimits: map[domain.Provider]RateLimit{
			domain.ProviderCalendar:    {RefillPerSecond: getEnvAsFloat("PROVIDER_RATE_LIMIT_CALENDAR", 5), Burst: 10},
			domain.ProviderMail:        {RefillPerSecond: getEnvAsFloat("PROVIDER_RATE_LIMIT_MAIL", 5), Burst: 10},
			domain.ProviderTaskManager: {RefillPerSecond: getEnvAsFloat("PROVIDER_RATE_LIMIT_TASK_MANAGER", 5), Burst: 10},
		},
		EmailEnabled: getEnvAsBool("EMAIL_ENABLED", false),
		WorkingWindow: domain.WorkingWindow{
			Start: time.Duration(getEnvAsInt("WORKING_WINDOW_START_HOUR", 9)) * time.Hour,
			End:   time.Duration(getEnvAsInt("WORKING_WINDOW_END_HOUR", 18)) * time.Hour,
		},
		PromotionalPatterns: splitNonEmpty(getEnv("PROMOTIONAL_PATTERNS", "unsubscribe,% off,limited time offer,act now")),

		StageTimeout: getEnvAsDuration("STAGE_TIMEOUT", 2*time.Minute),
		RunTimeout:   getEnvAsDuration("RUN_TIMEOUT", 10*time.Minute),
		CallTimeout:  getEnvAsDuration("CALL_TIMEOUT", 30*time.Second),
	}, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv("AGENT_" + key); ok {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, ok := os.LookupEnv("AGENT_" + key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv("AGENT_" + key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv("AGENT_" + key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv("AGENT_" + key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

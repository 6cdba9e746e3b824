package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	// DBPath is the sqlite DSN; the default keeps the ledger in memory.
	DBPath    string
	DBMetrics bool

	Hydra HydraConfig
	Lock  LockConfig

	MockNode MockNodeConfig

	PolicyPaths []string
}

// HydraConfig selects and tunes the head transport.
type HydraConfig struct {
	Transport string
	APIURL    string
	WSURL     string
	Timeout   time.Duration
}

type LockConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	RetryInterval time.Duration
}

// MockNodeConfig tunes the simulated head node.
type MockNodeConfig struct {
	Addr          string
	OpenDelay     time.Duration
	MinProcessing time.Duration
	MaxProcessing time.Duration
}

const (
	TransportMock   = "mock"
	TransportRemote = "remote"

	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:      getenv("APP_SERVICE", "hydrapay"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", ""),
		DBType:       getenv("DATABASE_TYPE", "sqlite"),
		DBHost:       getenv("DATABASE_HOST", "localhost"),
		DBPort:       getenv("DATABASE_PORT", "5432"),
		DBName:       getenv("DATABASE_NAME", "hydrapay"),
		DBUser:       getenv("DATABASE_USER", "postgres"),
		DBPassword:   getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:    getenv("DATABASE_SSLMODE", "disable"),
		DBPath:       getenv("DATABASE_PATH", "file::memory:?cache=shared"),
		DBMetrics:    getenvBool("DATABASE_METRICS", false),
		Hydra: HydraConfig{
			Transport: normalizeTransport(getenv("HYDRA_TRANSPORT", TransportMock)),
			APIURL:    strings.TrimRight(getenv("HYDRA_API_URL", "http://localhost:4001"), "/"),
			WSURL:     getenv("HYDRA_WS_URL", "ws://localhost:4001/ws"),
			Timeout:   getenvDuration("HYDRA_TIMEOUT", 5*time.Second),
		},
		Lock: LockConfig{
			Backend:       normalizeLockBackend(getenv("LOCK_BACKEND", LockBackendMemory)),
			RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			RedisDB:       getenvInt("REDIS_DB", 0),
			TTL:           getenvDuration("LOCK_TTL", 30*time.Second),
			RetryInterval: getenvDuration("LOCK_RETRY_INTERVAL", 25*time.Millisecond),
		},
		MockNode: MockNodeConfig{
			Addr:          getenv("MOCK_NODE_ADDR", ":4001"),
			OpenDelay:     getenvDuration("MOCK_OPEN_DELAY", 2*time.Second),
			MinProcessing: getenvDuration("MOCK_MIN_PROCESSING", 150*time.Millisecond),
			MaxProcessing: getenvDuration("MOCK_MAX_PROCESSING", 250*time.Millisecond),
		},
		PolicyPaths: parseList(getenv("POLICY_PATHS", "/etc/hydrapay,.")),
	}
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func normalizeTransport(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case TransportRemote:
		return TransportRemote
	default:
		return TransportMock
	}
}

func normalizeLockBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case LockBackendRedis:
		return LockBackendRedis
	default:
		return LockBackendMemory
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(providePolicyHolder),
)

func providePolicyHolder(cfg Config) (*PolicyHolder, error) {
	return NewPolicyHolder(cfg.PolicyPaths...)
}

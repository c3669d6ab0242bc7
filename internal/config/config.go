// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var (
	currentConfig *Config
	configMutex   sync.RWMutex
)

// Config holds process level settings read from the environment.
type Config struct {
	Port               string        `json:"port"`
	DataDir            string        `json:"data_dir"`
	LogDir             string        `json:"log_dir"`
	LogLevel           string        `json:"log_level"`
	DebugMode          bool          `json:"debug_mode"`
	AuthSecret         string        `json:"-"`
	AdminToken         string        `json:"-"`
	TuningFile         string        `json:"tuning_file"`
	CatalogFile        string        `json:"catalog_file,omitempty"`
	SessionTTL         time.Duration `json:"session_ttl"`
	KafkaBrokers       []string      `json:"kafka_brokers,omitempty"`
	KafkaTopic         string        `json:"kafka_topic"`
	RateLimitPerMinute int           `json:"rate_limit_per_minute"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Port:               getEnv("PORT", "8080"),
		DataDir:            getEnvPath("DATA_DIR", "data"),
		LogDir:             getEnvPath("LOG_DIR", "logs"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		DebugMode:          getEnvBool("DEBUG_MODE", true),
		AuthSecret:         getEnv("AUTH_SECRET_KEY", ""),
		AdminToken:         getEnv("ADMIN_TOKEN", ""),
		TuningFile:         getEnv("TUNING_FILE", "data/tuning.yaml"),
		CatalogFile:        getEnv("CATALOG_FILE", ""),
		KafkaBrokers:       getEnvList("KAFKA_BROKERS"),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "kaika.events"),
		RateLimitPerMinute: 120,
	}

	ttl, err := time.ParseDuration(getEnv("SESSION_TTL", "30m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	config.SessionTTL = ttl

	if raw := os.Getenv("RATE_LIMIT_PER_MINUTE"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE %q", raw)
		}
		config.RateLimitPerMinute = limit
	}

	if config.AuthSecret == "" && !config.DebugMode {
		return nil, fmt.Errorf("AUTH_SECRET_KEY is required when DEBUG_MODE is off")
	}

	return config, nil
}

// InitConfig loads the environment and stores it as the current config.
func InitConfig() (*Config, error) {
	config, err := Load()
	if err != nil {
		return nil, err
	}

	configMutex.Lock()
	currentConfig = config
	configMutex.Unlock()

	return config, nil
}

// GetCurrentConfig returns a copy of the current config, loading it on first use.
func GetCurrentConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		config, err := Load()
		if err != nil {
			return &Config{Port: "8080", DataDir: "data", LogDir: "logs", LogLevel: "info", SessionTTL: 30 * time.Minute, KafkaTopic: "kaika.events", RateLimitPerMinute: 120}
		}
		return config
	}

	configCopy := *currentConfig
	return &configCopy
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath also makes sure the directory exists.
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("warning: could not create directory %s: %v\n", path, err)
		}
	}

	return path
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

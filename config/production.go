// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database  DatabaseConfig  `json:"database"`
	Cache     CacheConfig     `json:"cache"`
	Logging   LoggingConfig   `json:"logging"`
	Metrics   MetricsConfig   `json:"metrics"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Engine    EngineConfig    `json:"engine"`
	Hook      HookConfig      `json:"hook"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

type CacheConfig struct {
	Enabled         bool          `json:"enabled"`
	Provider        string        `json:"provider"` // redis, memory
	RedisURL        string        `json:"redis_url"`
	RedisDB         int           `json:"redis_db"`
	RedisPrefix     string        `json:"redis_prefix"`
	DefaultTTL      time.Duration `json:"default_ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

type LoggingConfig struct {
	Level          string `json:"level"`
	RepairLogFile  string `json:"repair_log_file"`
	RotateMaxSize  int    `json:"rotate_max_size"` // MB
	RotateMaxAge   int    `json:"rotate_max_age"`  // days
	RotateBackups  int    `json:"rotate_backups"`
	RotateCompress bool   `json:"rotate_compress"`
}

type MetricsConfig struct {
	Enabled bool `json:"enabled"`
}

type SchedulerConfig struct {
	RepairEnabled  bool          `json:"repair_enabled"`
	RepairInterval time.Duration `json:"repair_interval"`
}

// EngineConfig carries the operational knobs of the membership engine. The
// chunk size and collision retry bound are deliberate configuration, not
// derived constants.
type EngineConfig struct {
	ImportChunkSize          int           `json:"import_chunk_size"`
	ImportChunkPause         time.Duration `json:"import_chunk_pause"`
	ReferralCodeMaxAttempts  int           `json:"referral_code_max_attempts"`
	ReferralCodeSuffixLength int           `json:"referral_code_suffix_length"`
}

type HookConfig struct {
	Enabled  bool          `json:"enabled"`
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "postgres"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
		},
		Cache: CacheConfig{
			Enabled:         getEnvBool("CACHE_ENABLED", false),
			Provider:        getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:        getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:         getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:     getEnvString("CACHE_REDIS_PREFIX", "refeng"),
			DefaultTTL:      getEnvDuration("CACHE_DEFAULT_TTL", 15*time.Minute),
			CleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:          getEnvString("LOG_LEVEL", "info"),
			RepairLogFile:  getEnvString("LOG_REPAIR_FILE", "data/repair.log"),
			RotateMaxSize:  getEnvInt("LOG_ROTATE_MAX_SIZE", 50),
			RotateMaxAge:   getEnvInt("LOG_ROTATE_MAX_AGE", 14),
			RotateBackups:  getEnvInt("LOG_ROTATE_BACKUPS", 5),
			RotateCompress: getEnvBool("LOG_ROTATE_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
		Scheduler: SchedulerConfig{
			RepairEnabled:  getEnvBool("SCHEDULER_REPAIR_ENABLED", true),
			RepairInterval: getEnvDuration("SCHEDULER_REPAIR_INTERVAL", 10*time.Minute),
		},
		Engine: EngineConfig{
			ImportChunkSize:          getEnvInt("ENGINE_IMPORT_CHUNK_SIZE", 10),
			ImportChunkPause:         getEnvDuration("ENGINE_IMPORT_CHUNK_PAUSE", 100*time.Millisecond),
			ReferralCodeMaxAttempts:  getEnvInt("ENGINE_REFERRAL_CODE_MAX_ATTEMPTS", 10),
			ReferralCodeSuffixLength: getEnvInt("ENGINE_REFERRAL_CODE_SUFFIX_LENGTH", 6),
		},
		Hook: HookConfig{
			Enabled:  getEnvBool("HOOK_ENABLED", false),
			Endpoint: getEnvString("HOOK_ENDPOINT", ""),
			Timeout:  getEnvDuration("HOOK_TIMEOUT", 10*time.Second),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errs []string

	if cfg.Database.Host == "" {
		errs = append(errs, "database host is required")
	}
	if cfg.Database.Name == "" {
		errs = append(errs, "database name is required")
	}
	if cfg.Database.User == "" {
		errs = append(errs, "database user is required")
	}
	if cfg.Engine.ImportChunkSize <= 0 {
		errs = append(errs, "import chunk size must be positive")
	}
	if cfg.Engine.ReferralCodeMaxAttempts <= 0 {
		errs = append(errs, "referral code max attempts must be positive")
	}
	if cfg.Cache.Enabled && cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
		errs = append(errs, "redis url is required when cache is enabled")
	}
	if cfg.Hook.Enabled && cfg.Hook.Endpoint == "" {
		errs = append(errs, "hook endpoint is required when hooks are enabled")
	}
	if cfg.Scheduler.RepairEnabled && cfg.Scheduler.RepairInterval <= 0 {
		errs = append(errs, "repair interval must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	return nil
}

func loadEnvFile() error {
	envFile := ".env"

	// Check if .env file exists
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value pairs
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

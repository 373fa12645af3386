package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // fallback.timezone must resolve in minimal containers

	"rivalwatch/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errs []error

	validators := []func(*Config) error{
		func(c *Config) error { return validateServer(c.Server) },
		func(c *Config) error { return validateDatabase(c.Database) },
		validateStorage,
		func(c *Config) error { return validateFetcher(c.Fetcher) },
		func(c *Config) error { return validateFallback(c.Fallback) },
		validateMonitoring,
		func(c *Config) error { return validateNotify(c.Notify) },
	}

	for _, validate := range validators {
		if err := validate(cfg); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeout <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeout <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateStorage(cfg *Config) error {
	switch cfg.Storage.ConfigBackend {
	case constants.BackendMemory:
	case constants.BackendPostgres:
		if cfg.Database.Postgres.Host == "" {
			return &ValidationError{
				Field:   "database.postgres.host",
				Message: "postgres config backend requires database.postgres settings",
			}
		}
	case constants.BackendMongoDB:
		if cfg.Database.MongoDB.URI == "" {
			return &ValidationError{
				Field:   "database.mongodb.uri",
				Message: "mongodb config backend requires database.mongodb.uri",
			}
		}
	default:
		return &ValidationError{
			Field:   "storage.config_backend",
			Message: fmt.Sprintf("unknown config backend: %s (supported: postgres, mongodb, memory)", cfg.Storage.ConfigBackend),
		}
	}

	switch cfg.Storage.SnapshotBackend {
	case constants.BackendMemory:
	case constants.BackendRedis:
		if cfg.Database.Redis.Host == "" {
			return &ValidationError{
				Field:   "database.redis.host",
				Message: "redis snapshot backend requires database.redis settings",
			}
		}
	case constants.BackendMongoDB:
		if cfg.Database.MongoDB.URI == "" {
			return &ValidationError{
				Field:   "database.mongodb.uri",
				Message: "mongodb snapshot backend requires database.mongodb.uri",
			}
		}
	default:
		return &ValidationError{
			Field:   "storage.snapshot_backend",
			Message: fmt.Sprintf("unknown snapshot backend: %s (supported: redis, mongodb, memory)", cfg.Storage.SnapshotBackend),
		}
	}

	return nil
}

func validateFetcher(cfg FetcherConfig) error {
	if cfg.Type != constants.FetcherTypeAPI && cfg.Type != constants.FetcherTypeHTML {
		return &ValidationError{
			Field:   "fetcher.type",
			Message: fmt.Sprintf("unknown fetcher type: %s (supported: api, html)", cfg.Type),
		}
	}

	if cfg.BaseURL != "" && !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return &ValidationError{
			Field:   "fetcher.base_url",
			Message: "base URL must start with http:// or https://",
		}
	}

	if cfg.Retry.MaxAttempts < 1 {
		return &ValidationError{
			Field:   "fetcher.retry.max_attempts",
			Message: "max_attempts must be at least 1",
		}
	}

	if cfg.Retry.BaseDelay < 0 {
		return &ValidationError{
			Field:   "fetcher.retry.base_delay",
			Message: "base_delay must be non-negative",
		}
	}

	if cfg.RateLimit.RPS < 0 {
		return &ValidationError{
			Field:   "fetcher.rate_limit.rps",
			Message: "rps must be non-negative",
		}
	}

	return nil
}

func validateFallback(cfg FallbackConfig) error {
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return &ValidationError{
			Field:   "fallback.timezone",
			Message: fmt.Sprintf("unknown timezone %q: %v", cfg.Timezone, err),
		}
	}

	if cfg.MinProducts < 1 || cfg.MaxProducts < cfg.MinProducts {
		return &ValidationError{
			Field:   "fallback.max_products",
			Message: fmt.Sprintf("need 1 <= min_products <= max_products, got %d and %d", cfg.MinProducts, cfg.MaxProducts),
		}
	}

	return nil
}

func validateMonitoring(cfg *Config) error {
	m := cfg.Monitoring
	if m.CompetitorConcurrency < 1 {
		return &ValidationError{
			Field:   "monitoring.competitor_concurrency",
			Message: "competitor_concurrency must be at least 1",
		}
	}

	if m.CheckPolicy != constants.CheckPolicyQueue && m.CheckPolicy != constants.CheckPolicyReject {
		return &ValidationError{
			Field:   "monitoring.check_policy",
			Message: fmt.Sprintf("unknown check policy: %s (supported: queue, reject)", m.CheckPolicy),
		}
	}

	switch m.LockBackend {
	case constants.LockBackendLocal:
	case constants.LockBackendRedis:
		if cfg.Database.Redis.Host == "" {
			return &ValidationError{
				Field:   "monitoring.lock_backend",
				Message: "redis lock backend requires database.redis settings",
			}
		}
		if m.LockTTL <= 0 {
			return &ValidationError{
				Field:   "monitoring.lock_ttl",
				Message: "lock_ttl must be positive",
			}
		}
	default:
		return &ValidationError{
			Field:   "monitoring.lock_backend",
			Message: fmt.Sprintf("unknown lock backend: %s (supported: local, redis)", m.LockBackend),
		}
	}

	if m.DefaultFrequency != constants.FrequencyDaily && m.DefaultFrequency != constants.FrequencyWeekly {
		return &ValidationError{
			Field:   "monitoring.default_frequency",
			Message: fmt.Sprintf("unknown frequency: %s (supported: daily, weekly)", m.DefaultFrequency),
		}
	}

	if cfg.Scheduler.Enabled && cfg.Scheduler.TickInterval <= 0 {
		return &ValidationError{
			Field:   "scheduler.tick_interval",
			Message: "tick_interval must be positive when the scheduler is enabled",
		}
	}

	return nil
}

func validateNotify(cfg NotifyConfig) error {
	if cfg.Kafka.Enabled {
		if len(cfg.Kafka.Brokers) == 0 {
			return &ValidationError{
				Field:   "notify.kafka.brokers",
				Message: "at least one Kafka broker is required",
			}
		}

		for i, broker := range cfg.Kafka.Brokers {
			if broker == "" {
				return &ValidationError{
					Field:   fmt.Sprintf("notify.kafka.brokers[%d]", i),
					Message: "broker address cannot be empty",
				}
			}
		}

		if cfg.Kafka.Topic == "" {
			return &ValidationError{
				Field:   "notify.kafka.topic",
				Message: "topic is required",
			}
		}
	}

	if cfg.Telegram.Enabled && (cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0) {
		return &ValidationError{
			Field:   "notify.telegram",
			Message: "token and chat_id are required when telegram is enabled",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if cfg.URI == "" {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI is required",
		}
	}

	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"rivalwatch/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 60*time.Second)

	viper.SetDefault("database.redis.key_prefix", constants.DefaultRedisKeyPrefix)
	viper.SetDefault("database.mongodb.database", constants.DefaultMongoDBName)
	viper.SetDefault("database.postgres.sslmode", "disable")

	viper.SetDefault("storage.config_backend", constants.BackendMemory)
	viper.SetDefault("storage.snapshot_backend", constants.BackendMemory)

	viper.SetDefault("fetcher.type", constants.FetcherTypeAPI)
	viper.SetDefault("fetcher.display", 40)
	viper.SetDefault("fetcher.timeout", constants.DefaultHTTPTimeout)
	viper.SetDefault("fetcher.retry.max_attempts", constants.DefaultFetchAttempts)
	viper.SetDefault("fetcher.retry.base_delay", constants.DefaultFetchBaseDelay)

	viper.SetDefault("fallback.timezone", constants.DefaultFallbackTimezone)
	viper.SetDefault("fallback.min_products", constants.DefaultFallbackMinProducts)
	viper.SetDefault("fallback.max_products", constants.DefaultFallbackMaxProducts)

	viper.SetDefault("monitoring.competitor_concurrency", 1)
	viper.SetDefault("monitoring.check_policy", constants.CheckPolicyQueue)
	viper.SetDefault("monitoring.lock_backend", constants.LockBackendLocal)
	viper.SetDefault("monitoring.lock_ttl", constants.DefaultLockTTL)
	viper.SetDefault("monitoring.default_frequency", constants.FrequencyDaily)

	viper.SetDefault("scheduler.tick_interval", time.Minute)

	viper.SetDefault("notify.kafka.topic", constants.DefaultAlertTopic)
	viper.SetDefault("notify.kafka.group_id", constants.DefaultAlertGroupID)
	viper.SetDefault("notify.retry.max_attempts", 3)
	viper.SetDefault("notify.retry.base_delay", time.Second)

	viper.SetDefault("circuit_breaker.max_requests", 3)
	viper.SetDefault("circuit_breaker.interval", time.Minute)
	viper.SetDefault("circuit_breaker.timeout", 30*time.Second)
	viper.SetDefault("circuit_breaker.failure_ratio", 0.5)
	viper.SetDefault("circuit_breaker.min_requests", 5)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

func bindEnvVariables() {
	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("storage.config_backend", "STORAGE_CONFIG_BACKEND")
	viper.BindEnv("storage.snapshot_backend", "STORAGE_SNAPSHOT_BACKEND")

	viper.BindEnv("fetcher.type", "FETCHER_TYPE")
	viper.BindEnv("fetcher.base_url", "FETCHER_BASE_URL")

	viper.BindEnv("notify.kafka.enabled", "NOTIFY_KAFKA_ENABLED")
	viper.BindEnv("notify.kafka.topic", "NOTIFY_KAFKA_TOPIC")
	viper.BindEnv("notify.kafka.group_id", "NOTIFY_KAFKA_GROUP_ID")
	viper.BindEnv("notify.telegram.enabled", "NOTIFY_TELEGRAM_ENABLED")
	viper.BindEnv("notify.telegram.token", "NOTIFY_TELEGRAM_TOKEN")
	viper.BindEnv("notify.telegram.chat_id", "NOTIFY_TELEGRAM_CHAT_ID")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

// applyEnvOverrides handles values viper cannot split on its own.
func applyEnvOverrides(cfg *Config) {
	if brokersEnv := viper.GetString("NOTIFY_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Notify.Kafka.Brokers = brokers
		}
	}

	// Naver-style API credentials are usually kept out of the YAML file.
	if id := viper.GetString("FETCHER_CLIENT_ID"); id != "" {
		if cfg.Fetcher.Headers == nil {
			cfg.Fetcher.Headers = map[string]string{}
		}
		cfg.Fetcher.Headers[constants.HeaderClientID] = id
	}
	if secret := viper.GetString("FETCHER_CLIENT_SECRET"); secret != "" {
		if cfg.Fetcher.Headers == nil {
			cfg.Fetcher.Headers = map[string]string{}
		}
		cfg.Fetcher.Headers[constants.HeaderClientSecret] = secret
	}
}

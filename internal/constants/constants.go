package constants

import "time"

const (
	ServiceName = "monitoring-service"
	APIPrefix   = "/api/v1/monitoring"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	ShutdownTimeout    = 10 * time.Second
)

const (
	FetcherTypeAPI  = "api"
	FetcherTypeHTML = "html"

	HeaderClientID     = "X-Naver-Client-Id"
	HeaderClientSecret = "X-Naver-Client-Secret"
)

const (
	DefaultFetchAttempts  = 3
	DefaultFetchBaseDelay = 500 * time.Millisecond
)

const (
	DefaultFallbackTimezone    = "Asia/Seoul"
	DefaultFallbackMinProducts = 5
	DefaultFallbackMaxProducts = 10
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongoDB  = "mongodb"
	BackendRedis    = "redis"
)

const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
	DefaultLockTTL   = 5 * time.Minute
)

const (
	CheckPolicyQueue  = "queue"
	CheckPolicyReject = "reject"
)

const (
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
)

const (
	DefaultMongoDBName    = "rivalwatch"
	DefaultRedisKeyPrefix = "rivalwatch:"
	DefaultAlertTopic     = "competitor_alerts"
	DefaultAlertGroupID   = "rivalwatch-alert-watchers"
)

const (
	MongoConfigCollection   = "monitoring_configs"
	MongoSnapshotCollection = "competitor_snapshots"
	MongoResultCollection   = "monitoring_results"
)

const MaxTopN = 100

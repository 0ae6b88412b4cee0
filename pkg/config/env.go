package config

const (
	EnvConfigFile = "STAYBID_CONFIG_FILE"

	EnvPostgresDSN         = "POSTGRES_DSN"
	EnvPostgresMaxConns    = "POSTGRES_MAX_CONNS"
	EnvPostgresMinConns    = "POSTGRES_MIN_CONNS"
	EnvPostgresConnTimeout = "POSTGRES_CONN_TIMEOUT"
	EnvDBLockTimeout       = "DB_LOCK_TIMEOUT"

	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvParameterStoreBackend = "PARAMETER_STORE_BACKEND"
	EnvParametersCacheTTL    = "PARAMETERS_CACHE_TTL"
	EnvUnitCatalogBackend    = "UNIT_CATALOG_BACKEND"
	EnvCatalogBaseURL        = "CATALOG_BASE_URL"
	EnvUnitCacheSize         = "UNIT_CACHE_SIZE"
	EnvUnitCacheTTL          = "UNIT_CACHE_TTL"

	EnvKafkaEnabled        = "KAFKA_ENABLED"
	EnvKafkaAuctionTopic   = "KAFKA_AUCTION_TOPIC"
	EnvKafkaBookingTopic   = "KAFKA_BOOKING_TOPIC"
	EnvKafkaPaymentTopic   = "KAFKA_PAYMENT_TOPIC"
	EnvKafkaPaymentGroupID = "KAFKA_PAYMENT_GROUP_ID"
	EnvKafkaDLQTopic       = "KAFKA_DLQ_TOPIC"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout      = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL      = "IDEMPOTENCY_TTL"
	EnvIdempotencyBackend  = "IDEMPOTENCY_BACKEND"
	EnvIdempotencyCapacity = "IDEMPOTENCY_CAPACITY"
	EnvRedisAddr           = "REDIS_ADDR"
	EnvRedisPassword       = "REDIS_PASSWORD"
	EnvMaxRequestSize      = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvSweeperInterval       = "SWEEPER_INTERVAL"
	EnvAuctionCloserInterval = "AUCTION_CLOSER_INTERVAL"
	EnvAuctionCloserBatch    = "AUCTION_CLOSER_BATCH"
	EnvWorkerRunTimeout      = "WORKER_RUN_TIMEOUT"
	EnvMaxHoldMinutes        = "MAX_HOLD_MINUTES"
)

package config

import (
	"fmt"
	"net/url"
	"regexp"
	"staybid/pkg/client"
	kafka_config "staybid/pkg/kafka/config"
	"staybid/pkg/logger"
	"strconv"
	"time"
)

type Config struct {
	PostgresDSN         string
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresConnTimeout time.Duration
	DBLockTimeout       time.Duration

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	ParameterStoreBackend string
	ParametersCacheTTL    time.Duration
	UnitCatalogBackend    string
	CatalogBaseURL        string
	UnitCacheSize         int
	UnitCacheTTL          time.Duration

	KafkaEnabled        bool
	KafkaAuctionTopic   string
	KafkaBookingTopic   string
	KafkaPaymentTopic   string
	KafkaPaymentGroupID string
	KafkaDLQTopic       string
	Kafka               *kafka_config.Config

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout      time.Duration
	IdempotencyTTL      time.Duration
	IdempotencyBackend  string
	IdempotencyCapacity int
	RedisAddr           string
	RedisPassword       string
	MaxRequestSize      int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	SweeperInterval       time.Duration
	AuctionCloserInterval time.Duration
	AuctionCloserBatch    int
	WorkerRunTimeout      time.Duration
	MaxHoldMinutes        int

	ConfigFile string

	Log    *logger.Logger
	Client *client.Client
}

// Load reads the environment, falling back to the optional TOML file and then
// to defaults. Invalid configuration is fatal.
func Load(serviceName string) *Config {
	loadDotEnv()

	src, fileErr := newSource(getEnvStr(EnvConfigFile, ""))
	cfg := build(src)
	cfg.Log = logger.New(logger.Config{
		Level:     src.getEnvStr(EnvLogLevel, DefaultLogLevel),
		Format:    src.getEnvStr(EnvLogFormat, DefaultLogFormat),
		AddSource: true,
		Service:   serviceName,
	})
	cfg.Client = client.NewClient()

	if fileErr != nil {
		cfg.Log.Fatal("Failed to read configuration file", "path", cfg.ConfigFile, "error", fileErr)
	}
	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func build(src *source) *Config {
	return &Config{
		PostgresDSN:         src.getEnvStr(EnvPostgresDSN, DefaultPostgresDSN),
		PostgresMaxConns:    src.getEnvNum(EnvPostgresMaxConns, DefaultPostgresMaxConns),
		PostgresMinConns:    src.getEnvNum(EnvPostgresMinConns, DefaultPostgresMinConns),
		PostgresConnTimeout: src.getEnvDuration(EnvPostgresConnTimeout, DefaultPostgresConnTimeout),
		DBLockTimeout:       src.getEnvDuration(EnvDBLockTimeout, DefaultDBLockTimeout),

		MongoURI:          src.getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: src.getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  src.getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		ParameterStoreBackend: src.getEnvStr(EnvParameterStoreBackend, DefaultParameterStoreBackend),
		ParametersCacheTTL:    src.getEnvDuration(EnvParametersCacheTTL, DefaultParametersCacheTTL),
		UnitCatalogBackend:    src.getEnvStr(EnvUnitCatalogBackend, DefaultUnitCatalogBackend),
		CatalogBaseURL:        src.getEnvStr(EnvCatalogBaseURL, DefaultCatalogBaseURL),
		UnitCacheSize:         src.getEnvNum(EnvUnitCacheSize, DefaultUnitCacheSize),
		UnitCacheTTL:          src.getEnvDuration(EnvUnitCacheTTL, DefaultUnitCacheTTL),

		KafkaEnabled:        src.getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		KafkaAuctionTopic:   src.getEnvStr(EnvKafkaAuctionTopic, DefaultKafkaAuctionTopic),
		KafkaBookingTopic:   src.getEnvStr(EnvKafkaBookingTopic, DefaultKafkaBookingTopic),
		KafkaPaymentTopic:   src.getEnvStr(EnvKafkaPaymentTopic, DefaultKafkaPaymentTopic),
		KafkaPaymentGroupID: src.getEnvStr(EnvKafkaPaymentGroupID, DefaultKafkaPaymentGroupID),
		KafkaDLQTopic:       src.getEnvStr(EnvKafkaDLQTopic, DefaultKafkaDLQTopic),
		Kafka:               kafka_config.Load(src.lookup),

		Port: src.getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: src.getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   src.getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout:      src.getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL:      src.getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		IdempotencyBackend:  src.getEnvStr(EnvIdempotencyBackend, DefaultIdempotencyBackend),
		IdempotencyCapacity: src.getEnvNum(EnvIdempotencyCapacity, DefaultIdempotencyCapacity),
		RedisAddr:           src.getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword:       src.getEnvStr(EnvRedisPassword, ""),
		MaxRequestSize:      src.getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     src.getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    src.getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     src.getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: src.getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		SweeperInterval:       src.getEnvDuration(EnvSweeperInterval, DefaultSweeperInterval),
		AuctionCloserInterval: src.getEnvDuration(EnvAuctionCloserInterval, DefaultAuctionCloserInterval),
		AuctionCloserBatch:    src.getEnvNum(EnvAuctionCloserBatch, DefaultAuctionCloserBatch),
		WorkerRunTimeout:      src.getEnvDuration(EnvWorkerRunTimeout, DefaultWorkerRunTimeout),
		MaxHoldMinutes:        src.getEnvNum(EnvMaxHoldMinutes, DefaultMaxHoldMinutes),

		ConfigFile: src.path,
	}
}

func (cfg *Config) SetPostgres() {
	cfg.Client.SetPostgres(cfg.Log, client.PostgresOptions{
		DSN:         cfg.PostgresDSN,
		MaxConns:    cfg.PostgresMaxConns,
		MinConns:    cfg.PostgresMinConns,
		ConnTimeout: cfg.PostgresConnTimeout,
	})
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword)
}

// SetClients opens every connection the selected backends need.
func (cfg *Config) SetClients() {
	cfg.SetPostgres()
	if cfg.ParameterStoreBackend == BackendMongo {
		cfg.SetMongo()
	}
	if cfg.IdempotencyBackend == BackendRedis {
		cfg.SetRedis()
	}
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.PostgresDSN == "" {
		errors = append(errors, "PostgresDSN cannot be empty")
	} else if !regexp.MustCompile(`^postgres(ql)?://`).MatchString(cfg.PostgresDSN) {
		errors = append(errors, fmt.Sprintf("PostgresDSN must start with 'postgres://' or 'postgresql://', got: %s", redactDSN(cfg.PostgresDSN)))
	}
	if cfg.PostgresMaxConns <= 0 {
		errors = append(errors, fmt.Sprintf("PostgresMaxConns must be positive, got: %d", cfg.PostgresMaxConns))
	}
	if cfg.PostgresMinConns < 0 || cfg.PostgresMinConns > cfg.PostgresMaxConns {
		errors = append(errors, fmt.Sprintf("PostgresMinConns (%d) must be between 0 and PostgresMaxConns (%d)", cfg.PostgresMinConns, cfg.PostgresMaxConns))
	}
	if cfg.PostgresConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("PostgresConnTimeout must be positive, got: %s", cfg.PostgresConnTimeout))
	}
	if cfg.DBLockTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("DBLockTimeout must be positive, got: %s", cfg.DBLockTimeout))
	}

	switch cfg.ParameterStoreBackend {
	case BackendPostgres:
	case BackendMongo:
		if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactDSN(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	default:
		errors = append(errors, fmt.Sprintf("ParameterStoreBackend must be one of [postgres, mongo], got: %s", cfg.ParameterStoreBackend))
	}
	if cfg.ParametersCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("ParametersCacheTTL cannot be negative, got: %s", cfg.ParametersCacheTTL))
	}

	switch cfg.UnitCatalogBackend {
	case BackendPostgres:
	case BackendHTTP:
		if u, err := url.Parse(cfg.CatalogBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("CatalogBaseURL must be an absolute URL, got: %s", cfg.CatalogBaseURL))
		}
	default:
		errors = append(errors, fmt.Sprintf("UnitCatalogBackend must be one of [postgres, http], got: %s", cfg.UnitCatalogBackend))
	}
	if cfg.UnitCacheSize <= 0 {
		errors = append(errors, fmt.Sprintf("UnitCacheSize must be positive, got: %d", cfg.UnitCacheSize))
	}
	if cfg.UnitCacheTTL <= 0 {
		errors = append(errors, fmt.Sprintf("UnitCacheTTL must be positive, got: %s", cfg.UnitCacheTTL))
	}

	if cfg.KafkaEnabled {
		if err := cfg.Kafka.Validate(); err != nil {
			errors = append(errors, err.Error())
		}
		for name, topic := range map[string]string{
			"KafkaAuctionTopic": cfg.KafkaAuctionTopic,
			"KafkaBookingTopic": cfg.KafkaBookingTopic,
			"KafkaPaymentTopic": cfg.KafkaPaymentTopic,
			"KafkaDLQTopic":     cfg.KafkaDLQTopic,
		} {
			if topic == "" {
				errors = append(errors, fmt.Sprintf("%s cannot be empty when Kafka is enabled", name))
			}
		}
		if cfg.KafkaPaymentGroupID == "" {
			errors = append(errors, "KafkaPaymentGroupID cannot be empty when Kafka is enabled")
		}
	}

	switch cfg.IdempotencyBackend {
	case BackendMemory:
		if cfg.IdempotencyCapacity <= 0 {
			errors = append(errors, fmt.Sprintf("IdempotencyCapacity must be positive, got: %d", cfg.IdempotencyCapacity))
		}
	case BackendRedis:
		if cfg.RedisAddr == "" {
			errors = append(errors, "RedisAddr cannot be empty when IdempotencyBackend is redis")
		}
	default:
		errors = append(errors, fmt.Sprintf("IdempotencyBackend must be one of [memory, redis], got: %s", cfg.IdempotencyBackend))
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}
	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.SweeperInterval <= 0 {
		errors = append(errors, fmt.Sprintf("SweeperInterval must be positive, got: %s", cfg.SweeperInterval))
	}
	if cfg.AuctionCloserInterval <= 0 {
		errors = append(errors, fmt.Sprintf("AuctionCloserInterval must be positive, got: %s", cfg.AuctionCloserInterval))
	}
	if cfg.AuctionCloserBatch <= 0 {
		errors = append(errors, fmt.Sprintf("AuctionCloserBatch must be positive, got: %d", cfg.AuctionCloserBatch))
	}
	if cfg.WorkerRunTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WorkerRunTimeout must be positive, got: %s", cfg.WorkerRunTimeout))
	}
	if cfg.MaxHoldMinutes <= 0 {
		errors = append(errors, fmt.Sprintf("MaxHoldMinutes must be positive, got: %d", cfg.MaxHoldMinutes))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"config_file", cfg.ConfigFile,
		"postgres_dsn", redactDSN(cfg.PostgresDSN),
		"postgres_max_conns", cfg.PostgresMaxConns,
		"postgres_min_conns", cfg.PostgresMinConns,
		"db_lock_timeout", cfg.DBLockTimeout,
		"mongo_uri", redactDSN(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"parameter_store_backend", cfg.ParameterStoreBackend,
		"parameters_cache_ttl", cfg.ParametersCacheTTL,
		"unit_catalog_backend", cfg.UnitCatalogBackend,
		"catalog_base_url", cfg.CatalogBaseURL,
		"unit_cache_size", cfg.UnitCacheSize,
		"unit_cache_ttl", cfg.UnitCacheTTL,
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_payment_topic", cfg.KafkaPaymentTopic,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_backend", cfg.IdempotencyBackend,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"redis_password_set", cfg.RedisPassword != "",
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"sweeper_interval", cfg.SweeperInterval,
		"auction_closer_interval", cfg.AuctionCloserInterval,
		"auction_closer_batch", cfg.AuctionCloserBatch,
		"worker_run_timeout", cfg.WorkerRunTimeout,
		"max_hold_minutes", cfg.MaxHoldMinutes,
	)
	if cfg.KafkaEnabled {
		cfg.Kafka.LogConfiguration(cfg.Log.Info)
	}
}

var credentialRegex = regexp.MustCompile(`(\w+(\+srv)?://)[^:/@]+:[^@]+@`)

func redactDSN(dsn string) string {
	return credentialRegex.ReplaceAllString(dsn, "${1}***:***@")
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

// NormalizeListLimit bounds the limit of projection listings.
func NormalizeListLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ess-loan-gateway/internal/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds server-level config
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	LogLevel string `yaml:"level"`
}

type OtelConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	URL         string `yaml:"url"`
}

// MongoDB connection config
type MongoConfig struct {
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	URI             string        `yaml:"uri"`
	DBName          string        `yaml:"db_name"`
	MaxPoolSize     uint64        `yaml:"max_pool_size"`
	MinPoolSize     uint64        `yaml:"min_pool_size"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// Redis connection config
type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	EnableTLS      bool          `yaml:"enable_tls"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	CertContent    string        `yaml:"cert_content"`
}

// Kafka producer config for application status events
type KafkaConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Server           string `yaml:"server"`
	StatusTopic      string `yaml:"status_topic"`
	SecurityProtocol string `yaml:"security_protocol"`
	SASLMechanism    string `yaml:"sasl_mechanism"`
	SASLUsername     string `yaml:"sasl_username"`
	SASLPassword     string `yaml:"sasl_password"`
	SessionTimeoutMs int    `yaml:"session_timeout_ms"`
	ClientID         string `yaml:"client_id"`
}

type PubSubConfig struct {
	Enabled                  bool   `yaml:"enabled"`
	ProjectID                string `yaml:"project_id"`
	LedgerEventsSubscription string `yaml:"ledger_events_subscription"`
	DeadLetterTopic          string `yaml:"dead_letter_topic"`
	MaxOutstandingMessages   int    `yaml:"max_outstanding_messages"`
}

type GCSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Bucket        string `yaml:"bucket"`
	ArchivePrefix string `yaml:"archive_prefix"`
}

// ESSConfig identifies this FSP on the portal and locates the signing keys.
type ESSConfig struct {
	FSPCode          string        `yaml:"fsp_code"`
	SenderName       string        `yaml:"sender_name"`
	PortalName       string        `yaml:"portal_name"`
	CallbackURL      string        `yaml:"callback_url"`
	CallbackTimeout  time.Duration `yaml:"callback_timeout"`
	PrivateKeyPath   string        `yaml:"private_key_path"`
	PortalKeyPath    string        `yaml:"portal_key_path"`
	DedupeTTL        time.Duration `yaml:"dedupe_ttl"`
	PendingDedupeTTL time.Duration `yaml:"pending_dedupe_ttl"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes"`

	// Where the portal sends payoff funds for top-ups and takeovers.
	SettlementAccount     string `yaml:"settlement_account"`
	SettlementAccountName string `yaml:"settlement_account_name"`
	SettlementSwiftCode   string `yaml:"settlement_swift_code"`
}

// LedgerConfig configures the core-banking REST client.
type LedgerConfig struct {
	BaseURL          string        `yaml:"base_url"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	Tenant           string        `yaml:"tenant"`
	OfficeID         int           `yaml:"office_id"`
	Timeout          time.Duration `yaml:"timeout"`
	RatePerSecond    float64       `yaml:"rate_per_second"`
	Burst            int           `yaml:"burst"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
}

// TasksConfig tunes the durable task queue and its worker pool.
type TasksConfig struct {
	Workers             int           `yaml:"workers"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	ClaimBatch          int           `yaml:"claim_batch"`
	LockDuration        time.Duration `yaml:"lock_duration"`
	LeaseDuration       time.Duration `yaml:"lease_duration"`
	MaxAttempts         int           `yaml:"max_attempts"`
	CallbackMaxAttempts int           `yaml:"callback_max_attempts"`
	BaseBackoff         time.Duration `yaml:"base_backoff"`
	MaxBackoff          time.Duration `yaml:"max_backoff"`
}

type ReconcileConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	PageSize int           `yaml:"page_size"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type ProductsConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// AppConfig is the main config struct that holds all configs
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LogConfig       `yaml:"logging"`
	Otel      OtelConfig      `yaml:"otel"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	PubSub    PubSubConfig    `yaml:"pubsub"`
	GCS       GCSConfig       `yaml:"gcs"`
	ESS       ESSConfig       `yaml:"ess"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Tasks     TasksConfig     `yaml:"tasks"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Products  ProductsConfig  `yaml:"products"`
}

func assignDefaultConfigValues(cfg *AppConfig) *AppConfig {
	// server
	cfg.Server.Port = GetEnvOrDefaultAsInt("SERVER_PORT", orInt(cfg.Server.Port, 8080))
	cfg.Server.ReadTimeout = GetEnvOrDefaultAsDuration("SERVER_READ_TIMEOUT", orDuration(cfg.Server.ReadTimeout, 15*time.Second))
	cfg.Server.WriteTimeout = GetEnvOrDefaultAsDuration("SERVER_WRITE_TIMEOUT", orDuration(cfg.Server.WriteTimeout, 30*time.Second))
	cfg.Server.ShutdownTimeout = GetEnvOrDefaultAsDuration("SERVER_SHUTDOWN_TIMEOUT", orDuration(cfg.Server.ShutdownTimeout, 20*time.Second))

	cfg.Logging.LogLevel = GetEnvOrDefaultAsString("LOGGING_LEVEL", orString(cfg.Logging.LogLevel, "info"))

	cfg.Otel.Enabled = GetEnvOrDefaultAsBool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.ServiceName = GetEnvOrDefaultAsString("SERVICE_NAME", orString(cfg.Otel.ServiceName, "ess-loan-gateway"))
	cfg.Otel.URL = GetEnvOrDefaultAsString("OTEL_URL", cfg.Otel.URL)

	// MongoDB
	cfg.Mongo.URI = GetEnvOrDefaultAsString("MONGO_URI", cfg.Mongo.URI)
	cfg.Mongo.DBName = GetEnvOrDefaultAsString("MONGO_DB_NAME", cfg.Mongo.DBName)
	cfg.Mongo.Username = GetEnvOrDefaultAsString("MONGO_USERNAME", cfg.Mongo.Username)
	cfg.Mongo.Password = GetEnvOrDefaultAsString("MONGO_PASSWORD", cfg.Mongo.Password)
	cfg.Mongo.MaxPoolSize = GetEnvOrDefaultAsUint64("MONGO_MAX_POOL_SIZE", cfg.Mongo.MaxPoolSize)
	cfg.Mongo.MinPoolSize = GetEnvOrDefaultAsUint64("MONGO_MIN_POOL_SIZE", cfg.Mongo.MinPoolSize)
	cfg.Mongo.MaxConnIdleTime = GetEnvOrDefaultAsDuration("MONGO_MAX_CONN_IDLE_TIME", orDuration(cfg.Mongo.MaxConnIdleTime, 30*time.Minute))
	cfg.Mongo.ConnectTimeout = GetEnvOrDefaultAsDuration("MONGO_CONNECT_TIMEOUT", orDuration(cfg.Mongo.ConnectTimeout, 10*time.Second))

	// Redis
	cfg.Redis.Addr = GetEnvOrDefaultAsString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = GetEnvOrDefaultAsString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = GetEnvOrDefaultAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.EnableTLS = GetEnvOrDefaultAsBool("REDIS_ENABLE_TLS", cfg.Redis.EnableTLS)
	cfg.Redis.ConnectTimeout = GetEnvOrDefaultAsDuration("REDIS_CONNECT_TIMEOUT", orDuration(cfg.Redis.ConnectTimeout, 10*time.Second))
	cfg.Redis.CertContent = GetEnvOrDefaultAsString("REDIS_TLS_CERT", cfg.Redis.CertContent)

	// Kafka
	cfg.Kafka.Enabled = GetEnvOrDefaultAsBool("KAFKA_ENABLED", cfg.Kafka.Enabled)
	cfg.Kafka.Server = GetEnvOrDefaultAsString("KAFKA_SERVER", cfg.Kafka.Server)
	cfg.Kafka.StatusTopic = GetEnvOrDefaultAsString("KAFKA_STATUS_TOPIC", cfg.Kafka.StatusTopic)
	cfg.Kafka.SecurityProtocol = GetEnvOrDefaultAsString("KAFKA_SECURITY_PROTOCOL", cfg.Kafka.SecurityProtocol)
	cfg.Kafka.SASLMechanism = GetEnvOrDefaultAsString("KAFKA_SASL_MECHANISM", cfg.Kafka.SASLMechanism)
	cfg.Kafka.SASLUsername = GetEnvOrDefaultAsString("KAFKA_SASL_USERNAME", cfg.Kafka.SASLUsername)
	cfg.Kafka.SASLPassword = GetEnvOrDefaultAsString("KAFKA_SASL_PASSWORD", cfg.Kafka.SASLPassword)
	cfg.Kafka.SessionTimeoutMs = GetEnvOrDefaultAsInt("KAFKA_SESSION_TIMEOUT_MS", orInt(cfg.Kafka.SessionTimeoutMs, 15000))
	cfg.Kafka.ClientID = GetEnvOrDefaultAsString("KAFKA_CLIENT_ID", cfg.Kafka.ClientID)

	// Pub/Sub
	cfg.PubSub.Enabled = GetEnvOrDefaultAsBool("PUBSUB_ENABLED", cfg.PubSub.Enabled)
	cfg.PubSub.ProjectID = GetEnvOrDefaultAsString("PROJECT_ID", cfg.PubSub.ProjectID)
	cfg.PubSub.LedgerEventsSubscription = GetEnvOrDefaultAsString("PUBSUB_LEDGER_EVENTS_SUBSCRIPTION", cfg.PubSub.LedgerEventsSubscription)
	cfg.PubSub.DeadLetterTopic = GetEnvOrDefaultAsString("PUBSUB_DEAD_LETTER_TOPIC", cfg.PubSub.DeadLetterTopic)
	cfg.PubSub.MaxOutstandingMessages = GetEnvOrDefaultAsInt("PUBSUB_MAX_OUTSTANDING_MESSAGES", orInt(cfg.PubSub.MaxOutstandingMessages, 10))

	// GCS
	cfg.GCS.Enabled = GetEnvOrDefaultAsBool("GCS_ENABLED", cfg.GCS.Enabled)
	cfg.GCS.Bucket = GetEnvOrDefaultAsString("GCS_BUCKET", cfg.GCS.Bucket)
	cfg.GCS.ArchivePrefix = GetEnvOrDefaultAsString("GCS_ARCHIVE_PREFIX", orString(cfg.GCS.ArchivePrefix, "ess-messages"))

	// ESS portal
	cfg.ESS.FSPCode = GetEnvOrDefaultAsString("ESS_FSP_CODE", cfg.ESS.FSPCode)
	cfg.ESS.SenderName = GetEnvOrDefaultAsString("ESS_SENDER_NAME", cfg.ESS.SenderName)
	cfg.ESS.PortalName = GetEnvOrDefaultAsString("ESS_PORTAL_NAME", orString(cfg.ESS.PortalName, "ESS_UTUMISHI"))
	cfg.ESS.CallbackURL = GetEnvOrDefaultAsString("ESS_CALLBACK_URL", cfg.ESS.CallbackURL)
	cfg.ESS.CallbackTimeout = GetEnvOrDefaultAsDuration("ESS_CALLBACK_TIMEOUT", orDuration(cfg.ESS.CallbackTimeout, 20*time.Second))
	cfg.ESS.PrivateKeyPath = GetEnvOrDefaultAsString("ESS_PRIVATE_KEY_PATH", cfg.ESS.PrivateKeyPath)
	cfg.ESS.PortalKeyPath = GetEnvOrDefaultAsString("ESS_PORTAL_KEY_PATH", cfg.ESS.PortalKeyPath)
	cfg.ESS.DedupeTTL = GetEnvOrDefaultAsDuration("ESS_DEDUPE_TTL", orDuration(cfg.ESS.DedupeTTL, 72*time.Hour))
	cfg.ESS.PendingDedupeTTL = GetEnvOrDefaultAsDuration("ESS_PENDING_DEDUPE_TTL", orDuration(cfg.ESS.PendingDedupeTTL, 2*time.Minute))
	cfg.ESS.SettlementAccount = GetEnvOrDefaultAsString("ESS_SETTLEMENT_ACCOUNT", cfg.ESS.SettlementAccount)
	cfg.ESS.SettlementAccountName = GetEnvOrDefaultAsString("ESS_SETTLEMENT_ACCOUNT_NAME", cfg.ESS.SettlementAccountName)
	cfg.ESS.SettlementSwiftCode = GetEnvOrDefaultAsString("ESS_SETTLEMENT_SWIFT_CODE", cfg.ESS.SettlementSwiftCode)
	cfg.ESS.MaxBodyBytes = int64(GetEnvOrDefaultAsInt("ESS_MAX_BODY_BYTES", int(orInt64(cfg.ESS.MaxBodyBytes, 1<<20))))

	// Ledger
	cfg.Ledger.BaseURL = GetEnvOrDefaultAsString("LEDGER_BASE_URL", cfg.Ledger.BaseURL)
	cfg.Ledger.Username = GetEnvOrDefaultAsString("LEDGER_USERNAME", cfg.Ledger.Username)
	cfg.Ledger.Password = GetEnvOrDefaultAsString("LEDGER_PASSWORD", cfg.Ledger.Password)
	cfg.Ledger.Tenant = GetEnvOrDefaultAsString("LEDGER_TENANT", orString(cfg.Ledger.Tenant, "default"))
	cfg.Ledger.OfficeID = GetEnvOrDefaultAsInt("LEDGER_OFFICE_ID", orInt(cfg.Ledger.OfficeID, 1))
	cfg.Ledger.Timeout = GetEnvOrDefaultAsDuration("LEDGER_TIMEOUT", orDuration(cfg.Ledger.Timeout, 30*time.Second))
	cfg.Ledger.RatePerSecond = GetEnvOrDefaultAsFloat("LEDGER_RATE_PER_SECOND", orFloat(cfg.Ledger.RatePerSecond, 10))
	cfg.Ledger.Burst = GetEnvOrDefaultAsInt("LEDGER_BURST", orInt(cfg.Ledger.Burst, 5))
	cfg.Ledger.BreakerThreshold = GetEnvOrDefaultAsInt("LEDGER_BREAKER_THRESHOLD", orInt(cfg.Ledger.BreakerThreshold, 5))
	cfg.Ledger.BreakerCooldown = GetEnvOrDefaultAsDuration("LEDGER_BREAKER_COOLDOWN", orDuration(cfg.Ledger.BreakerCooldown, 30*time.Second))

	// Task queue
	cfg.Tasks.Workers = GetEnvOrDefaultAsInt("TASKS_WORKERS", orInt(cfg.Tasks.Workers, 8))
	cfg.Tasks.PollInterval = GetEnvOrDefaultAsDuration("TASKS_POLL_INTERVAL", orDuration(cfg.Tasks.PollInterval, time.Second))
	cfg.Tasks.ClaimBatch = GetEnvOrDefaultAsInt("TASKS_CLAIM_BATCH", orInt(cfg.Tasks.ClaimBatch, 16))
	cfg.Tasks.LockDuration = GetEnvOrDefaultAsDuration("TASKS_LOCK_DURATION", orDuration(cfg.Tasks.LockDuration, 5*time.Minute))
	cfg.Tasks.LeaseDuration = GetEnvOrDefaultAsDuration("TASKS_LEASE_DURATION", orDuration(cfg.Tasks.LeaseDuration, 5*time.Minute))
	cfg.Tasks.MaxAttempts = GetEnvOrDefaultAsInt("TASKS_MAX_ATTEMPTS", orInt(cfg.Tasks.MaxAttempts, 10))
	cfg.Tasks.CallbackMaxAttempts = GetEnvOrDefaultAsInt("TASKS_CALLBACK_MAX_ATTEMPTS", orInt(cfg.Tasks.CallbackMaxAttempts, 12))
	cfg.Tasks.BaseBackoff = GetEnvOrDefaultAsDuration("TASKS_BASE_BACKOFF", orDuration(cfg.Tasks.BaseBackoff, 5*time.Second))
	cfg.Tasks.MaxBackoff = GetEnvOrDefaultAsDuration("TASKS_MAX_BACKOFF", orDuration(cfg.Tasks.MaxBackoff, 30*time.Minute))

	// Reconcile
	cfg.Reconcile.Enabled = GetEnvOrDefaultAsBool("RECONCILE_ENABLED", cfg.Reconcile.Enabled)
	cfg.Reconcile.Interval = GetEnvOrDefaultAsDuration("RECONCILE_INTERVAL", orDuration(cfg.Reconcile.Interval, time.Hour))
	cfg.Reconcile.PageSize = GetEnvOrDefaultAsInt("RECONCILE_PAGE_SIZE", orInt(cfg.Reconcile.PageSize, 100))
	cfg.Reconcile.LockTTL = GetEnvOrDefaultAsDuration("RECONCILE_LOCK_TTL", orDuration(cfg.Reconcile.LockTTL, 30*time.Minute))

	cfg.Products.CacheTTL = GetEnvOrDefaultAsDuration("PRODUCTS_CACHE_TTL", orDuration(cfg.Products.CacheTTL, 10*time.Minute))

	return cfg
}

// LoadFromConfigFilePath loads and parses a config file into AppConfig
func LoadFromConfigFilePath(configPath string) (*AppConfig, error) {
	// #nosec G304: configPath comes from the operator
	data, err := os.ReadFile(configPath)
	if err != nil {
		logger.Error("Failed to read config file", err, zap.String("path", configPath))
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logger.Error("Failed to unmarshal config", err)
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	defaultCfg := assignDefaultConfigValues(&cfg)

	if err := validateConfig(defaultCfg); err != nil {
		logger.Error("Config validation failed", err)
		return nil, err
	}

	logger.Info("Configuration loaded successfully", zap.String("path", configPath))

	return defaultCfg, nil
}

// LoadFromConfig loads an optional .env file, then the config file named by CONFIG_PATH.
func LoadFromConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to load .env file", zap.Error(err))
	}

	configPath := GetEnvOrDefaultAsString("CONFIG_PATH", "configs/config.yaml")

	cfg, err := LoadFromConfigFilePath(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	return cfg, nil
}

func validateConfig(cfg *AppConfig) error {
	mongo := cfg.Mongo
	if mongo.URI == "" || mongo.DBName == "" {
		return fmt.Errorf("mongo.uri and mongo.db_name are required")
	}
	if mongo.MinPoolSize < 1 || mongo.MinPoolSize > 20 {
		return fmt.Errorf("mongo.min_pool_size must be between 1 and 20, got %d", mongo.MinPoolSize)
	}
	if mongo.MaxPoolSize < mongo.MinPoolSize || mongo.MaxPoolSize > 200 {
		return fmt.Errorf("mongo.max_pool_size must be between min_pool_size and 200, got %d", mongo.MaxPoolSize)
	}

	if cfg.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required")
	}

	kafka := cfg.Kafka
	if kafka.Enabled {
		if kafka.Server == "" || kafka.StatusTopic == "" {
			return fmt.Errorf("kafka.server and kafka.status_topic are required when kafka is enabled")
		}
		if kafka.SessionTimeoutMs < 6000 || kafka.SessionTimeoutMs > 45000 {
			return fmt.Errorf("kafka.session_timeout_ms must be between 6000 and 45000 ms, got %d", kafka.SessionTimeoutMs)
		}
	}

	if cfg.PubSub.Enabled && cfg.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub is enabled")
	}
	if cfg.GCS.Enabled && cfg.GCS.Bucket == "" {
		return fmt.Errorf("gcs.bucket is required when gcs is enabled")
	}

	ess := cfg.ESS
	if ess.FSPCode == "" || ess.CallbackURL == "" {
		return fmt.Errorf("ess.fsp_code and ess.callback_url are required")
	}
	if ess.PrivateKeyPath == "" || ess.PortalKeyPath == "" {
		return fmt.Errorf("ess.private_key_path and ess.portal_key_path are required")
	}
	if ess.PendingDedupeTTL >= ess.DedupeTTL {
		return fmt.Errorf("ess.pending_dedupe_ttl (%v) must be shorter than ess.dedupe_ttl (%v)", ess.PendingDedupeTTL, ess.DedupeTTL)
	}

	ledger := cfg.Ledger
	if ledger.BaseURL == "" {
		return fmt.Errorf("ledger.base_url is required")
	}
	if ledger.Timeout < time.Second || ledger.Timeout > 2*time.Minute {
		return fmt.Errorf("ledger.timeout must be between 1s and 2m, got %v", ledger.Timeout)
	}
	if ledger.RatePerSecond <= 0 || ledger.Burst < 1 {
		return fmt.Errorf("ledger.rate_per_second and ledger.burst must be positive")
	}
	if ledger.BreakerThreshold < 1 {
		return fmt.Errorf("ledger.breaker_threshold must be at least 1, got %d", ledger.BreakerThreshold)
	}

	tasks := cfg.Tasks
	if tasks.Workers < 1 || tasks.Workers > 128 {
		return fmt.Errorf("tasks.workers must be between 1 and 128, got %d", tasks.Workers)
	}
	if tasks.MaxAttempts < 1 || tasks.CallbackMaxAttempts < 1 {
		return fmt.Errorf("tasks.max_attempts and tasks.callback_max_attempts must be at least 1")
	}
	if tasks.BaseBackoff <= 0 || tasks.MaxBackoff < tasks.BaseBackoff {
		return fmt.Errorf("tasks.base_backoff must be positive and not above tasks.max_backoff")
	}
	if tasks.LeaseDuration <= ledger.Timeout {
		return fmt.Errorf("tasks.lease_duration (%v) must exceed ledger.timeout (%v)", tasks.LeaseDuration, ledger.Timeout)
	}

	if cfg.Reconcile.PageSize < 1 || cfg.Reconcile.PageSize > 1000 {
		return fmt.Errorf("reconcile.page_size must be between 1 and 1000, got %d", cfg.Reconcile.PageSize)
	}

	return nil
}

// GetEnvOrDefaultAsInt returns the value of the given env variable
// as an int or the default value if not set or invalid.
func GetEnvOrDefaultAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseInt(strings.TrimSpace(valueStr), 10, 64)
	if err != nil {
		return defaultValue
	}
	return int(value)
}

// GetEnvOrDefaultAsUint64 returns the value of the env variable
// as uint64 or the default value if not set or invalid.
func GetEnvOrDefaultAsUint64(key string, defaultValue uint64) uint64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseUint(strings.TrimSpace(valueStr), 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func GetEnvOrDefaultAsFloat(key string, defaultValue float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetEnvOrDefaultAsBool accepts anything strconv.ParseBool does.
func GetEnvOrDefaultAsBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		return defaultValue
	}
	return value
}

// GetEnvOrDefaultAsDuration parses Go duration syntax such as "30s" or "5m".
func GetEnvOrDefaultAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := time.ParseDuration(strings.TrimSpace(valueStr))
	if err != nil {
		return defaultValue
	}
	return value
}

func GetEnvOrDefaultAsString(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return defaultVal
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orInt64(v, def int64) int64 {
	if v == 0 {
		return def
	}
	return v
}

func orFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

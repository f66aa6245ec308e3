package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TransportMemory = "memory"
	TransportRedis  = "redis"
	TransportKafka  = "kafka"

	defaultJWTSecret = "change-me-checkout-secret"
)

type Config struct {
	Env     string
	Server  ServerConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	Bridge  BridgeConfig
	Catalog CatalogConfig
	Payment PaymentConfig
	Poller  PollerConfig
	Session SessionConfig
	Log     LogConfig
}

type ServerConfig struct {
	HTTPPort     int
	GRpcPort     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

type KafkaConfig struct {
	Brokers              []string
	ProducerRetryMax     int
	ProducerRequiredAcks int
	ConsumerGroupID      string
}

// BridgeConfig selects how frames travel between this service and the host
// page. Outbound is app->host, Inbound is host->app.
type BridgeConfig struct {
	Transport       string
	OutboundTopic   string
	InboundTopic    string
	DefaultTimeout  time.Duration
	CheckoutTimeout time.Duration
	// SimScenario drives the in-process host simulator used by the
	// memory transport.
	SimScenario string
}

type CatalogConfig struct {
	Embedded      bool
	EnsureTimeout time.Duration
}

type PaymentConfig struct {
	GraceDelay  time.Duration
	ErrorWindow time.Duration
	PendingTTL  time.Duration
	KeyPrefix   string
}

type PollerConfig struct {
	Interval     time.Duration
	MaxDuration  time.Duration
	ConfirmDelay time.Duration
	FailDelay    time.Duration
}

type SessionConfig struct {
	JWTSecret     string
	TokenExpiry   time.Duration
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

type LogConfig struct {
	Level    string
	Mode     string
	Encoding string
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			HTTPPort:     getEnvAsInt("SERVER_HTTP_PORT", 8080),
			GRpcPort:     getEnvAsInt("SERVER_GRPC_PORT", 50057),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		Kafka: KafkaConfig{
			Brokers:              getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ProducerRetryMax:     getEnvAsInt("KAFKA_PRODUCER_RETRY_MAX", 3),
			ProducerRequiredAcks: getEnvAsInt("KAFKA_PRODUCER_REQUIRED_ACKS", 1),
			ConsumerGroupID:      getEnv("KAFKA_CONSUMER_GROUP_ID", "checkout-bridge"),
		},
		Bridge: BridgeConfig{
			Transport:       getEnv("BRIDGE_TRANSPORT", TransportRedis),
			OutboundTopic:   getEnv("BRIDGE_OUTBOUND_TOPIC", "checkout.to-host"),
			InboundTopic:    getEnv("BRIDGE_INBOUND_TOPIC", "checkout.from-host"),
			DefaultTimeout:  getEnvAsDuration("BRIDGE_DEFAULT_TIMEOUT", 30*time.Second),
			CheckoutTimeout: getEnvAsDuration("BRIDGE_CHECKOUT_TIMEOUT", 10*time.Minute),
			SimScenario:     getEnv("BRIDGE_SIM_SCENARIO", "Successful"),
		},
		Catalog: CatalogConfig{
			Embedded:      getEnvAsBool("CATALOG_EMBEDDED", true),
			EnsureTimeout: getEnvAsDuration("CATALOG_ENSURE_TIMEOUT", 8*time.Second),
		},
		Payment: PaymentConfig{
			GraceDelay:  getEnvAsDuration("PAYMENT_GRACE_DELAY", 1500*time.Millisecond),
			ErrorWindow: getEnvAsDuration("PAYMENT_ERROR_WINDOW", 6*time.Second),
			PendingTTL:  getEnvAsDuration("PAYMENT_PENDING_TTL", 24*time.Hour),
			KeyPrefix:   getEnv("PAYMENT_KEY_PREFIX", "checkout:pending_payment"),
		},
		Poller: PollerConfig{
			Interval:     getEnvAsDuration("POLLER_INTERVAL", 5*time.Second),
			MaxDuration:  getEnvAsDuration("POLLER_MAX_DURATION", 60*time.Second),
			ConfirmDelay: getEnvAsDuration("POLLER_CONFIRM_DELAY", 2*time.Second),
			FailDelay:    getEnvAsDuration("POLLER_FAIL_DELAY", 3*time.Second),
		},
		Session: SessionConfig{
			JWTSecret:     getEnv("JWT_SECRET", defaultJWTSecret),
			TokenExpiry:   getEnvAsDuration("JWT_EXPIRY", 2*time.Hour),
			IdleTTL:       getEnvAsDuration("SESSION_IDLE_TTL", 30*time.Minute),
			SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Mode:     getEnv("LOG_MODE", "development"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}
	if c.Server.GRpcPort <= 0 || c.Server.GRpcPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRpcPort)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	switch c.Bridge.Transport {
	case TransportMemory, TransportRedis:
	case TransportKafka:
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka transport requires at least one broker")
		}
	default:
		return fmt.Errorf("unknown bridge transport: %q", c.Bridge.Transport)
	}
	if c.Bridge.OutboundTopic == "" || c.Bridge.InboundTopic == "" {
		return fmt.Errorf("bridge topics are required")
	}
	if c.Bridge.OutboundTopic == c.Bridge.InboundTopic {
		return fmt.Errorf("bridge inbound and outbound topics must differ")
	}
	if c.Bridge.DefaultTimeout <= 0 || c.Bridge.CheckoutTimeout <= 0 {
		return fmt.Errorf("bridge timeouts must be positive")
	}

	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller interval must be positive")
	}
	if c.Poller.MaxDuration < c.Poller.Interval {
		return fmt.Errorf("poller max duration %s is shorter than interval %s", c.Poller.MaxDuration, c.Poller.Interval)
	}

	if c.Session.JWTSecret == "" || c.Session.JWTSecret == defaultJWTSecret {
		if c.Env == "production" {
			return fmt.Errorf("JWT secret must be set in production")
		}
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	var result []string
	for _, v := range strings.Split(getEnv(key, ""), ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

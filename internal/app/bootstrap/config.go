package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string
	LogLevel  string

	HTTPPort        int
	GRPCPort        int
	WorkerHTTPPort  int
	ShutdownTimeout time.Duration

	DatabaseURL   string
	RedisURL      string
	QueueRedisURL string
	KafkaBrokers  []string
	MaxDBConns    int32

	KafkaTopicTransactionEvaluated string
	KafkaTopicRiskAlertRaised      string

	JWTSecret string
	JWTIssuer string

	QueueName            string
	QueueVisibility      time.Duration
	QueueMaxRedeliveries int

	WorkerConcurrency    int
	WorkerReserveWait    time.Duration
	WorkerRetryBaseDelay time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int

	HealthCheckInterval time.Duration
	ResultCacheTTL      time.Duration
	ModelPath           string
}

type configFile struct {
	Service struct {
		ID             string `yaml:"id"`
		HTTPPort       int    `yaml:"http_port"`
		GRPCPort       int    `yaml:"grpc_port"`
		WorkerHTTPPort int    `yaml:"worker_http_port"`
		LogLevel       string `yaml:"log_level"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL                    string   `yaml:"postgres_url"`
		RedisURL                       string   `yaml:"redis_url"`
		QueueRedisURL                  string   `yaml:"queue_redis_url"`
		KafkaBrokers                   []string `yaml:"kafka_brokers"`
		KafkaTopicTransactionEvaluated string   `yaml:"kafka_topic_transaction_evaluated"`
		KafkaTopicRiskAlertRaised      string   `yaml:"kafka_topic_risk_alert_raised"`
		JWTIssuer                      string   `yaml:"jwt_issuer"`
	} `yaml:"dependencies"`
	Queue struct {
		Name                string `yaml:"name"`
		VisibilitySeconds   int    `yaml:"visibility_seconds"`
		MaxRedeliveries     int    `yaml:"max_redeliveries"`
		WorkerConcurrency   int    `yaml:"worker_concurrency"`
		RetryBaseDelayMilli int    `yaml:"retry_base_delay_ms"`
	} `yaml:"queue"`
	Scoring struct {
		ModelPath          string `yaml:"model_path"`
		ResultCacheSeconds int    `yaml:"result_cache_seconds"`
	} `yaml:"scoring"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                      "M12-Fraud-Detection-Engine",
		LogLevel:                       "info",
		HTTPPort:                       8080,
		GRPCPort:                       9090,
		WorkerHTTPPort:                 8081,
		ShutdownTimeout:                10 * time.Second,
		MaxDBConns:                     20,
		KafkaTopicTransactionEvaluated: "transaction.evaluated",
		KafkaTopicRiskAlertRaised:      "risk.alert_raised",
		QueueName:                      "risk_queue",
		QueueVisibility:                5 * time.Minute,
		QueueMaxRedeliveries:           5,
		WorkerConcurrency:              4,
		WorkerReserveWait:              2 * time.Second,
		WorkerRetryBaseDelay:           time.Second,
		OutboxPollInterval:             2 * time.Second,
		OutboxBatchSize:                100,
		OutboxClaimTTL:                 30 * time.Second,
		OutboxMaxRetries:               10,
		HealthCheckInterval:            5 * time.Second,
		ResultCacheTTL:                 600 * time.Second,
		ModelPath:                      "configs/model.json",
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Service.WorkerHTTPPort > 0 {
			cfg.WorkerHTTPPort = f.Service.WorkerHTTPPort
		}
		if f.Service.LogLevel != "" {
			cfg.LogLevel = f.Service.LogLevel
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Dependencies.QueueRedisURL != "" {
			cfg.QueueRedisURL = f.Dependencies.QueueRedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
		}
		if f.Dependencies.KafkaTopicTransactionEvaluated != "" {
			cfg.KafkaTopicTransactionEvaluated = f.Dependencies.KafkaTopicTransactionEvaluated
		}
		if f.Dependencies.KafkaTopicRiskAlertRaised != "" {
			cfg.KafkaTopicRiskAlertRaised = f.Dependencies.KafkaTopicRiskAlertRaised
		}
		cfg.JWTIssuer = f.Dependencies.JWTIssuer
		if f.Queue.Name != "" {
			cfg.QueueName = f.Queue.Name
		}
		if f.Queue.VisibilitySeconds > 0 {
			cfg.QueueVisibility = time.Duration(f.Queue.VisibilitySeconds) * time.Second
		}
		if f.Queue.MaxRedeliveries > 0 {
			cfg.QueueMaxRedeliveries = f.Queue.MaxRedeliveries
		}
		if f.Queue.WorkerConcurrency > 0 {
			cfg.WorkerConcurrency = f.Queue.WorkerConcurrency
		}
		if f.Queue.RetryBaseDelayMilli > 0 {
			cfg.WorkerRetryBaseDelay = time.Duration(f.Queue.RetryBaseDelayMilli) * time.Millisecond
		}
		if f.Scoring.ModelPath != "" {
			cfg.ModelPath = f.Scoring.ModelPath
		}
		if f.Scoring.ResultCacheSeconds > 0 {
			cfg.ResultCacheTTL = time.Duration(f.Scoring.ResultCacheSeconds) * time.Second
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.QueueRedisURL = envOrDefault("QUEUE_REDIS_URL", cfg.QueueRedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopicTransactionEvaluated = envOrDefault("KAFKA_TOPIC_TRANSACTION_EVALUATED", cfg.KafkaTopicTransactionEvaluated)
	cfg.KafkaTopicRiskAlertRaised = envOrDefault("KAFKA_TOPIC_RISK_ALERT_RAISED", cfg.KafkaTopicRiskAlertRaised)
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)
	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.ModelPath = envOrDefault("MODEL_PATH", cfg.ModelPath)
	cfg.QueueName = envOrDefault("QUEUE_NAME", cfg.QueueName)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.WorkerHTTPPort = envInt("WORKER_HTTP_PORT", cfg.WorkerHTTPPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.QueueVisibility = time.Duration(envInt("QUEUE_VISIBILITY_SECONDS", int(cfg.QueueVisibility.Seconds()))) * time.Second
	cfg.QueueMaxRedeliveries = envInt("QUEUE_MAX_REDELIVERIES", cfg.QueueMaxRedeliveries)
	cfg.WorkerConcurrency = envInt("WORKER_CONCURRENCY", cfg.WorkerConcurrency)
	cfg.WorkerRetryBaseDelay = time.Duration(envInt("WORKER_RETRY_BASE_DELAY_MS", int(cfg.WorkerRetryBaseDelay.Milliseconds()))) * time.Millisecond
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)
	cfg.ResultCacheTTL = time.Duration(envInt("RESULT_CACHE_SECONDS", int(cfg.ResultCacheTTL.Seconds()))) * time.Second

	if cfg.QueueRedisURL == "" {
		cfg.QueueRedisURL = cfg.RedisURL
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.WorkerConcurrency <= 0 {
		return Config{}, fmt.Errorf("WORKER_CONCURRENCY must be positive")
	}
	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	items := strings.Split(raw, ",")
	return trimNonEmpty(items)
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

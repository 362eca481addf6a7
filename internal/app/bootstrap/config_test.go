package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnv = []string{
	"DB_URL", "POSTGRES_URL", "REDIS_URL", "QUEUE_REDIS_URL", "KAFKA_BROKERS",
	"JWT_SECRET", "JWT_ISSUER", "LOG_LEVEL", "MODEL_PATH", "WORKER_CONCURRENCY",
	"RESULT_CACHE_SECONDS", "QUEUE_VISIBILITY_SECONDS", "QUEUE_MAX_REDELIVERIES", "HTTP_PORT",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, name := range configEnv {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DB_URL", "postgres://fraud@localhost/fraud")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "M12-Fraud-Detection-Engine", cfg.ServiceID)
	assert.Equal(t, "risk_queue", cfg.QueueName)
	assert.Equal(t, 600*time.Second, cfg.ResultCacheTTL)
	assert.Equal(t, 5*time.Minute, cfg.QueueVisibility)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, "redis://localhost:6379/0", cfg.QueueRedisURL)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadConfigFileAndEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, `
service:
  id: fraud-test
  http_port: 18080
  log_level: debug
dependencies:
  postgres_url: postgres://file/fraud
  redis_url: redis://file:6379/0
  kafka_brokers: [" kafka-1:9092 ", ""]
  jwt_issuer: mesh-auth
queue:
  name: risk_queue_test
  visibility_seconds: 60
  max_redeliveries: 2
scoring:
  model_path: /models/fraud.json
  result_cache_seconds: 30
`)
	t.Setenv("REDIS_URL", "redis://env:6379/1")
	t.Setenv("QUEUE_REDIS_URL", "redis://queue:6379/2")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "fraud-test", cfg.ServiceID)
	assert.Equal(t, 18080, cfg.HTTPPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "postgres://file/fraud", cfg.DatabaseURL)
	assert.Equal(t, "redis://env:6379/1", cfg.RedisURL)
	assert.Equal(t, "redis://queue:6379/2", cfg.QueueRedisURL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "mesh-auth", cfg.JWTIssuer)
	assert.Equal(t, "risk_queue_test", cfg.QueueName)
	assert.Equal(t, time.Minute, cfg.QueueVisibility)
	assert.Equal(t, 2, cfg.QueueMaxRedeliveries)
	assert.Equal(t, 8, cfg.WorkerConcurrency)
	assert.Equal(t, "/models/fraud.json", cfg.ModelPath)
	assert.Equal(t, 30*time.Second, cfg.ResultCacheTTL)
}

func TestLoadConfigRequiresStores(t *testing.T) {
	clearConfigEnv(t)
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	_, err := LoadConfig(missing)
	require.ErrorContains(t, err, "DB_URL")

	t.Setenv("DB_URL", "postgres://fraud@localhost/fraud")
	_, err = LoadConfig(missing)
	require.ErrorContains(t, err, "REDIS_URL")
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	clearConfigEnv(t)
	_, err := LoadConfig(writeConfig(t, "service: [unterminated"))
	require.ErrorContains(t, err, "parse config file")
}

func TestLoadConfigIgnoresMalformedInts(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DB_URL", "postgres://fraud@localhost/fraud")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("RESULT_CACHE_SECONDS", "ten")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 600*time.Second, cfg.ResultCacheTTL)
}

func TestParseLevel(t *testing.T) {
	for _, level := range []string{"", "info", "DEBUG", "warn", "error"} {
		_, err := parseLevel(level)
		assert.NoError(t, err, level)
	}
	_, err := parseLevel("verbose")
	assert.Error(t, err)

	logger, sync, err := NewLogger("debug", "fraud-test")
	require.NoError(t, err)
	require.NotNil(t, logger)
	sync()
}

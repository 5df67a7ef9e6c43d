package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ev-rescue/internal/workflow"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, workflow.DefaultTimings(), cfg.Workflow)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.RunMigrations)
	assert.False(t, cfg.TrustProxy)
}

func TestOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("WORKFLOW_TRAVEL_DELAY", "6s")
	t.Setenv("CHARGE_RATE", "5")
	t.Setenv("ROUTE_STEPS", "10")
	t.Setenv("MIGRATE", "TRUE")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("TRUST_PROXY", "1")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 6*time.Second, cfg.Workflow.Travel)
	assert.Equal(t, 5.0, cfg.Workflow.ChargeRate)
	assert.Equal(t, 10, cfg.Workflow.RouteSteps)
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.TrustProxy)
}

func TestInvalidValuesAreJoined(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT", "soon")
	t.Setenv("CHARGE_TARGET", "120")
	t.Setenv("MATCHER_TOP_N", "0")

	_, err := LoadServerConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_READ_TIMEOUT")
	assert.Contains(t, err.Error(), "CHARGE_TARGET")
	assert.Contains(t, err.Error(), "MATCHER_TOP_N")
}

func TestConsumerConfig(t *testing.T) {
	t.Setenv("KAFKA_GROUP", "g1")
	cfg, err := LoadConsumerConfig()
	require.NoError(t, err)
	assert.Equal(t, "g1", cfg.KafkaGroup)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(p, []byte("EV_RESCUE_TEST_KEY=from-dotenv\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("EV_RESCUE_TEST_KEY") })

	require.NoError(t, LoadDotEnv(p))
	assert.Equal(t, "from-dotenv", os.Getenv("EV_RESCUE_TEST_KEY"))
	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

package cmd

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, "8080", config.HTTPPort)
	assert.Equal(t, slog.LevelInfo, config.LogLevel)
	assert.Equal(t, LockBackendLocal, config.ZoneLockBackend)
	assert.Equal(t, 2*time.Second, config.ZoneLockTimeout)
	assert.True(t, config.MinThreshold.IsEqual(batch.DefaultMinThreshold))
	assert.True(t, config.MaxCapacity.IsEqual(batch.DefaultMaxCapacity))
	assert.Empty(t, config.KafkaBrokers)
	assert.Equal(t, jobs.DefaultSweepSchedule, config.SweepSchedule)
	assert.Equal(t, jobs.DefaultDriverAssignmentSchedule, config.DriverAssignmentSchedule)
	assert.Equal(t, 100, config.DriverAssignmentLimit)
	assert.True(t, config.JobsEnabled)
}

func TestLoadConfig_EnvironmentWinsOverFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("HTTP_PORT=9000\nZONE_LOCK_BACKEND=redis\n"), 0o600))
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("BATCH_MAX_CAPACITY", "4200.5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Cleanup(func() { _ = os.Unsetenv("ZONE_LOCK_BACKEND") })

	config, err := LoadConfig(envFile)

	require.NoError(t, err)
	assert.Equal(t, "9100", config.HTTPPort)
	assert.Equal(t, LockBackendRedis, config.ZoneLockBackend)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, config.KafkaBrokers)
	assert.Equal(t, "4200.5", config.MaxCapacity.String())
	assert.Equal(t, slog.LevelDebug, config.LogLevel)
}

func TestLoadConfig_ReportsEveryMalformedVariable(t *testing.T) {
	t.Setenv("REDIS_DB", "one")
	t.Setenv("ZONE_LOCK_TIMEOUT", "soon")
	t.Setenv("ZONE_LOCK_BACKEND", "etcd")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_DB")
	assert.Contains(t, err.Error(), "ZONE_LOCK_TIMEOUT")
	assert.Contains(t, err.Error(), "ZONE_LOCK_BACKEND")
}

func TestConfig_DSN(t *testing.T) {
	config := Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "dispatch", DBSslMode: "disable"}

	assert.Equal(t, "host=db port=5432 user=u password=p dbname=dispatch sslmode=disable", config.DSN())
}

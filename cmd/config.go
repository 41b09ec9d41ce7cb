package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/domain/model/kernel"
	"dispatch/internal/jobs"

	"github.com/joho/godotenv"
)

// Zone lock backends.
const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

type Config struct {
	HTTPPort string
	LogLevel slog.Level

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RosterPrefix  string

	// KafkaBrokers empty disables lifecycle notifications.
	KafkaBrokers        []string
	KafkaLifecycleTopic string

	// ZonesFile empty selects the built-in zone table.
	ZonesFile       string
	ZoneLockBackend string
	ZoneLockTimeout time.Duration
	ZoneLockLease   time.Duration

	MinThreshold kernel.Weight
	MaxCapacity  kernel.Weight

	JobsEnabled           bool
	ConsolidationSchedule string
	ConsolidationTimeout  time.Duration
	SweepSchedule         string
	SweepLimit            int

	DriverAssignmentSchedule string
	DriverAssignmentLimit    int
}

// LoadConfig reads an optional .env file, then the environment. Variables
// already set in the environment win over the file.
func LoadConfig(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	p := envParser{}
	config := Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		LogLevel: p.levelVar("LOG_LEVEL", slog.LevelInfo),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "dispatch"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       p.intVar("REDIS_DB", 0),
		RosterPrefix:  getEnv("ROSTER_KEY_PREFIX", ""),

		KafkaBrokers:        splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaLifecycleTopic: getEnv("KAFKA_LIFECYCLE_TOPIC", "dispatch.batch-lifecycle"),

		ZonesFile:       getEnv("ZONES_FILE", ""),
		ZoneLockBackend: strings.ToLower(getEnv("ZONE_LOCK_BACKEND", LockBackendLocal)),
		ZoneLockTimeout: p.durationVar("ZONE_LOCK_TIMEOUT", 2*time.Second),
		ZoneLockLease:   p.durationVar("ZONE_LOCK_LEASE", 30*time.Second),

		MinThreshold: p.weightVar("BATCH_MIN_THRESHOLD", batch.DefaultMinThreshold),
		MaxCapacity:  p.weightVar("BATCH_MAX_CAPACITY", batch.DefaultMaxCapacity),

		JobsEnabled:           p.boolVar("JOBS_ENABLED", true),
		ConsolidationSchedule: getEnv("CONSOLIDATION_SCHEDULE", jobs.DefaultConsolidationSchedule),
		ConsolidationTimeout:  p.durationVar("CONSOLIDATION_TIMEOUT", 0),
		SweepSchedule:         getEnv("SWEEP_SCHEDULE", jobs.DefaultSweepSchedule),
		SweepLimit:            p.intVar("SWEEP_LIMIT", 500),

		DriverAssignmentSchedule: getEnv("DRIVER_ASSIGNMENT_SCHEDULE", jobs.DefaultDriverAssignmentSchedule),
		DriverAssignmentLimit:    p.intVar("DRIVER_ASSIGNMENT_LIMIT", 100),
	}

	if config.ZoneLockBackend != LockBackendLocal && config.ZoneLockBackend != LockBackendRedis {
		p.errs = append(p.errs, fmt.Errorf("ZONE_LOCK_BACKEND: unknown backend %q", config.ZoneLockBackend))
	}
	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return config, nil
}

// DSN is the gorm postgres connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSslMode)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// envParser collects every malformed variable so start-up reports them all
// at once.
type envParser struct {
	errs []error
}

func (p *envParser) intVar(key string, def int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *envParser) boolVar(key string, def bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *envParser) durationVar(key string, def time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *envParser) weightVar(key string, def kernel.Weight) kernel.Weight {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := kernel.WeightFromString(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

func (p *envParser) levelVar(key string, def slog.Level) slog.Level {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	var v slog.Level
	if err := v.UnmarshalText([]byte(raw)); err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return v
}

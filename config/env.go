package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultStateKey = "erp_manufacturing_state"

	StateStoreMemory   = "memory"
	StateStoreMysql    = "mysql"
	StateStorePostgres = "postgres"
	StateStoreSqlite   = "sqlite"
	StateStoreRedis    = "redis"

	EventSinkNone   = "none"
	EventSinkPubSub = "pubsub"
	EventSinkKafka  = "kafka"
)

func init() {
	// Load env from .env
	godotenv.Load()
}

// StateStore selects the snapshot backend: memory (default), mysql, postgres, sqlite or redis.
func StateStore() string {
	return strings.ToLower(stringFromEnv("STATE_STORE", StateStoreMemory))
}

// StateKey is the key the manufacturing snapshot is stored under.
func StateKey() string {
	return stringFromEnv("STATE_KEY", DefaultStateKey)
}

// EventSink selects where production events go: none (default), pubsub or kafka.
func EventSink() string {
	return strings.ToLower(stringFromEnv("EVENT_SINK", EventSinkNone))
}

func Port() string {
	return stringFromEnv("PORT", "8080")
}

func stringFromEnv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func retryDelay(attempt int) time.Duration {
	sleep := time.Second * time.Duration(1<<min(attempt, 5))
	if sleep > 30*time.Second {
		sleep = 30 * time.Second
	}
	return sleep
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultSQLiteDSN = "checklists.db?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"

type Config struct {
	Addr string

	DBDriver       string // sqlite | mysql
	DBDSN          string
	DBMaxOpenConns int

	Timezone *time.Location
	LogLevel string

	RedisAddr        string
	SchedulerEnabled bool
	PublicBaseURL    string
}

// Load reads the environment, picking up a local .env when present.
func Load() Config {
	_ = godotenv.Load()

	c := Config{
		Addr:             getEnv("ADDR", ":8080"),
		DBDriver:         strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:            os.Getenv("DB_DSN"),
		DBMaxOpenConns:   intFromEnv("DB_MAX_OPEN_CONNS", 25),
		Timezone:         loadLocation(getEnv("APP_TZ", "Asia/Jakarta")),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		RedisAddr:        strings.TrimSpace(os.Getenv("REDIS_ADDRESS")),
		SchedulerEnabled: os.Getenv("SCHEDULER_ENABLED") == "1",
		PublicBaseURL:    strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
	}
	if c.DBDSN == "" && c.DBDriver == "sqlite" {
		c.DBDSN = defaultSQLiteDSN
	}
	// SQLite works best with a single writer.
	if c.DBDriver == "sqlite" {
		c.DBMaxOpenConns = 1
	}
	return c
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("WIB", 7*3600)
	}
	return loc
}

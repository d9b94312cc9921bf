// Package config provides runtime configuration values for the services.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the knobs shared by the fulfillment services. Each binary uses
// the subset it needs.
type Config struct {
	HTTPAddr        string
	MySQLDSN        string
	RedisAddr       string
	KafkaBrokers    []string
	UserServiceURL  string
	SMTPAddr        string
	SMTPFrom        string
	JWTSecret       string
	JWTTTL          time.Duration
	CacheTTL        time.Duration
	LookupTimeout   time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	ShutdownTimeout time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvs(key string, defSec int) time.Duration {
	return time.Duration(atoienv(key, defSec)) * time.Second
}

func durenvms(key string, defMs int) time.Duration {
	return time.Duration(atoienv(key, defMs)) * time.Millisecond
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		MySQLDSN:        getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/fulfillment?parseTime=true"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:    strings.Split(getenv("KAFKA_BROKERS", "localhost:9092"), ","),
		UserServiceURL:  getenv("USER_SERVICE_URL", "http://localhost:9002"),
		SMTPAddr:        getenv("SMTP_ADDR", "localhost:1025"),
		SMTPFrom:        getenv("SMTP_FROM", "orders@shopworks.local"),
		JWTSecret:       getenv("JWT_SECRET", "dev-secret-change-me"),
		JWTTTL:          durenvs("JWT_TTL_SECONDS", 3600),
		CacheTTL:        durenvs("CACHE_TTL_SECONDS", 600),
		LookupTimeout:   durenvs("LOOKUP_TIMEOUT_SECONDS", 3),
		MaxRetries:      atoienv("CONSUMER_MAX_RETRIES", 3),
		RetryBackoff:    durenvms("CONSUMER_RETRY_BACKOFF_MS", 500),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT_SECONDS", 5),
	}
}

// Package config reads the status daemon configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures the status daemon configuration.
type Server struct {
	Addr    string
	BaseURL string
	// ListSize is the number of bits per status list.
	ListSize int
	LogLevel string
	// AdminToken guards the status change routes. They are not mounted
	// when it is empty.
	AdminToken string

	Redis    RedisConfig
	Database DatabaseConfig
	Issuer   IssuerConfig

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// RedisConfig configures the status list store. An empty URL selects the
// in-memory store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig configures the credential repository. An empty URL
// disables it.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// IssuerConfig holds the key status lists are signed with. With a
// RemoteSignerURL the secp256k1 key PublicKeyHex is signed for remotely;
// otherwise PrivateKeyHex is used. With neither, lists are unsigned.
type IssuerConfig struct {
	KeyType       string
	PrivateKeyHex string

	RemoteSignerURL    string
	RemoteSignerAPIKey string
	PublicKeyHex       string
}

// FromEnv builds a Server config from STATUSD_* environment variables.
func FromEnv() Server {
	return Server{
		Addr:       stringEnv("STATUSD_ADDR", ":8080"),
		BaseURL:    stringEnv("STATUSD_BASE_URL", "http://localhost:8080"),
		ListSize:   intEnv("STATUSD_LIST_SIZE", 131072),
		LogLevel:   stringEnv("STATUSD_LOG_LEVEL", "info"),
		AdminToken: os.Getenv("STATUSD_ADMIN_TOKEN"),
		Redis: RedisConfig{
			URL:          os.Getenv("STATUSD_REDIS_URL"),
			PoolSize:     intEnv("STATUSD_REDIS_POOL_SIZE", 10),
			MinIdleConns: intEnv("STATUSD_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durationEnv("STATUSD_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationEnv("STATUSD_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationEnv("STATUSD_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("STATUSD_DATABASE_URL"),
			MaxOpenConns:    intEnv("STATUSD_DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    intEnv("STATUSD_DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: durationEnv("STATUSD_DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Issuer: IssuerConfig{
			KeyType:            stringEnv("STATUSD_ISSUER_KEY_TYPE", "ed25519"),
			PrivateKeyHex:      os.Getenv("STATUSD_ISSUER_KEY"),
			RemoteSignerURL:    os.Getenv("STATUSD_REMOTE_SIGNER_URL"),
			RemoteSignerAPIKey: os.Getenv("STATUSD_REMOTE_SIGNER_API_KEY"),
			PublicKeyHex:       os.Getenv("STATUSD_ISSUER_PUBLIC_KEY"),
		},
		ReadTimeout:     durationEnv("STATUSD_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    durationEnv("STATUSD_WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: durationEnv("STATUSD_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

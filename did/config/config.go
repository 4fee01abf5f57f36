package config

import (
	"os"
	"strconv"
	"time"
)

// Default values
const (
	DefaultResolverURL     = "https://dev.uniresolver.io/1.0/identifiers"
	DefaultResolverTimeout = 10 * time.Second
	DefaultResolverRetries = 2
	DefaultCacheTTL        = 10 * time.Minute
)

// Environment variable names
const (
	EnvResolverURL     = "DID_RESOLVER_URL"
	EnvResolverTimeout = "DID_RESOLVER_TIMEOUT"
	EnvResolverRetries = "DID_RESOLVER_RETRIES"
	EnvCacheTTL        = "DID_CACHE_TTL"
)

// ResolverURL returns the universal resolver URL from environment variable or default value
func ResolverURL() string {
	if url := os.Getenv(EnvResolverURL); url != "" {
		return url
	}
	return DefaultResolverURL
}

// ResolverTimeout returns the per-request resolver timeout from environment variable or default value
func ResolverTimeout() time.Duration {
	return durationEnv(EnvResolverTimeout, DefaultResolverTimeout)
}

// ResolverRetries returns the number of resolver retries from environment variable or default value
func ResolverRetries() uint64 {
	if s := os.Getenv(EnvResolverRetries); s != "" {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n
		}
	}
	return DefaultResolverRetries
}

// CacheTTL returns how long resolved documents are cached from environment variable or default value
func CacheTTL() time.Duration {
	return durationEnv(EnvCacheTTL, DefaultCacheTTL)
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	if s := os.Getenv(name); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

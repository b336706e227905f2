// Package config reads process configuration from the environment. Every
// value has a default so a bare process still starts against local stand-ins.
package config

import (
	"os"
	"strconv"
	"time"
)

// Store driver selection for the user directory.
const (
	StoreDriverDynamo   = "dynamo"
	StoreDriverPostgres = "postgres"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	Addr      string
	AWSRegion string

	StoreDriver string
	TableName   string
	PostgresDSN string

	// Secrets Manager ids of the provider credentials. When SecretsBackend
	// is "env", the values are read from the same-named env vars instead.
	SecretsBackend string

	// Issuer override; empty means trust the issuer baked into the JWKS URL
	// secret (derived from the user pool).
	Issuer  string
	JWKSURL string

	CacheTTL        time.Duration
	HashCacheTTL    time.Duration
	SecretsCacheTTL time.Duration
	KeySetTTL       time.Duration

	CacheCapacity         int
	OrgUsersCacheCapacity int
	SecretsCacheCapacity  int
}

// FromEnv builds the configuration from AUTHCORE_* environment variables,
// falling back to defaults for anything unset or unparseable.
func FromEnv() Config {
	return Config{
		Addr:      getString("AUTHCORE_ADDR", ":8080"),
		AWSRegion: getString("AUTHCORE_AWS_REGION", "ap-northeast-1"),

		StoreDriver: getString("AUTHCORE_STORE_DRIVER", StoreDriverDynamo),
		TableName:   getString("AUTHCORE_TABLE_NAME", "Users"),
		PostgresDSN: getString("AUTHCORE_PG_DSN", ""),

		SecretsBackend: getString("AUTHCORE_SECRETS_BACKEND", "aws"),

		Issuer:  getString("AUTHCORE_ISSUER", ""),
		JWKSURL: getString("AUTHCORE_JWKS_URL", ""),

		CacheTTL:        getSeconds("AUTHCORE_CACHE_TTL_SECS", 1800),
		HashCacheTTL:    getSeconds("AUTHCORE_HASH_CACHE_TTL_SECS", 3600),
		SecretsCacheTTL: getSeconds("AUTHCORE_SECRETS_CACHE_TTL_SECS", 3600),
		KeySetTTL:       getSeconds("AUTHCORE_KEYSET_TTL_SECS", 3600),

		CacheCapacity:         getInt("AUTHCORE_CACHE_MAX_CAPACITY", 1000),
		OrgUsersCacheCapacity: getInt("AUTHCORE_ORG_USERS_CACHE_MAX_CAPACITY", 100),
		SecretsCacheCapacity:  getInt("AUTHCORE_SECRETS_CACHE_MAX_CAPACITY", 10),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getSeconds(key string, fallback int) time.Duration {
	return time.Duration(getInt(key, fallback)) * time.Second
}

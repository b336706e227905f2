package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
	if cfg.StoreDriver != StoreDriverDynamo {
		t.Fatalf("unexpected store driver %q", cfg.StoreDriver)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Fatalf("unexpected cache ttl %v", cfg.CacheTTL)
	}
	if cfg.HashCacheTTL != time.Hour || cfg.SecretsCacheTTL != time.Hour || cfg.KeySetTTL != time.Hour {
		t.Fatalf("unexpected long ttls: %v %v %v", cfg.HashCacheTTL, cfg.SecretsCacheTTL, cfg.KeySetTTL)
	}
	if cfg.CacheCapacity != 1000 || cfg.OrgUsersCacheCapacity != 100 || cfg.SecretsCacheCapacity != 10 {
		t.Fatalf("unexpected capacities: %d %d %d", cfg.CacheCapacity, cfg.OrgUsersCacheCapacity, cfg.SecretsCacheCapacity)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("AUTHCORE_ADDR", ":9090")
	t.Setenv("AUTHCORE_STORE_DRIVER", StoreDriverPostgres)
	t.Setenv("AUTHCORE_CACHE_TTL_SECS", "900")
	t.Setenv("AUTHCORE_CACHE_MAX_CAPACITY", "500")

	cfg := FromEnv()
	if cfg.Addr != ":9090" {
		t.Fatalf("override addr not applied: %q", cfg.Addr)
	}
	if cfg.StoreDriver != StoreDriverPostgres {
		t.Fatalf("override driver not applied: %q", cfg.StoreDriver)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Fatalf("override ttl not applied: %v", cfg.CacheTTL)
	}
	if cfg.CacheCapacity != 500 {
		t.Fatalf("override capacity not applied: %d", cfg.CacheCapacity)
	}
}

func TestFromEnvInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("AUTHCORE_CACHE_TTL_SECS", "not-a-number")
	t.Setenv("AUTHCORE_CACHE_MAX_CAPACITY", "-5")

	cfg := FromEnv()
	if cfg.CacheTTL != 30*time.Minute {
		t.Fatalf("expected fallback ttl, got %v", cfg.CacheTTL)
	}
	if cfg.CacheCapacity != 1000 {
		t.Fatalf("expected fallback capacity, got %d", cfg.CacheCapacity)
	}
}

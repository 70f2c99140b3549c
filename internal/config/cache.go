package config

import (
    "os"
    "time"
)

// CacheConfig controls the response cache fronting the public catalog
// routes. Those responses are identical for every visitor (no token or
// identity ever reaches them), so whole GET responses can be shared.
// Enabled false, or a missing Redis client, turns the middleware into
// a pass-through.
type CacheConfig struct {
    Enabled      bool
    TTL          time.Duration
    Prefix       string // Redis key namespace
    MaxBodyBytes int    // responses larger than this are served but not stored
}

// LoadCacheConfig builds the catalog cache settings from the
// environment. The defaults suit a catalog that changes rarely
// relative to how often it is browsed.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      envStr("CACHE_ENABLED", "true") == "true",
        TTL:          envDurPositive("CACHE_TTL", 30*time.Second),
        Prefix:       envStr("CACHE_PREFIX", "catalog"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
}

func envDurPositive(k string, d time.Duration) time.Duration {
    v, err := time.ParseDuration(os.Getenv(k))
    if err != nil || v <= 0 {
        return d
    }
    return v
}

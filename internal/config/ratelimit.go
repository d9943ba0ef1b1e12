package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig configures one Redis token bucket.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads the general API limiter (RATE_LIMIT_*).  It is
// installed with e.Use ahead of authentication.
func LoadRateLimitConfig() RateLimitConfig {
	return loadRateLimit("RATE_LIMIT_", RateLimitConfig{
		Enabled:        true,
		Capacity:       60,
		RefillTokens:   1,
		RefillInterval: time.Second,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route", // runs before JWTAuth, so no user is known yet
		Prefix:         "ticketing:rl",
	})
}

// LoadHoldRateLimitConfig reads the stricter per-user limiter applied to
// seat holds (HOLD_RATE_LIMIT_*) so one account cannot sweep a show.
func LoadHoldRateLimitConfig() RateLimitConfig {
	return loadRateLimit("HOLD_RATE_LIMIT_", RateLimitConfig{
		Enabled:        true,
		Capacity:       10,
		RefillTokens:   1,
		RefillInterval: 6 * time.Second,
		TTL:            10 * time.Minute,
		KeyStrategy:    "user",
		Prefix:         "ticketing:rl:hold",
	})
}

func loadRateLimit(p string, def RateLimitConfig) RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        envBool(p+"ENABLED", def.Enabled),
		Capacity:       envInt(p+"CAPACITY", def.Capacity),
		RefillTokens:   envInt(p+"REFILL_TOKENS", def.RefillTokens),
		RefillInterval: envDur(p+"REFILL_INTERVAL", def.RefillInterval),
		TTL:            envDur(p+"TTL", def.TTL),
		KeyStrategy:    envStr(p+"KEY_STRATEGY", def.KeyStrategy),
		Prefix:         envStr(p+"PREFIX", def.Prefix),
		Debug:          envBool(p+"DEBUG", false),
	}
	if b := envInt(p+"BURST", -1); b > 0 {
		cfg.Capacity = b
	}
	if every := envDur(p+"REFILL_EVERY", 0); every > 0 {
		cfg.RefillTokens = 1
		cfg.RefillInterval = every
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}

// The env* helpers fall back to d when the variable is unset or does not
// parse.

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}

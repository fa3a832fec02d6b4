// Package config collects the runtime knobs for the venue access service
// from VENUE_* environment variables. Missing or malformed values fall
// back to sane defaults rather than failing startup.
package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr string

	Env string // "dev" | "prod"

	// PGDSN selects the Postgres-backed store when set. Empty means
	// the in-memory store.
	PGDSN string

	// Per-client rate limiting.
	RatePerSec float64
	RateBurst  int

	// MaxBodyBytes caps request bodies. Bulk imports can carry whole
	// rosters, so the default is generous.
	MaxBodyBytes int64
}

func FromEnv() Config {
	addr := getenvDefault("VENUE_HTTP_ADDR", ":8080")

	env := strings.ToLower(getenvDefault("VENUE_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	return Config{
		HTTPAddr:     addr,
		Env:          env,
		PGDSN:        strings.TrimSpace(os.Getenv("VENUE_PG_DSN")),
		RatePerSec:   getenvFloat("VENUE_RATE_PER_SEC", 50),
		RateBurst:    getenvInt("VENUE_RATE_BURST", 100),
		MaxBodyBytes: int64(getenvInt("VENUE_MAX_BODY_BYTES", 4<<20)),
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

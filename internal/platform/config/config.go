package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr            string
	DatabaseURL     string
	Redis           Redis
	DefaultPageSize int
}

// Redis holds optional cache configuration; an empty URL disables it.
type Redis struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CountTTL     time.Duration
}

// FromEnv builds a Server config from environment variables so main stays
// lean.
func FromEnv() Server {
	addr := os.Getenv("CONTACTDIR_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	pageSize := 25
	if raw := os.Getenv("CONTACTDIR_PAGE_SIZE"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			pageSize = n
		}
	}

	return Server{
		Addr:            addr,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DefaultPageSize: pageSize,
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			CountTTL:     10 * time.Minute,
		},
	}
}

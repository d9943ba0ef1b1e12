package config

// This file defines Redis connection settings for the application.  Redis is
// used for distributed rate limiting, HTTP response caching and as the
// asynq broker for the hold sweeper.  The parameters are loaded from
// environment variables.  If connection fails during startup,
// NewRedisClient returns nil and callers should degrade gracefully by
// disabling caching and rate limiting.

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// RedisSettings is the connection target shared by go-redis and asynq.
type RedisSettings struct {
	Addr     string
	Password string
	DB       int
	TLS      *tls.Config
}

// NewRedisClient instantiates a Redis client using environment variables.
// Supported variables are:
//   REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//   REDIS_ADDR – host:port shorthand (takes precedence if both host/port and addr are set)
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
// The returned client may be nil if a connection cannot be established.
func NewRedisClient() *redis.Client {
	rs := LoadRedisSettings()
	client := redis.NewClient(&redis.Options{
		Addr:      rs.Addr,
		Password:  rs.Password,
		DB:        rs.DB,
		TLSConfig: rs.TLS,
	})
	// Ping the server with a short timeout.  Return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}

// AsynqRedisOpt returns the asynq broker connection for the same server.
func AsynqRedisOpt() asynq.RedisClientOpt {
	rs := LoadRedisSettings()
	return asynq.RedisClientOpt{Addr: rs.Addr, Password: rs.Password, DB: rs.DB, TLSConfig: rs.TLS}
}

// LoadRedisSettings reads the REDIS_* variables.
func LoadRedisSettings() RedisSettings {
	host := os.Getenv("REDIS_HOST")
	port := os.Getenv("REDIS_PORT")
	addr := os.Getenv("REDIS_ADDR")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	pwd := os.Getenv("REDIS_PASSWORD")
	dbNum := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if n, err := strconv.Atoi(dbStr); err == nil {
			dbNum = n
		}
	}
	var tlsConf *tls.Config
	if tlsEnv := os.Getenv("REDIS_TLS"); strings.EqualFold(tlsEnv, "true") || tlsEnv == "1" {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	return RedisSettings{Addr: addr, Password: pwd, DB: dbNum, TLS: tlsConf}
}

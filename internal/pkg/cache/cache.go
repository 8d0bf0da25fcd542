package cache

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"

	"github.com/ManuelReschke/PayHook/internal/pkg/env"
	"github.com/gofiber/fiber/v2"
	fiberredis "github.com/gofiber/storage/redis"
	"github.com/redis/go-redis/v9"
)

// Separate database for fiber middleware state (counters use DB 0).
const fiberStorageDB = 1

var (
	client *redis.Client
	ctx    = context.Background()
)

// SetupCache initializes the connection to the Dragonfly/Redis server that
// backs the shared rate-limit counters.
func SetupCache() {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnv("CACHE_PORT", "6379")

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       0, // use default DB
	})

	// Test the connection
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("Warning: Could not connect to cache: %v", err)
	} else {
		log.Printf("Successfully connected to cache: %s", pong)
	}
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	if client == nil {
		SetupCache()
	}
	return client
}

// NewFiberStorage returns a fiber.Storage on the same server as the cache
// client, for middleware such as the monitor limiter.
func NewFiberStorage() fiber.Storage {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")
	if client != nil {
		addr := client.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := client.Options().Password; p != "" {
			password = p
		}
	}

	return fiberredis.New(fiberredis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: fiberStorageDB,
		Reset:    false,
	})
}

// File: utils/cache.go
package utils

import (
	"context"
	"log"
	"time"

	"meridian/config"

	"github.com/go-redis/redis/v8"
)

// SessionCacheClient backs session transcripts and in-flight turn locks.
var SessionCacheClient *redis.Client

// InitSessionCache initializes the Redis client for chat sessions (using REDIS_SESSION_DB).
func InitSessionCache() {
	SessionCacheClient = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisSessionDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := SessionCacheClient.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis (Sessions): %v", err)
	}
}

// GetSessionCacheClient returns the Redis client for chat sessions.
func GetSessionCacheClient() *redis.Client {
	if SessionCacheClient == nil {
		InitSessionCache()
	}
	return SessionCacheClient
}

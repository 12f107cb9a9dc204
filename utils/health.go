package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// HealthStatus represents current status of external services.
type HealthStatus struct {
	Redis           *bool     `json:"redis,omitempty"`
	ModelConfigured bool      `json:"modelConfigured"`
	CheckedAt       time.Time `json:"checkedAt"`
}

var (
	currentHealth HealthStatus
	mu            sync.RWMutex
)

// GetHealthStatus returns latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	mu.RLock()
	defer mu.RUnlock()
	return currentHealth
}

func setHealth(h HealthStatus) {
	mu.Lock()
	currentHealth = h
	mu.Unlock()
}

// StartHealthMonitor performs periodic health checks and updates in-memory
// state until ctx is done. redisClient may be nil when sessions live in memory.
func StartHealthMonitor(ctx context.Context, redisClient *redis.Client, modelConfigured bool, every time.Duration) {
	check := func() {
		h := HealthStatus{ModelConfigured: modelConfigured, CheckedAt: time.Now()}
		if redisClient != nil {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			ok := redisClient.Ping(pingCtx).Err() == nil
			cancel()
			h.Redis = &ok
		}
		setHealth(h)
	}

	check()
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				check()
			}
		}
	}()
}

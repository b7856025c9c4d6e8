package database

import (
	"fmt"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient creates a new Redis client. The client dials lazily, so an
// unused client costs nothing when neither the cache nor the redis transport is enabled.
func NewRedisClient(config *config.Config) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", config.Redis.Host, config.Redis.Port),
		Password:     config.Redis.Password,
		DB:           config.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 0,
		MaxRetries:   3,
	})

	return rdb
}

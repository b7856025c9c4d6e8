package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/config"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"

	"github.com/go-redis/redis/v8"
)

// CacheService provides caching functionality using Redis
type CacheService struct {
	client *redis.Client
	config *config.Config
}

// NewCacheService creates a new cache service
func NewCacheService(client *redis.Client, config *config.Config) *CacheService {
	return &CacheService{
		client: client,
		config: config,
	}
}

// Get retrieves a value from cache
func (cs *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := cs.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get cache key %s: %w", key, err)
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value for key %s: %w", key, err)
	}

	return nil
}

// Set stores a value in cache with expiration
func (cs *CacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %s: %w", key, err)
	}

	if err := cs.client.Set(ctx, key, data, expiration).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}

	return nil
}

// Delete removes keys from cache
func (cs *CacheService) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := cs.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys %v: %w", keys, err)
	}
	return nil
}

// GetMappingProfile returns a cached mapping profile
func (cs *CacheService) GetMappingProfile(ctx context.Context, id string) (*models.MappingProfile, error) {
	var profile models.MappingProfile
	if err := cs.Get(ctx, BuildMappingProfileKey(id), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SetMappingProfile caches a mapping profile for the configured TTL
func (cs *CacheService) SetMappingProfile(ctx context.Context, profile *models.MappingProfile) error {
	return cs.Set(ctx, BuildMappingProfileKey(profile.ID), profile, cs.config.Cache.MappingProfileTTL)
}

// InvalidateMappingProfile drops a cached mapping profile
func (cs *CacheService) InvalidateMappingProfile(ctx context.Context, id string) error {
	return cs.Delete(ctx, BuildMappingProfileKey(id))
}

// BuildMappingProfileKey builds the cache key of a mapping profile
func BuildMappingProfileKey(id string) string {
	return fmt.Sprintf("ingestion:mapping_profile:%s", id)
}

// Common cache errors
var (
	ErrCacheMiss = fmt.Errorf("cache miss")
)

package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"mediaOrchestrator/orchestrator/models"
)

const (
	statusKeyPrefix   = "job:status:"
	activityKeyPrefix = "job:activity:"
	statusTTL         = 24 * time.Hour
)

// StatusCache mirrors job status and streaming activity into Redis so the
// admin surface can answer status queries without loading job records.
type StatusCache struct {
	client *redis.Client
}

func Connect(addr string) (*StatusCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &StatusCache{client: client}, nil
}

func (c *StatusCache) SetStatus(ctx context.Context, jobID int64, status models.JobStatus) error {
	key := statusKeyPrefix + strconv.FormatInt(jobID, 10)
	return c.client.Set(ctx, key, string(status), statusTTL).Err()
}

func (c *StatusCache) GetStatus(ctx context.Context, jobID int64) (models.JobStatus, error) {
	key := statusKeyPrefix + strconv.FormatInt(jobID, 10)
	v, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return "", err
	}
	return models.JobStatus(v), nil
}

func (c *StatusCache) SetActivity(ctx context.Context, jobID int64, frame int, ts time.Time) error {
	key := activityKeyPrefix + strconv.FormatInt(jobID, 10)
	if err := c.client.HSet(ctx, key, map[string]interface{}{
		"frame": frame,
		"time":  ts.UnixMilli(),
	}).Err(); err != nil {
		return err
	}
	return c.client.Expire(ctx, key, statusTTL).Err()
}

func (c *StatusCache) Close() error {
	return c.client.Close()
}

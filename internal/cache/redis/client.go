package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sentinel-ng/backend/internal/storage/models"
	"github.com/sentinel-ng/backend/pkg/logger"
)

const statsKey = "incidents:stats"

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetStats(ctx context.Context, stats *models.IncidentStats, ttl time.Duration) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	err = c.client.Set(ctx, statsKey, data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to cache stats: %w", err)
	}

	logger.Debug("Stats cached", zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetStats(ctx context.Context) (*models.IncidentStats, bool, error) {
	data, err := c.client.Get(ctx, statsKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached stats: %w", err)
	}

	var stats models.IncidentStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached stats: %w", err)
	}

	logger.Debug("Stats cache hit")
	return &stats, true, nil
}

// InvalidateStats drops the cached statistics after a new incident lands.
func (c *Client) InvalidateStats(ctx context.Context) error {
	if err := c.client.Del(ctx, statsKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate stats cache: %w", err)
	}
	return nil
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLinkNotFound is returned when a download link is missing or expired.
var ErrLinkNotFound = errors.New("download link not found")

// Client wraps Redis operations for the download link registry. Links are
// keyed by download id and expire on their own via TTL.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func linkKey(downloadID string) string {
	return fmt.Sprintf("download:%s", downloadID)
}

func jobLinkKey(jobID string) string {
	return fmt.Sprintf("job_download:%s", jobID)
}

// RegisterDownload maps a download id to the packaged file path with a TTL,
// and records the reverse mapping from job id for lookups by job.
func (c *Client) RegisterDownload(
	ctx context.Context,
	downloadID, jobID, filePath string,
	ttl time.Duration,
) error {
	if err := c.rdb.Set(ctx, linkKey(downloadID), filePath, ttl).Err(); err != nil {
		return fmt.Errorf("failed to register download: %w", err)
	}
	if jobID != "" {
		if err := c.rdb.Set(ctx, jobLinkKey(jobID), downloadID, ttl).Err(); err != nil {
			return fmt.Errorf("failed to register job link: %w", err)
		}
	}
	return nil
}

// ResolveDownload returns the packaged file path for a download id.
func (c *Client) ResolveDownload(ctx context.Context, downloadID string) (string, error) {
	val, err := c.rdb.Get(ctx, linkKey(downloadID)).Result()
	if err == redis.Nil {
		return "", ErrLinkNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve download: %w", err)
	}
	return val, nil
}

// DownloadIDForJob returns the download id registered for a job.
func (c *Client) DownloadIDForJob(ctx context.Context, jobID string) (string, error) {
	val, err := c.rdb.Get(ctx, jobLinkKey(jobID)).Result()
	if err == redis.Nil {
		return "", ErrLinkNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up job link: %w", err)
	}
	return val, nil
}

// ExpireDownload removes a download link before its TTL runs out.
func (c *Client) ExpireDownload(ctx context.Context, downloadID string) error {
	return c.rdb.Del(ctx, linkKey(downloadID)).Err()
}

// Health checks the Redis connection.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

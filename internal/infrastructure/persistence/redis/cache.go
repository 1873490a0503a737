// Package redis implements the Redis side of the records hub: the course
// classification cache, the per-course classification lock and the key
// layout shared with the job queue.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss is returned when the requested key is not cached.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection is returned when Redis cannot be reached.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization wraps JSON encoding failures.
	ErrCacheSerialization = errors.New("cache: serialization failed")
)

// Default TTLs.
const (
	TTLClassificationCache = 10 * time.Minute
	TTLCourseLock          = 2 * time.Minute
	TTLJobStatus           = 24 * time.Hour
)

// Config holds Redis connection settings. Zero values fall back to the
// go-redis defaults.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns the Redis address in "host:port" form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		MaxRetries:   3,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

// Cache stores JSON values under the records hub keyspace and hands its
// client to the course lock and the job queue.
type Cache struct {
	client *redis.Client
}

// NewCache connects to Redis and verifies the connection.
func NewCache(ctx context.Context, cfg Config) (*Cache, error) {
	client := redis.NewClient(cfg.options())
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrCacheConnection, cfg.Addr(), err)
	}
	return &Cache{client: client}, nil
}

// Client returns the underlying Redis client.
func (c *Cache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// SetJSON stores value encoded as JSON.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetJSON decodes the value stored under key into dest.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return nil
}

// DeleteMatching removes every key matching pattern, in SCAN batches.
func (c *Cache) DeleteMatching(ctx context.Context, pattern string) error {
	const batch = 100

	keys := make([]string, 0, batch)
	iter := c.client.Scan(ctx, 0, pattern, batch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == batch {
			if err := c.client.Unlink(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return c.client.Unlink(ctx, keys...).Err()
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// KEYS
// ══════════════════════════════════════════════════════════════════════════════

const keyspace = "records:"

// ClassificationKey addresses a cached classification list of one cache
// version; an empty poleID addresses the whole course.
func ClassificationKey(courseID string, version int64, poleID string) string {
	if poleID == "" {
		poleID = "all"
	}
	return keyspace + "classification:" + courseID + ":v" + strconv.FormatInt(version, 10) + ":" + poleID
}

// ClassificationVersionKey holds the cache version of a course. It lives
// outside ClassificationPattern so invalidation never resets it.
func ClassificationVersionKey(courseID string) string {
	return keyspace + "classification-version:" + courseID
}

// ClassificationPattern matches every cached list of a course.
func ClassificationPattern(courseID string) string {
	return keyspace + "classification:" + courseID + ":*"
}

// CourseLockKey is the lock guarding one aggregation of a course.
func CourseLockKey(courseID string) string {
	return keyspace + "lock:classification:" + courseID
}

// QueueKey is the pending list of a job queue.
func QueueKey(name string) string {
	return keyspace + "queue:" + name
}

// DeadLetterKey is the list of jobs that exhausted their attempts.
func DeadLetterKey(name string) string {
	return QueueKey(name) + ":dead"
}

// JobKey is the status hash of a job.
func JobKey(jobID string) string {
	return keyspace + "job:" + jobID
}

package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/academic-records/records-hub/internal/domain/classification"
)

// ClassificationCache caches course classification lists.
//
// Lists are stored under the current version of their course. InvalidateCourse
// bumps the version, so a list loaded before a recompute and written after
// it lands under a dead key and expires unread.
type ClassificationCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewClassificationCache creates a ClassificationCache.
// A non-positive ttl falls back to TTLClassificationCache.
func NewClassificationCache(cache *Cache, ttl time.Duration) *ClassificationCache {
	if ttl <= 0 {
		ttl = TTLClassificationCache
	}
	return &ClassificationCache{cache: cache, ttl: ttl}
}

// GetCourse returns the cached list for a course and pole together with the
// course version. The version is valid on a miss too.
func (c *ClassificationCache) GetCourse(ctx context.Context, courseID, poleID string) ([]*classification.Classification, int64, bool, error) {
	version, err := c.version(ctx, courseID)
	if err != nil {
		return nil, 0, false, err
	}

	var items []*classification.Classification
	err = c.cache.GetJSON(ctx, ClassificationKey(courseID, version, poleID), &items)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, version, false, nil
		}
		return nil, version, false, err
	}
	return items, version, true, nil
}

// SetCourse stores the list for a course and pole under version.
func (c *ClassificationCache) SetCourse(ctx context.Context, courseID, poleID string, version int64, items []*classification.Classification) error {
	if items == nil {
		items = []*classification.Classification{}
	}
	return c.cache.SetJSON(ctx, ClassificationKey(courseID, version, poleID), items, c.ttl)
}

// InvalidateCourse moves the course to a new version and drops the lists of
// the old ones.
func (c *ClassificationCache) InvalidateCourse(ctx context.Context, courseID string) error {
	if err := c.cache.Client().Incr(ctx, ClassificationVersionKey(courseID)).Err(); err != nil {
		return err
	}
	return c.cache.DeleteMatching(ctx, ClassificationPattern(courseID))
}

func (c *ClassificationCache) version(ctx context.Context, courseID string) (int64, error) {
	v, err := c.cache.Client().Get(ctx, ClassificationVersionKey(courseID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

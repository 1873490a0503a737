package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/academic-records/records-hub/internal/domain/shared"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lock only while it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// CourseLockConfig configures CourseLock.
type CourseLockConfig struct {
	// TTL bounds how long a crashed holder keeps the lock. A live holder
	// extends it every RenewInterval until unlock.
	TTL time.Duration

	// RenewInterval defaults to TTL/3.
	RenewInterval time.Duration

	// Wait is how long Lock polls before giving up with ErrCourseBusy.
	Wait time.Duration

	// PollInterval is the delay between acquisition attempts.
	PollInterval time.Duration

	Logger *slog.Logger
}

// DefaultCourseLockConfig returns default lock settings.
func DefaultCourseLockConfig() CourseLockConfig {
	return CourseLockConfig{
		TTL:          TTLCourseLock,
		Wait:         5 * time.Second,
		PollInterval: 100 * time.Millisecond,
	}
}

// CourseLock is a Redis lock that allows one aggregation per course
// across every worker process.
type CourseLock struct {
	client *redis.Client
	config CourseLockConfig
}

// NewCourseLock creates a CourseLock.
func NewCourseLock(client *redis.Client, config CourseLockConfig) *CourseLock {
	defaults := DefaultCourseLockConfig()
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.Wait < 0 {
		config.Wait = 0
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.RenewInterval <= 0 || config.RenewInterval >= config.TTL {
		config.RenewInterval = config.TTL / 3
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &CourseLock{client: client, config: config}
}

// Lock acquires the lock of a course.
// It returns shared.ErrCourseBusy when the lock stays taken for the whole wait.
func (l *CourseLock) Lock(ctx context.Context, courseID string) (func(), error) {
	key := CourseLockKey(courseID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.config.Wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.config.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("course lock %s: %w", courseID, err)
		}
		if ok {
			return l.hold(courseID, key, token), nil
		}

		if !time.Now().Before(deadline) {
			return nil, shared.WrapError("classification", "Lock", shared.ErrCourseBusy, "course "+courseID, nil)
		}

		timer := time.NewTimer(l.config.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, shared.WrapError("classification", "Lock", shared.ErrCourseBusy, "course "+courseID, ctx.Err())
		case <-timer.C:
		}
	}
}

// hold keeps the acquired lock alive and returns its release function.
func (l *CourseLock) hold(courseID, key, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.renew(courseID, key, token, stop)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			// Release must not depend on the caller's context being alive.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
		})
	}
}

// renew extends the lock TTL until stop is closed or the lock is lost.
func (l *CourseLock) renew(courseID, key, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.config.RenewInterval)
	defer ticker.Stop()

	ttl := l.config.TTL.Milliseconds()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), l.config.RenewInterval)
		n, err := renewScript.Run(ctx, l.client, []string{key}, token, ttl).Int()
		cancel()
		switch {
		case err != nil:
			// Transient: the next tick retries while the TTL still holds.
			l.config.Logger.Warn("course lock renew failed", "course_id", courseID, "error", err)
		case n == 0:
			l.config.Logger.Error("course lock lost", "course_id", courseID)
			return
		}
	}
}

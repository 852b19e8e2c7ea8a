package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// statusTTL bounds how long a task status mirror lives; the Postgres row is
// the durable record.
const statusTTL = time.Hour

// Repo backs both the result cache store and the fast-path task status
// mirror.
type Repo struct {
	client *redis.Client
}

func NewRepo(client *redis.Client) *Repo {
	return &Repo{client: client}
}

// Get returns the value for key, reporting misses (including lazily expired
// keys) as absent rather than as errors.
func (r *Repo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// SetEx stores value under key with the given expiry.
func (r *Repo) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Ping probes backend liveness.
func (r *Repo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// SetTaskStatus mirrors a task's state for cheap polling.
func (r *Repo) SetTaskStatus(ctx context.Context, taskID, status string) error {
	return r.client.Set(ctx, "task_status:"+taskID, status, statusTTL).Err()
}

// GetTaskStatus returns the mirrored state, or "" when the mirror is absent.
func (r *Repo) GetTaskStatus(ctx context.Context, taskID string) (string, error) {
	status, err := r.client.Get(ctx, "task_status:"+taskID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return status, err
}

// Package queue moves session events through Redis lists for the background
// workers, and fans graded results out on pub/sub for live dashboards.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/smarttest/smarttest-backend/internal/config"
	"github.com/smarttest/smarttest-backend/internal/model"
)

// RedisQueue implements service.ResultSink and service.AutosaveQueue.
type RedisQueue struct {
	rdb redis.Cmdable
}

// NewRedisQueue creates a new RedisQueue.
func NewRedisQueue(rdb redis.Cmdable) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

// EnqueueAutosave pushes a snapshot onto the progress persistence queue.
func (q *RedisQueue) EnqueueAutosave(ctx context.Context, job model.AutosaveJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode autosave job: %w", err)
	}
	return q.rdb.RPush(ctx, config.WorkerKey.PersistProgressQueue, raw).Err()
}

// PublishResult queues the event for the leaderboard worker and announces it
// on the school's results channel in one pipeline.
func (q *RedisQueue) PublishResult(ctx context.Context, ev model.ResultEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode result event: %w", err)
	}

	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, config.WorkerKey.ResultEventsQueue, raw)
		pipe.Publish(ctx, config.CacheKey.SchoolResultsChannel(ev.SchoolID), raw)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	return nil
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/smarttest/smarttest-backend/internal/config"
	"github.com/smarttest/smarttest-backend/internal/model"
)

const (
	// AutosaveRetryDelay is how long the worker backs off after a failed write.
	AutosaveRetryDelay = 5 * time.Second
	// AutosaveMaxRetries caps how often one job goes back on the queue.
	AutosaveMaxRetries = 12
)

// AutosaveApplier writes a queued snapshot to the progress store.
type AutosaveApplier interface {
	ApplyAutosave(ctx context.Context, job model.AutosaveJob) error
}

// AutosaveWorker consumes persist_progress_queue and replays snapshots the
// request path could not write.
type AutosaveWorker struct {
	applier   AutosaveApplier
	rdb       redis.Cmdable
	permanent func(error) bool
	log       zerolog.Logger
	sleep     func(time.Duration)
}

// NewAutosaveWorker creates a new AutosaveWorker. Jobs failing with an error
// for which permanent returns true are dropped instead of requeued.
func NewAutosaveWorker(applier AutosaveApplier, rdb redis.Cmdable, permanent func(error) bool, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		applier:   applier,
		rdb:       rdb,
		permanent: permanent,
		log:       log.With().Str("component", "autosave_worker").Logger(),
		sleep:     time.Sleep,
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistProgressQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if retry := w.handle(ctx, result[1]); retry != "" {
		w.rdb.RPush(context.WithoutCancel(ctx), config.WorkerKey.PersistProgressQueue, retry)
		w.sleep(AutosaveRetryDelay)
	}
}

// handle applies one raw job. It returns the payload to requeue, or "" when
// the job is done or dropped.
func (w *AutosaveWorker) handle(ctx context.Context, raw string) string {
	var job model.AutosaveJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error")
		return ""
	}

	err := w.applier.ApplyAutosave(ctx, job)
	switch {
	case err == nil:
		w.log.Debug().Str("key", job.Key.String()).Msg("Queued autosave applied")
		return ""
	case w.permanent != nil && w.permanent(err):
		w.log.Warn().Err(err).
			Str("key", job.Key.String()).
			Time("queued_at", job.QueuedAt).
			Msg("Dropping autosave that no longer applies")
		return ""
	case job.Retries >= AutosaveMaxRetries:
		w.log.Error().Err(err).
			Str("key", job.Key.String()).
			Int("retries", job.Retries).
			Msg("Dropping autosave after too many retries")
		return ""
	}

	job.Retries++
	next, merr := json.Marshal(job)
	if merr != nil {
		w.log.Error().Err(merr).Msg("Marshal error")
		return ""
	}
	w.log.Error().Err(err).
		Str("key", job.Key.String()).
		Int("retries", job.Retries).
		Msg("Persist error, retrying in 5s")
	return string(next)
}

// drain processes all remaining items in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistProgressQueue).Result()
		if err != nil {
			break
		}
		if retry := w.handle(ctx, raw); retry != "" {
			w.rdb.RPush(ctx, config.WorkerKey.PersistProgressQueue, retry)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

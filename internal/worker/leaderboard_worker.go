package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/smarttest/smarttest-backend/internal/config"
	"github.com/smarttest/smarttest-backend/internal/model"
)

const (
	LeaderboardBatchSize    = 50
	LeaderboardBatchTimeout = 2 * time.Second
	LeaderboardPollTimeout  = 1 * time.Second
)

// Execer runs a statement without returning rows. *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// LeaderboardWorker folds graded results from result_events_queue into the
// leaderboard table, keeping each student's best percentage per subject.
type LeaderboardWorker struct {
	db  Execer
	rdb redis.Cmdable
	log zerolog.Logger
}

func NewLeaderboardWorker(db Execer, rdb redis.Cmdable, log zerolog.Logger) *LeaderboardWorker {
	return &LeaderboardWorker{
		db:  db,
		rdb: rdb,
		log: log.With().Str("component", "leaderboard_worker").Logger(),
	}
}

// standing is the pre-aggregated leaderboard delta of one student and subject.
type standing struct {
	StudentID int64   `json:"student_id"`
	SubjectID int64   `json:"subject_id"`
	SchoolID  int64   `json:"school_id"`
	ClassName string  `json:"class_name"`
	Best      float64 `json:"best"`
	Attempts  int     `json:"attempts"`
}

// ─── Worker loop with batching ──────────────────────────────────────

func (w *LeaderboardWorker) Start(ctx context.Context) {
	w.log.Info().Msg("LeaderboardWorker started")

	batch := make([]model.ResultEvent, 0, LeaderboardBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= LeaderboardBatchSize || time.Since(lastFlush) >= LeaderboardBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, LeaderboardPollTimeout, config.WorkerKey.ResultEventsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			var ev model.ResultEvent
			if err := json.Unmarshal([]byte(item[1]), &ev); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			if ev.Status != model.ResultStatusGraded || ev.Percentage == nil {
				continue
			}

			batch = append(batch, ev)
		}
	}
}

// aggregate collapses a batch to one row per student and subject so the bulk
// upsert never touches the same key twice.
func aggregate(batch []model.ResultEvent) []standing {
	type key struct{ student, subject, school int64 }

	index := make(map[key]int, len(batch))
	out := make([]standing, 0, len(batch))

	for _, ev := range batch {
		if ev.Percentage == nil {
			continue
		}
		k := key{ev.StudentID, ev.SubjectID, ev.SchoolID}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, standing{
				StudentID: ev.StudentID,
				SubjectID: ev.SubjectID,
				SchoolID:  ev.SchoolID,
				ClassName: ev.ClassName,
				Best:      *ev.Percentage,
				Attempts:  1,
			})
			continue
		}
		out[i].Attempts++
		out[i].ClassName = ev.ClassName
		if *ev.Percentage > out[i].Best {
			out[i].Best = *ev.Percentage
		}
	}
	return out
}

// ─── Batch upsert wrapper ───────────────────────────────────────────

func (w *LeaderboardWorker) flushSafe(ctx context.Context, batch []model.ResultEvent) {
	rows := aggregate(batch)
	if len(rows) == 0 {
		return
	}

	if err := w.bulkUpsert(ctx, rows); err != nil {
		w.log.Warn().Err(err).Msg("bulk leaderboard upsert failed, using fallback")

		for i := range rows {
			if err := w.upsertSingle(ctx, &rows[i]); err != nil {
				w.log.Error().Err(err).
					Int64("student_id", rows[i].StudentID).
					Int64("subject_id", rows[i].SubjectID).
					Msg("upsertSingle failed, requeueing")
				w.requeue(ctx, &rows[i])
			}
		}
		return
	}

	w.log.Debug().Int("rows", len(rows)).Int("events", len(batch)).Msg("Leaderboard updated")
}

// requeue pushes a failed row back as a synthetic event so it is merged on
// the next flush.
func (w *LeaderboardWorker) requeue(ctx context.Context, s *standing) {
	pct := s.Best
	for i := 0; i < s.Attempts; i++ {
		raw, _ := json.Marshal(model.ResultEvent{
			StudentID:  s.StudentID,
			SubjectID:  s.SubjectID,
			SchoolID:   s.SchoolID,
			ClassName:  s.ClassName,
			Status:     model.ResultStatusGraded,
			Percentage: &pct,
		})
		w.rdb.RPush(context.WithoutCancel(ctx), config.WorkerKey.ResultEventsQueue, raw)
	}
}

// ─── Bulk PostgreSQL upsert using UNNEST ────────────────────────────

const leaderboardUpsert = `
	INSERT INTO leaderboard AS l (student_id, subject_id, school_id, class_name, best_percentage, attempts, updated_at)
	SELECT u.student_id, u.subject_id, u.school_id, u.class_name, u.best, u.attempts, NOW()
	FROM UNNEST(
		$1::bigint[],
		$2::bigint[],
		$3::bigint[],
		$4::text[],
		$5::numeric[],
		$6::int[]
	) AS u (student_id, subject_id, school_id, class_name, best, attempts)
	ON CONFLICT (student_id, subject_id, school_id) DO UPDATE
	SET best_percentage = GREATEST(l.best_percentage, EXCLUDED.best_percentage),
	    attempts        = l.attempts + EXCLUDED.attempts,
	    class_name      = EXCLUDED.class_name,
	    updated_at      = NOW()
`

func (w *LeaderboardWorker) bulkUpsert(ctx context.Context, rows []standing) error {
	n := len(rows)
	students := make([]int64, n)
	subjects := make([]int64, n)
	schools := make([]int64, n)
	classes := make([]string, n)
	best := make([]float64, n)
	attempts := make([]int32, n)

	for i, r := range rows {
		students[i] = r.StudentID
		subjects[i] = r.SubjectID
		schools[i] = r.SchoolID
		classes[i] = r.ClassName
		best[i] = r.Best
		attempts[i] = int32(r.Attempts)
	}

	_, err := w.db.Exec(ctx, leaderboardUpsert, students, subjects, schools, classes, best, attempts)
	return err
}

// ─── Fallback single upsert ─────────────────────────────────────────

func (w *LeaderboardWorker) upsertSingle(ctx context.Context, r *standing) error {
	_, err := w.db.Exec(ctx,
		`INSERT INTO leaderboard AS l (student_id, subject_id, school_id, class_name, best_percentage, attempts, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (student_id, subject_id, school_id) DO UPDATE
		 SET best_percentage = GREATEST(l.best_percentage, EXCLUDED.best_percentage),
		     attempts        = l.attempts + EXCLUDED.attempts,
		     class_name      = EXCLUDED.class_name,
		     updated_at      = NOW()`,
		r.StudentID, r.SubjectID, r.SchoolID, r.ClassName, r.Best, r.Attempts,
	)
	return err
}

package repository

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

// CachedQuestionBank keeps question pools in Redis for a short TTL so a
// class starting a test together does not hit PostgreSQL once per student.
// Redis failures fall through to the wrapped bank.
type CachedQuestionBank struct {
	next QuestionBank
	rdb  redis.Cmdable
	ttl  time.Duration
	log  zerolog.Logger
}

// NewCachedQuestionBank wraps next with a Redis read-through cache.
func NewCachedQuestionBank(next QuestionBank, rdb redis.Cmdable, ttl time.Duration, log zerolog.Logger) *CachedQuestionBank {
	return &CachedQuestionBank{
		next: next,
		rdb:  rdb,
		ttl:  ttl,
		log:  log.With().Str("component", "question_bank_cache").Logger(),
	}
}

// GetObjectiveQuestions implements QuestionBank.
func (b *CachedQuestionBank) GetObjectiveQuestions(ctx context.Context, schoolID int64, className string, subjectID int64) ([]model.Question, error) {
	key := config.CacheKey.QuestionPoolKey(schoolID, className, subjectID, string(model.TestTypeObjective))
	return readThrough(ctx, b, key, func() ([]model.Question, error) {
		return b.next.GetObjectiveQuestions(ctx, schoolID, className, subjectID)
	})
}

// GetSubjectiveQuestions implements QuestionBank.
func (b *CachedQuestionBank) GetSubjectiveQuestions(ctx context.Context, schoolID int64, className string, subjectID int64) ([]model.SubjectiveQuestion, error) {
	key := config.CacheKey.QuestionPoolKey(schoolID, className, subjectID, string(model.TestTypeSubjective))
	return readThrough(ctx, b, key, func() ([]model.SubjectiveQuestion, error) {
		return b.next.GetSubjectiveQuestions(ctx, schoolID, className, subjectID)
	})
}

// Invalidate drops both cached pools of a class and subject.
func (b *CachedQuestionBank) Invalidate(ctx context.Context, schoolID int64, className string, subjectID int64) error {
	return b.rdb.Del(ctx,
		config.CacheKey.QuestionPoolKey(schoolID, className, subjectID, string(model.TestTypeObjective)),
		config.CacheKey.QuestionPoolKey(schoolID, className, subjectID, string(model.TestTypeSubjective)),
	).Err()
}

func readThrough[T any](ctx context.Context, b *CachedQuestionBank, key string, load func() ([]T, error)) ([]T, error) {
	raw, err := b.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var list []T
		if err := json.Unmarshal(raw, &list); err == nil {
			return list, nil
		}
		b.log.Warn().Str("key", key).Msg("Discarding undecodable cached question pool")
	case errors.Is(err, redis.Nil):
		b.log.Debug().Str("key", key).Msg("Question pool cache miss")
	default:
		b.log.Warn().Err(err).Str("key", key).Msg("Question pool cache unavailable")
	}

	list, err := load()
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return list, nil
	}

	if payload, err := json.Marshal(list); err == nil {
		if err := b.rdb.Set(ctx, key, payload, b.ttl).Err(); err != nil {
			b.log.Warn().Err(err).Str("key", key).Msg("Failed to cache question pool")
		}
	}
	return list, nil
}

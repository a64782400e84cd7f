package repository

import (
	"context"
	"time"

	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/pkg/cache"
)

// cachedQuizRepo 测验按 ID 读取走 cache-aside，所有写操作后失效
type cachedQuizRepo struct {
	QuizRepository
	cache cache.Client
	ttl   time.Duration
}

func NewCachedQuizRepo(inner QuizRepository, c cache.Client, ttl time.Duration) QuizRepository {
	return &cachedQuizRepo{QuizRepository: inner, cache: c, ttl: ttl}
}

func quizCacheKey(id string) string {
	return "quiz:" + id
}

func (r *cachedQuizRepo) FindByID(ctx context.Context, id string) (*model.Quiz, error) {
	return cache.CacheOrExecute(ctx, r.cache, quizCacheKey(id), r.ttl, func() (*model.Quiz, error) {
		return r.QuizRepository.FindByID(ctx, id)
	})
}

func (r *cachedQuizRepo) UpdateStatus(ctx context.Context, id string, from []model.QuizStatus, to model.QuizStatus, at time.Time) error {
	defer r.invalidate(ctx, id)
	return r.QuizRepository.UpdateStatus(ctx, id, from, to, at)
}

func (r *cachedQuizRepo) UpdateSchedule(ctx context.Context, id string, upd ScheduleUpdate) (*model.Quiz, error) {
	defer r.invalidate(ctx, id)
	return r.QuizRepository.UpdateSchedule(ctx, id, upd)
}

func (r *cachedQuizRepo) SetQuestionCount(ctx context.Context, id string, count int) error {
	defer r.invalidate(ctx, id)
	return r.QuizRepository.SetQuestionCount(ctx, id, count)
}

func (r *cachedQuizRepo) invalidate(ctx context.Context, id string) {
	_ = r.cache.Delete(ctx, quizCacheKey(id))
}

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/pkg/apperr"
)

// ScheduleUpdate 一次已校验的排期写入。
// ExpectedStatus/ExpectedStart 是读取时的值，用于条件更新。
type ScheduleUpdate struct {
	ExpectedStatus model.SchedulingStatus
	ExpectedStart  *time.Time
	NewStatus      model.SchedulingStatus
	StartTime      time.Time
	Timezone       string
	Duration       int
	Actor          string
	At             time.Time
}

// QuizRepository 测验数据访问接口
type QuizRepository interface {
	Create(ctx context.Context, quiz *model.Quiz) error
	FindByID(ctx context.Context, id string) (*model.Quiz, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Quiz, error)
	ListByEducator(ctx context.Context, educatorID string) ([]model.Quiz, error)
	// UpdateStatus 仅当当前状态属于 from 时更新
	UpdateStatus(ctx context.Context, id string, from []model.QuizStatus, to model.QuizStatus, at time.Time) error
	// UpdateSchedule 条件更新排期并写入审计日志，二者在同一事务中
	UpdateSchedule(ctx context.Context, id string, upd ScheduleUpdate) (*model.Quiz, error)
	ListScheduleLogs(ctx context.Context, quizID string) ([]model.QuizScheduleLog, error)
	// SetQuestionCount 记录出题任务生成的题目数
	SetQuestionCount(ctx context.Context, id string, count int) error
}

type quizRepo struct {
	db *gorm.DB
}

func NewQuizRepo(db *gorm.DB) QuizRepository {
	return &quizRepo{db: db}
}

func (r *quizRepo) Create(ctx context.Context, quiz *model.Quiz) error {
	return r.db.WithContext(ctx).Create(quiz).Error
}

func (r *quizRepo) FindByID(ctx context.Context, id string) (*model.Quiz, error) {
	var q model.Quiz
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *quizRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Quiz, error) {
	var list []model.Quiz
	if len(ids) == 0 {
		return list, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *quizRepo) ListByEducator(ctx context.Context, educatorID string) ([]model.Quiz, error) {
	var list []model.Quiz
	err := r.db.WithContext(ctx).
		Where("educator_id = ?", educatorID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *quizRepo) UpdateStatus(ctx context.Context, id string, from []model.QuizStatus, to model.QuizStatus, at time.Time) error {
	updates := map[string]interface{}{"status": to}
	if to == model.QuizPublished {
		updates["published_at"] = at
	}
	result := r.db.WithContext(ctx).Model(&model.Quiz{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.ErrOptimisticLock
	}
	return nil
}

func (r *quizRepo) UpdateSchedule(ctx context.Context, id string, upd ScheduleUpdate) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&model.Quiz{}).Where("id = ? AND scheduling_status = ?", id, upd.ExpectedStatus)
		if upd.ExpectedStart == nil {
			q = q.Where("start_time IS NULL")
		} else {
			q = q.Where("start_time = ?", *upd.ExpectedStart)
		}
		result := q.Updates(map[string]interface{}{
			"start_time":        upd.StartTime,
			"timezone":          upd.Timezone,
			"duration":          upd.Duration,
			"scheduling_status": upd.NewStatus,
			"scheduled_by":      upd.Actor,
			"scheduled_at":      upd.At,
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperr.ErrOptimisticLock
		}

		log := &model.QuizScheduleLog{
			QuizID:            id,
			FromStatus:        upd.ExpectedStatus,
			ToStatus:          upd.NewStatus,
			PreviousStartTime: upd.ExpectedStart,
			NewStartTime:      upd.StartTime,
			Timezone:          upd.Timezone,
			Duration:          upd.Duration,
			ScheduledBy:       upd.Actor,
			ScheduledAt:       upd.At,
		}
		if err := tx.Create(log).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&quiz).Error
	})
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *quizRepo) ListScheduleLogs(ctx context.Context, quizID string) ([]model.QuizScheduleLog, error) {
	var logs []model.QuizScheduleLog
	err := r.db.WithContext(ctx).
		Where("quiz_id = ?", quizID).
		Order("scheduled_at DESC").
		Find(&logs).Error
	return logs, err
}

func (r *quizRepo) SetQuestionCount(ctx context.Context, id string, count int) error {
	result := r.db.WithContext(ctx).Model(&model.Quiz{}).
		Where("id = ?", id).
		Update("question_count", count)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	// mysql 对未变化的行返回 0，需要再确认测验是否存在
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Quiz{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

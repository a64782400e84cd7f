package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/pkg/apperr"
)

// CompleteAttempt 提交作答时写入的结果
type CompleteAttempt struct {
	Answers        datatypes.JSON
	Score          float64
	TotalCorrect   int
	TotalQuestions int
	EndTime        time.Time
	TimeSpent      int
}

// AttemptRepository 作答数据访问接口
type AttemptRepository interface {
	FindByID(ctx context.Context, id string) (*model.QuizAttempt, error)
	// LatestByEnrollments 每个报名最近一次作答，key 为 EnrollmentID
	LatestByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string]*model.QuizAttempt, error)
	// CreateIfAbsent 报名下已有进行中的作答时直接返回（resumed=true），
	// 否则创建作答并把报名从 enrolled 推进到 in_progress
	CreateIfAbsent(ctx context.Context, attempt *model.QuizAttempt) (out *model.QuizAttempt, resumed bool, err error)
	// Complete in_progress -> completed，同时完成所属报名
	Complete(ctx context.Context, id string, res CompleteAttempt) error
	// Close 清理任务使用：in_progress -> timeout/abandoned，同时关闭所属报名
	Close(ctx context.Context, id string, to model.AttemptStatus, at time.Time) error
	ListInProgressCreatedBefore(ctx context.Context, before time.Time) ([]model.QuizAttempt, error)
	// ScanCompleted 分批遍历已完成的作答
	ScanCompleted(ctx context.Context, batchSize int, fn func([]model.QuizAttempt) error) error
	// RevertCompletion completed -> abandoned，同时回退所属报名
	RevertCompletion(ctx context.Context, id string) error
}

type attemptRepo struct {
	db *gorm.DB
}

func NewAttemptRepo(db *gorm.DB) AttemptRepository {
	return &attemptRepo{db: db}
}

func (r *attemptRepo) FindByID(ctx context.Context, id string) (*model.QuizAttempt, error) {
	var a model.QuizAttempt
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *attemptRepo) LatestByEnrollments(ctx context.Context, enrollmentIDs []string) (map[string]*model.QuizAttempt, error) {
	out := make(map[string]*model.QuizAttempt, len(enrollmentIDs))
	if len(enrollmentIDs) == 0 {
		return out, nil
	}
	var list []model.QuizAttempt
	err := r.db.WithContext(ctx).
		Where("enrollment_id IN ?", enrollmentIDs).
		Order("created_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	for i := range list {
		out[list[i].EnrollmentID] = &list[i]
	}
	return out, nil
}

func findInProgress(tx *gorm.DB, enrollmentID string) (*model.QuizAttempt, error) {
	var a model.QuizAttempt
	err := tx.Where("enrollment_id = ? AND status = ?", enrollmentID, model.AttemptInProgress).
		Order("created_at DESC").
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *attemptRepo) CreateIfAbsent(ctx context.Context, attempt *model.QuizAttempt) (*model.QuizAttempt, bool, error) {
	var out *model.QuizAttempt
	resumed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 锁住报名行，同一报名的并发开始请求在此排队
		var e model.Enrollment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", attempt.EnrollmentID).First(&e).Error; err != nil {
			return err
		}

		existing, err := findInProgress(tx, attempt.EnrollmentID)
		if err == nil {
			out, resumed = existing, true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		startedAt := time.Now()
		if attempt.StartTime != nil {
			startedAt = *attempt.StartTime
		}
		switch e.Status {
		case model.EnrollmentEnrolled:
			result := tx.Model(&model.Enrollment{}).
				Where("id = ? AND status = ?", e.ID, model.EnrollmentEnrolled).
				Updates(enrollmentStatusUpdates(model.EnrollmentInProgress, startedAt))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return apperr.ErrOptimisticLock
			}
		case model.EnrollmentInProgress:
			// 报名进行中但没有作答记录（例如作答被人工关闭），允许重新创建
		default:
			return apperr.ErrOptimisticLock
		}

		if err := tx.Create(attempt).Error; err != nil {
			return err
		}
		out = attempt
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 部分唯一索引兜底：另一请求已创建进行中的作答
		existing, findErr := findInProgress(r.db.WithContext(ctx), attempt.EnrollmentID)
		if findErr != nil {
			return nil, false, findErr
		}
		return existing, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, resumed, nil
}

func (r *attemptRepo) Complete(ctx context.Context, id string, res CompleteAttempt) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := r.transition(tx, id, model.AttemptInProgress, map[string]interface{}{
			"status":          model.AttemptCompleted,
			"answers":         res.Answers,
			"score":           res.Score,
			"total_correct":   res.TotalCorrect,
			"total_questions": res.TotalQuestions,
			"end_time":        res.EndTime,
			"time_spent":      res.TimeSpent,
		})
		if err != nil {
			return err
		}
		return transitionEnrollment(tx, a.EnrollmentID, model.EnrollmentInProgress, model.EnrollmentCompleted, res.EndTime)
	})
}

func (r *attemptRepo) Close(ctx context.Context, id string, to model.AttemptStatus, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := r.transition(tx, id, model.AttemptInProgress, map[string]interface{}{
			"status":   to,
			"end_time": at,
		})
		if err != nil {
			return err
		}
		err = transitionEnrollment(tx, a.EnrollmentID, model.EnrollmentInProgress, to.EnrollmentStatus(), at)
		// 报名可能已被其他作答推进，作答本身的关闭仍然有效
		if errors.Is(err, apperr.ErrOptimisticLock) {
			return nil
		}
		return err
	})
}

func (r *attemptRepo) RevertCompletion(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := r.transition(tx, id, model.AttemptCompleted, map[string]interface{}{
			"status": model.AttemptAbandoned,
		})
		if err != nil {
			return err
		}
		err = transitionEnrollment(tx, a.EnrollmentID, model.EnrollmentCompleted, model.EnrollmentAbandoned, time.Time{})
		if errors.Is(err, apperr.ErrOptimisticLock) {
			return nil
		}
		return err
	})
}

// transition 条件更新作答状态，返回更新前读取的记录
func (r *attemptRepo) transition(tx *gorm.DB, id string, from model.AttemptStatus, updates map[string]interface{}) (*model.QuizAttempt, error) {
	var a model.QuizAttempt
	if err := tx.Select("id", "enrollment_id").Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	result := tx.Model(&model.QuizAttempt{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, apperr.ErrOptimisticLock
	}
	return &a, nil
}

func transitionEnrollment(tx *gorm.DB, id string, from, to model.EnrollmentStatus, at time.Time) error {
	updates := map[string]interface{}{"status": to}
	if to == model.EnrollmentCompleted {
		updates["completed_at"] = at
	}
	if from == model.EnrollmentCompleted {
		updates["completed_at"] = nil
	}
	result := tx.Model(&model.Enrollment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.ErrOptimisticLock
	}
	return nil
}

func (r *attemptRepo) ListInProgressCreatedBefore(ctx context.Context, before time.Time) ([]model.QuizAttempt, error) {
	var list []model.QuizAttempt
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.AttemptInProgress, before).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *attemptRepo) ScanCompleted(ctx context.Context, batchSize int, fn func([]model.QuizAttempt) error) error {
	var batch []model.QuizAttempt
	result := r.db.WithContext(ctx).
		Where("status = ?", model.AttemptCompleted).
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		})
	return result.Error
}

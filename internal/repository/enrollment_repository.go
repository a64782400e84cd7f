package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/pkg/apperr"
)

// EnrollmentRepository 报名数据访问接口
type EnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*model.Enrollment, error)
	ListByQuizAndStudent(ctx context.Context, quizID, studentID string) ([]model.Enrollment, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.Enrollment, error)
	ListByQuiz(ctx context.Context, quizID string) ([]model.Enrollment, error)
	// CreateOriginalIfAbsent 已存在原始报名时返回已有记录，created=false
	CreateOriginalIfAbsent(ctx context.Context, e *model.Enrollment) (existing *model.Enrollment, created bool, err error)
	// CreateReassignment 在测验行锁内重新读取该学生的全部报名，由 build 校验并构造新记录
	CreateReassignment(ctx context.Context, quizID, studentID string, build func(rows []model.Enrollment) (*model.Enrollment, error)) (*model.Enrollment, error)
	// UpdateStatus 仅当当前状态为 from 时更新
	UpdateStatus(ctx context.Context, id string, from, to model.EnrollmentStatus, at time.Time) error
	// ListDuplicateOriginals 返回存在多条原始报名的 (测验, 学生) 的全部原始报名
	ListDuplicateOriginals(ctx context.Context) ([]model.Enrollment, error)
}

type enrollmentRepo struct {
	db *gorm.DB
}

func NewEnrollmentRepo(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepo{db: db}
}

func (r *enrollmentRepo) FindByID(ctx context.Context, id string) (*model.Enrollment, error) {
	var e model.Enrollment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *enrollmentRepo) ListByQuizAndStudent(ctx context.Context, quizID, studentID string) ([]model.Enrollment, error) {
	return listPair(r.db.WithContext(ctx), quizID, studentID)
}

func listPair(db *gorm.DB, quizID, studentID string) ([]model.Enrollment, error) {
	var list []model.Enrollment
	err := db.Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		Order("created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *enrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]model.Enrollment, error) {
	var list []model.Enrollment
	err := r.db.WithContext(ctx).Where("student_id = ?", studentID).Order("created_at ASC").Find(&list).Error
	return list, err
}

func (r *enrollmentRepo) ListByQuiz(ctx context.Context, quizID string) ([]model.Enrollment, error) {
	var list []model.Enrollment
	err := r.db.WithContext(ctx).Where("quiz_id = ?", quizID).Order("student_id ASC, created_at ASC").Find(&list).Error
	return list, err
}

// lockQuiz 对测验行加 FOR UPDATE 锁，串行化同一测验下的报名写入
func lockQuiz(tx *gorm.DB, quizID string) error {
	var q model.Quiz
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", quizID).
		First(&q).Error
}

func (r *enrollmentRepo) CreateOriginalIfAbsent(ctx context.Context, e *model.Enrollment) (*model.Enrollment, bool, error) {
	var existing *model.Enrollment
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockQuiz(tx, e.QuizID); err != nil {
			return err
		}
		var found model.Enrollment
		err := tx.Where("quiz_id = ? AND student_id = ? AND is_reassignment = ?", e.QuizID, e.StudentID, false).
			Order("created_at DESC").
			First(&found).Error
		if err == nil {
			existing = &found
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		e.IsReassignment = false
		if err := tx.Create(e).Error; err != nil {
			return err
		}
		existing = e
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return existing, created, nil
}

func (r *enrollmentRepo) CreateReassignment(ctx context.Context, quizID, studentID string, build func(rows []model.Enrollment) (*model.Enrollment, error)) (*model.Enrollment, error) {
	var out *model.Enrollment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockQuiz(tx, quizID); err != nil {
			return err
		}
		rows, err := listPair(tx, quizID, studentID)
		if err != nil {
			return err
		}
		e, err := build(rows)
		if err != nil {
			return err
		}
		e.IsReassignment = true
		if err := tx.Create(e).Error; err != nil {
			return err
		}
		out = e
		return nil
	})
	return out, err
}

func (r *enrollmentRepo) UpdateStatus(ctx context.Context, id string, from, to model.EnrollmentStatus, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.Enrollment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(enrollmentStatusUpdates(to, at))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.ErrOptimisticLock
	}
	return nil
}

func enrollmentStatusUpdates(to model.EnrollmentStatus, at time.Time) map[string]interface{} {
	updates := map[string]interface{}{"status": to}
	switch to {
	case model.EnrollmentInProgress:
		updates["started_at"] = at
	case model.EnrollmentCompleted:
		updates["completed_at"] = at
	}
	return updates
}

func (r *enrollmentRepo) ListDuplicateOriginals(ctx context.Context) ([]model.Enrollment, error) {
	dup := r.db.Model(&model.Enrollment{}).
		Select("quiz_id, student_id").
		Where("is_reassignment = ?", false).
		Group("quiz_id, student_id").
		Having("COUNT(*) > 1")

	var list []model.Enrollment
	err := r.db.WithContext(ctx).
		Where("is_reassignment = ?", false).
		Where("(quiz_id, student_id) IN (?)", dup).
		Order("quiz_id, student_id, created_at").
		Find(&list).Error
	return list, err
}

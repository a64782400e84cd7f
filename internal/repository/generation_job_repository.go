package repository

import (
	"context"

	"gorm.io/gorm"

	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/pkg/apperr"
)

// GenerationJobRepository 题目生成任务，替代进程内的全局任务表
type GenerationJobRepository interface {
	Create(ctx context.Context, job *model.GenerationJob) error
	FindByID(ctx context.Context, id string) (*model.GenerationJob, error)
	ListByEducator(ctx context.Context, educatorID string) ([]model.GenerationJob, error)
	// UpdateStatus 仅当当前状态属于 from 时更新，fields 为附加列
	UpdateStatus(ctx context.Context, id string, from []model.GenerationJobStatus, to model.GenerationJobStatus, fields map[string]interface{}) error
}

type generationJobRepo struct {
	db *gorm.DB
}

func NewGenerationJobRepo(db *gorm.DB) GenerationJobRepository {
	return &generationJobRepo{db: db}
}

func (r *generationJobRepo) Create(ctx context.Context, job *model.GenerationJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *generationJobRepo) FindByID(ctx context.Context, id string) (*model.GenerationJob, error) {
	var job model.GenerationJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *generationJobRepo) ListByEducator(ctx context.Context, educatorID string) ([]model.GenerationJob, error) {
	var jobs []model.GenerationJob
	err := r.db.WithContext(ctx).
		Where("educator_id = ?", educatorID).
		Order("created_at DESC").
		Find(&jobs).Error
	return jobs, err
}

func (r *generationJobRepo) UpdateStatus(ctx context.Context, id string, from []model.GenerationJobStatus, to model.GenerationJobStatus, fields map[string]interface{}) error {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	result := r.db.WithContext(ctx).Model(&model.GenerationJob{}).
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

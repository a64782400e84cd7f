package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/internal/repository"
	"scripture_quiz_backend/pkg/apperr"
)

type SubmitJobRequest struct {
	DocumentName string          `json:"documentName" binding:"required"`
	QuizID       *string         `json:"quizId"`
	Payload      json.RawMessage `json:"payload" swaggertype:"object"`
}

// JobCallbackRequest 生成服务回调的请求体
type JobCallbackRequest struct {
	Status        model.GenerationJobStatus `json:"status" binding:"required"`
	QuestionCount int                       `json:"questionCount"`
	Error         string                    `json:"error"`
}

type GenerationJobService struct {
	repo *repository.Repository
	log  *zap.Logger
	now  func() time.Time
}

func NewGenerationJobService(repo *repository.Repository, log *zap.Logger) *GenerationJobService {
	return &GenerationJobService{repo: repo, log: log, now: time.Now}
}

// SubmitJob 登记一个 pending 任务；实际的生成请求由外部服务发起
func (s *GenerationJobService) SubmitJob(ctx context.Context, actor Actor, req SubmitJobRequest) (*model.GenerationJob, error) {
	name := strings.TrimSpace(req.DocumentName)
	if name == "" {
		return nil, ErrDocumentRequired
	}
	if req.QuizID != nil && *req.QuizID != "" {
		quiz, err := s.repo.Quiz.FindByID(ctx, *req.QuizID)
		if err != nil {
			return nil, notFound(err, ErrQuizNotFound)
		}
		if !actor.owns(quiz) {
			return nil, ErrNotQuizOwner
		}
	} else {
		req.QuizID = nil
	}

	job := &model.GenerationJob{
		EducatorID:   actor.ID,
		QuizID:       req.QuizID,
		DocumentName: name,
		Status:       model.JobPending,
	}
	if len(req.Payload) > 0 {
		job.Payload = datatypes.JSON(req.Payload)
	}
	if err := s.repo.GenerationJob.Create(ctx, job); err != nil {
		return nil, err
	}
	s.log.Info("generation job submitted", zap.String("job_id", job.ID), zap.String("educator_id", actor.ID))
	return job, nil
}

func (s *GenerationJobService) GetJob(ctx context.Context, actor Actor, jobID string) (*model.GenerationJob, error) {
	job, err := s.repo.GenerationJob.FindByID(ctx, jobID)
	if err != nil {
		return nil, notFound(err, ErrJobNotFound)
	}
	if !actor.IsAdmin() && job.EducatorID != actor.ID {
		return nil, ErrNotJobOwner
	}
	return job, nil
}

func (s *GenerationJobService) ListJobs(ctx context.Context, actor Actor) ([]model.GenerationJob, error) {
	return s.repo.GenerationJob.ListByEducator(ctx, actor.ID)
}

// RecordCallback pending -> processing，pending/processing -> completed/failed。
// 终态不再改变；重复的终态回调返回 ErrJobFinished。
// 关联测验的任务完成时把题目数写入测验，作为计分分母。
func (s *GenerationJobService) RecordCallback(ctx context.Context, jobID string, req JobCallbackRequest) (*model.GenerationJob, error) {
	var from []model.GenerationJobStatus
	fields := map[string]interface{}{}
	switch req.Status {
	case model.JobProcessing:
		from = []model.GenerationJobStatus{model.JobPending}
	case model.JobCompleted:
		from = []model.GenerationJobStatus{model.JobPending, model.JobProcessing}
		fields["question_count"] = req.QuestionCount
	case model.JobFailed:
		from = []model.GenerationJobStatus{model.JobPending, model.JobProcessing}
		fields["error"] = req.Error
	default:
		return nil, ErrInvalidJobStatus
	}
	if req.Status.IsTerminal() {
		fields["completed_at"] = s.now().UTC()
	}

	job, err := s.repo.GenerationJob.FindByID(ctx, jobID)
	if err != nil {
		return nil, notFound(err, ErrJobNotFound)
	}
	if job.Status == req.Status && !req.Status.IsTerminal() {
		return job, nil
	}
	if job.Status.IsTerminal() {
		return nil, ErrJobFinished
	}

	// 先写题目数再结束任务：写入失败时任务仍可重试回调
	if req.Status == model.JobCompleted && job.QuizID != nil && req.QuestionCount > 0 {
		if err := s.repo.Quiz.SetQuestionCount(ctx, *job.QuizID, req.QuestionCount); err != nil {
			return nil, notFound(err, ErrQuizNotFound)
		}
	}

	if err := s.repo.GenerationJob.UpdateStatus(ctx, jobID, from, req.Status, fields); err != nil {
		if errors.Is(err, apperr.ErrOptimisticLock) {
			return nil, ErrJobFinished
		}
		return nil, err
	}
	s.log.Info("generation job updated",
		zap.String("job_id", jobID),
		zap.String("from", string(job.Status)),
		zap.String("to", string(req.Status)),
		zap.Int("question_count", req.QuestionCount))
	return s.repo.GenerationJob.FindByID(ctx, jobID)
}

package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"scripture_quiz_backend/internal/lifecycle"
	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/internal/repository"
	"scripture_quiz_backend/pkg/apperr"
	"scripture_quiz_backend/pkg/tracing"
)

// SubmitAttemptRequest IsCorrect 由作答端判定；TotalQuestions 仅在测验未记录题目数时使用
type SubmitAttemptRequest struct {
	Answers        []model.AttemptAnswer `json:"answers"`
	TotalQuestions int                   `json:"totalQuestions"`
}

// StartAttemptResult Resumed=true 表示返回的是已有的进行中作答
type StartAttemptResult struct {
	Attempt    *model.QuizAttempt `json:"attempt"`
	Resumed    bool               `json:"resumed"`
	Enrollment *model.Enrollment  `json:"enrollment"`
}

type AttemptService struct {
	repo *repository.Repository
	log  *zap.Logger
	now  func() time.Time
}

func NewAttemptService(repo *repository.Repository, log *zap.Logger) *AttemptService {
	return &AttemptService{repo: repo, log: log, now: time.Now}
}

// StartAttempt 开始作答；同一报名已有进行中的作答时直接返回该作答
func (s *AttemptService) StartAttempt(ctx context.Context, studentID, quizID string) (res *StartAttemptResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "AttemptService.StartAttempt", attribute.String("quiz.id", quizID))
	defer func() { tracing.End(span, err) }()

	quiz, err := s.repo.Quiz.FindByID(ctx, quizID)
	if err != nil {
		return nil, notFound(err, ErrQuizNotFound)
	}
	// 归档后重新分配也不能继续作答
	if quiz.Status != model.QuizPublished {
		return nil, lifecycle.ErrQuizNotPublished
	}
	rows, err := s.repo.Enrollment.ListByQuizAndStudent(ctx, quizID, studentID)
	if err != nil {
		return nil, err
	}
	eff := lifecycle.Resolve(rows)
	now := s.now().UTC()
	if err := lifecycle.CheckStart(quiz, eff, lifecycle.ComputeAvailability(quiz, now)); err != nil {
		return nil, err
	}

	attempt, resumed, err := s.repo.Attempt.CreateIfAbsent(ctx, &model.QuizAttempt{
		QuizID:       quizID,
		StudentID:    studentID,
		EnrollmentID: eff.Enrollment.ID,
		Status:       model.AttemptInProgress,
		StartTime:    &now,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrOptimisticLock) {
			return nil, lifecycle.ErrEnrollmentClosed
		}
		return nil, err
	}

	enrollment, err := s.repo.Enrollment.FindByID(ctx, eff.Enrollment.ID)
	if err != nil {
		return nil, err
	}
	if !resumed {
		s.log.Info("attempt started",
			zap.String("attempt_id", attempt.ID),
			zap.String("enrollment_id", enrollment.ID),
			zap.Bool("reassignment", enrollment.IsReassignment))
	}
	return &StartAttemptResult{Attempt: attempt, Resumed: resumed, Enrollment: enrollment}, nil
}

// SubmitAttempt 服务端计分并完成作答，同时完成所属报名
func (s *AttemptService) SubmitAttempt(ctx context.Context, studentID, attemptID string, req SubmitAttemptRequest) (out *model.QuizAttempt, err error) {
	ctx, span := tracing.StartSpan(ctx, "AttemptService.SubmitAttempt", attribute.String("attempt.id", attemptID))
	defer func() { tracing.End(span, err) }()

	attempt, err := s.repo.Attempt.FindByID(ctx, attemptID)
	if err != nil {
		return nil, notFound(err, ErrAttemptNotFound)
	}
	if attempt.StudentID != studentID {
		return nil, ErrNotAttemptOwner
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, lifecycle.ErrAttemptNotActive
	}

	quiz, err := s.repo.Quiz.FindByID(ctx, attempt.QuizID)
	if err != nil {
		return nil, notFound(err, ErrQuizNotFound)
	}
	total, err := lifecycle.QuestionTotal(quiz, req.TotalQuestions)
	if err != nil {
		return nil, err
	}
	score, correct, err := lifecycle.ScoreSubmission(req.Answers, total)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.ValidateCompletion(req.Answers, &score); err != nil {
		return nil, err
	}
	encoded, err := model.EncodeAnswers(req.Answers)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	spent := 0
	if attempt.StartTime != nil {
		spent = int(now.Sub(*attempt.StartTime).Seconds())
	}

	err = s.repo.Attempt.Complete(ctx, attemptID, repository.CompleteAttempt{
		Answers:        encoded,
		Score:          score,
		TotalCorrect:   correct,
		TotalQuestions: total,
		EndTime:        now,
		TimeSpent:      spent,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrOptimisticLock) {
			return nil, lifecycle.ErrAttemptNotActive
		}
		return nil, err
	}

	s.log.Info("attempt submitted",
		zap.String("attempt_id", attemptID),
		zap.Float64("score", score),
		zap.Int("correct", correct),
		zap.Int("total", total))
	return s.repo.Attempt.FindByID(ctx, attemptID)
}

// GetAttempt 学生只能读取自己的作答，教师只能读取自己测验下的作答
func (s *AttemptService) GetAttempt(ctx context.Context, actor Actor, attemptID string) (*model.QuizAttempt, error) {
	attempt, err := s.repo.Attempt.FindByID(ctx, attemptID)
	if err != nil {
		return nil, notFound(err, ErrAttemptNotFound)
	}
	if actor.IsAdmin() || attempt.StudentID == actor.ID {
		return attempt, nil
	}
	if actor.Role == model.Educator {
		quiz, err := s.repo.Quiz.FindByID(ctx, attempt.QuizID)
		if err != nil {
			return nil, notFound(err, ErrQuizNotFound)
		}
		if actor.owns(quiz) {
			return attempt, nil
		}
	}
	return nil, ErrNotAttemptOwner
}

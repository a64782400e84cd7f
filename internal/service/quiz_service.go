package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"scripture_quiz_backend/internal/lifecycle"
	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/internal/repository"
	"scripture_quiz_backend/pkg/apperr"
	"scripture_quiz_backend/pkg/tracing"
)

type CreateQuizRequest struct {
	Title             string          `json:"title" binding:"required"`
	Description       string          `json:"description"`
	Timezone          string          `json:"timezone"`
	Duration          int             `json:"duration" binding:"required"`
	QuestionCount     int             `json:"questionCount" binding:"min=0"`
	StartTime         *time.Time      `json:"startTime"`
	TimeConfiguration json.RawMessage `json:"timeConfiguration" swaggertype:"object"`
}

type ScheduleQuizRequest struct {
	StartTime time.Time `json:"startTime" binding:"required"`
	Timezone  string    `json:"timezone"`
	Duration  int       `json:"duration"`
}

type QuizService struct {
	repo     *repository.Repository
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewQuizService(repo *repository.Repository, notifier Notifier, log *zap.Logger) *QuizService {
	return &QuizService{repo: repo, notifier: notifier, log: log, now: time.Now}
}

// CreateQuiz 新测验为 draft；提供开始时间为 scheduled，否则为 deferred
func (s *QuizService) CreateQuiz(ctx context.Context, educatorID string, req CreateQuizRequest) (*model.Quiz, error) {
	now := s.now().UTC()
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if req.QuestionCount < 0 {
		return nil, ErrInvalidQuestionCount
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}

	var start *time.Time
	if req.StartTime != nil {
		t := req.StartTime.UTC().Truncate(time.Second)
		start = &t
	}
	if err := lifecycle.ValidateQuizTiming(start, req.Timezone, req.Duration, now); err != nil {
		return nil, err
	}
	if _, err := lifecycle.ParseTimeConfiguration(req.TimeConfiguration); err != nil {
		return nil, err
	}

	quiz := &model.Quiz{
		EducatorID:        educatorID,
		Title:             title,
		Description:       req.Description,
		Status:            model.QuizDraft,
		StartTime:         start,
		Timezone:          req.Timezone,
		Duration:          req.Duration,
		QuestionCount:     req.QuestionCount,
		SchedulingStatus:  lifecycle.InitialSchedulingStatus(start),
		TimeConfiguration: datatypes.JSON(req.TimeConfiguration),
	}
	if start != nil {
		quiz.ScheduledBy = &educatorID
		quiz.ScheduledAt = &now
	}
	if err := s.repo.Quiz.Create(ctx, quiz); err != nil {
		return nil, err
	}

	s.log.Info("quiz created",
		zap.String("quiz_id", quiz.ID),
		zap.String("educator_id", educatorID),
		zap.String("scheduling_status", string(quiz.SchedulingStatus)))
	return quiz, nil
}

// GetQuiz 教师读取自己的测验
func (s *QuizService) GetQuiz(ctx context.Context, actor Actor, quizID string) (*model.Quiz, error) {
	quiz, err := s.repo.Quiz.FindByID(ctx, quizID)
	if err != nil {
		return nil, notFound(err, ErrQuizNotFound)
	}
	if !actor.owns(quiz) {
		return nil, ErrNotQuizOwner
	}
	return quiz, nil
}

func (s *QuizService) ListQuizzes(ctx context.Context, educatorID string) ([]model.Quiz, error) {
	return s.repo.Quiz.ListByEducator(ctx, educatorID)
}

// PublishQuiz draft -> published；已发布时直接返回
func (s *QuizService) PublishQuiz(ctx context.Context, actor Actor, quizID string) (*model.Quiz, error) {
	return s.changeStatus(ctx, actor, quizID, []model.QuizStatus{model.QuizDraft}, model.QuizPublished)
}

// ArchiveQuiz draft/published -> archived；已归档时直接返回
func (s *QuizService) ArchiveQuiz(ctx context.Context, actor Actor, quizID string) (*model.Quiz, error) {
	return s.changeStatus(ctx, actor, quizID, []model.QuizStatus{model.QuizDraft, model.QuizPublished}, model.QuizArchived)
}

func (s *QuizService) changeStatus(ctx context.Context, actor Actor, quizID string, from []model.QuizStatus, to model.QuizStatus) (*model.Quiz, error) {
	quiz, err := s.GetQuiz(ctx, actor, quizID)
	if err != nil {
		return nil, err
	}
	if quiz.Status == to {
		return quiz, nil
	}
	allowed := false
	for _, f := range from {
		if quiz.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrInvalidQuizTransition
	}

	if err := s.repo.Quiz.UpdateStatus(ctx, quizID, from, to, s.now().UTC()); err != nil {
		if errors.Is(err, apperr.ErrOptimisticLock) {
			return nil, ErrQuizChanged
		}
		return nil, err
	}
	s.log.Info("quiz status changed",
		zap.String("quiz_id", quizID),
		zap.String("from", string(quiz.Status)),
		zap.String("to", string(to)),
		zap.String("actor", actor.ID))
	return s.repo.Quiz.FindByID(ctx, quizID)
}

// ScheduleQuiz 设置或修改开始时间，写审计日志并通知已报名的学生。
// 与当前排期相同的请求直接返回，不写入也不通知。
func (s *QuizService) ScheduleQuiz(ctx context.Context, actor Actor, quizID string, req ScheduleQuizRequest) (quiz *model.Quiz, err error) {
	ctx, span := tracing.StartSpan(ctx, "QuizService.ScheduleQuiz", attribute.String("quiz.id", quizID))
	defer func() { tracing.End(span, err) }()

	quiz, err = s.GetQuiz(ctx, actor, quizID)
	if err != nil {
		return nil, err
	}
	if req.Timezone == "" {
		req.Timezone = quiz.Timezone
	}
	// 未提供时长时沿用当前值
	if req.Duration == 0 {
		req.Duration = quiz.Duration
	}

	now := s.now().UTC()
	plan, err := lifecycle.PlanSchedule(quiz, lifecycle.ScheduleRequest{
		StartTime: req.StartTime.UTC().Truncate(time.Second),
		Timezone:  req.Timezone,
		Duration:  req.Duration,
		Actor:     actor.ID,
	}, now)
	if err != nil {
		return nil, err
	}
	if plan.Noop {
		return quiz, nil
	}

	updated, err := s.repo.Quiz.UpdateSchedule(ctx, quizID, repository.ScheduleUpdate{
		ExpectedStatus: plan.From,
		ExpectedStart:  plan.PreviousStart,
		NewStatus:      plan.To,
		StartTime:      plan.NewStart,
		Timezone:       plan.Timezone,
		Duration:       plan.Duration,
		Actor:          actor.ID,
		At:             now,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrOptimisticLock) {
			return nil, ErrQuizChanged
		}
		return nil, err
	}

	s.log.Info("quiz scheduled",
		zap.String("quiz_id", quizID),
		zap.String("from", string(plan.From)),
		zap.String("to", string(plan.To)),
		zap.Time("start_time", plan.NewStart),
		zap.String("actor", actor.ID))

	s.notifyScheduled(ctx, updated)
	return updated, nil
}

// notifyScheduled 通知尚未完成的报名学生；查询失败只记录日志
func (s *QuizService) notifyScheduled(ctx context.Context, quiz *model.Quiz) {
	rows, err := s.repo.Enrollment.ListByQuiz(ctx, quiz.ID)
	if err != nil {
		s.log.Warn("load enrollments for notification failed", zap.String("quiz_id", quiz.ID), zap.Error(err))
		return
	}
	var ids []string
	for studentID, list := range groupByStudent(rows) {
		if eff := lifecycle.Resolve(list); eff != nil && eff.State.IsTerminal() {
			continue
		}
		ids = append(ids, studentID)
	}
	if len(ids) == 0 || quiz.StartTime == nil {
		return
	}
	users, err := s.repo.User.FindByIDs(ctx, ids)
	if err != nil {
		s.log.Warn("load recipients failed", zap.String("quiz_id", quiz.ID), zap.Error(err))
		return
	}
	s.notifier.QuizScheduled(users, quiz.Title, *quiz.StartTime, quiz.Timezone)
}

// GetAvailability 教师视角的时间窗口（不含任何学生的重新分配豁免）
func (s *QuizService) GetAvailability(ctx context.Context, actor Actor, quizID string) (lifecycle.Availability, error) {
	quiz, err := s.GetQuiz(ctx, actor, quizID)
	if err != nil {
		return lifecycle.Availability{}, err
	}
	return lifecycle.ComputeAvailability(quiz, s.now()), nil
}

func (s *QuizService) ListScheduleLogs(ctx context.Context, actor Actor, quizID string) ([]model.QuizScheduleLog, error) {
	if _, err := s.GetQuiz(ctx, actor, quizID); err != nil {
		return nil, err
	}
	return s.repo.Quiz.ListScheduleLogs(ctx, quizID)
}

func groupByStudent(rows []model.Enrollment) map[string][]model.Enrollment {
	out := make(map[string][]model.Enrollment)
	for _, e := range rows {
		out[e.StudentID] = append(out[e.StudentID], e)
	}
	return out
}

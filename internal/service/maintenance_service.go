package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"scripture_quiz_backend/internal/lifecycle"
	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/internal/repository"
	"scripture_quiz_backend/pkg/apperr"
	"scripture_quiz_backend/pkg/monitoring"
	"scripture_quiz_backend/pkg/tracing"
)

const scanBatchSize = 200

// SweepFailure 单条作答处理失败，不影响其他作答
type SweepFailure struct {
	AttemptID string `json:"attemptId"`
	QuizID    string `json:"quizId"`
	Error     string `json:"error"`
}

type SweepReport struct {
	Examined  int            `json:"examined"`
	TimedOut  int            `json:"timedOut"`
	Abandoned int            `json:"abandoned"`
	Skipped   int            `json:"skipped"`
	Failures  []SweepFailure `json:"failures"`
}

type FalseCompletion struct {
	AttemptID    string `json:"attemptId"`
	QuizID       string `json:"quizId"`
	StudentID    string `json:"studentId"`
	EnrollmentID string `json:"enrollmentId"`
	Reason       string `json:"reason"`
}

type CorrectionReport struct {
	Corrected []string       `json:"corrected"`
	Skipped   int            `json:"skipped"`
	Failures  []SweepFailure `json:"failures"`
}

type MaintenanceService struct {
	repo    *repository.Repository
	log     *zap.Logger
	now     func() time.Time
	running sync.Mutex
}

func NewMaintenanceService(repo *repository.Repository, log *zap.Logger) *MaintenanceService {
	return &MaintenanceService{repo: repo, log: log, now: time.Now}
}

// SweepStaleAttempts 关闭超时或被放弃的进行中作答。
// 同一进程内不会并发执行；多实例并发执行时由条件更新保证幂等。
func (s *MaintenanceService) SweepStaleAttempts(ctx context.Context, now time.Time) (report *SweepReport, err error) {
	if !s.running.TryLock() {
		return nil, ErrSweepRunning
	}
	defer s.running.Unlock()

	ctx, span := tracing.StartSpan(ctx, "MaintenanceService.SweepStaleAttempts")
	defer func() { tracing.End(span, err) }()
	started := time.Now()
	defer func() { monitoring.SweepDuration.Observe(time.Since(started).Seconds()) }()

	now = now.UTC()
	candidates, err := s.repo.Attempt.ListInProgressCreatedBefore(ctx, lifecycle.StaleCutoff(now, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to list in-progress attempts: %w", err)
	}
	report = &SweepReport{Examined: len(candidates), Failures: []SweepFailure{}}
	if len(candidates) == 0 {
		return report, nil
	}

	quizIDs := make([]string, 0)
	seen := make(map[string]bool)
	for _, a := range candidates {
		if !seen[a.QuizID] {
			seen[a.QuizID] = true
			quizIDs = append(quizIDs, a.QuizID)
		}
	}
	quizzes, err := s.repo.Quiz.FindByIDs(ctx, quizIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load quizzes: %w", err)
	}
	quizByID := make(map[string]*model.Quiz, len(quizzes))
	for i := range quizzes {
		quizByID[quizzes[i].ID] = &quizzes[i]
	}

	for i := range candidates {
		a := &candidates[i]
		fail := func(err error) {
			report.Failures = append(report.Failures, SweepFailure{AttemptID: a.ID, QuizID: a.QuizID, Error: err.Error()})
			monitoring.SweepAttempts.WithLabelValues("failed").Inc()
		}

		quiz, ok := quizByID[a.QuizID]
		if !ok {
			fail(ErrQuizNotFound)
			continue
		}
		duration, err := lifecycle.EffectiveDuration(quiz)
		if err != nil {
			fail(err)
			continue
		}
		to, stale := lifecycle.ClassifyStaleAttempt(a, duration, now)
		if !stale {
			report.Skipped++
			continue
		}

		if err := s.repo.Attempt.Close(ctx, a.ID, to, now); err != nil {
			if errors.Is(err, apperr.ErrOptimisticLock) {
				// 已被提交或被其他清理任务关闭
				report.Skipped++
				monitoring.SweepAttempts.WithLabelValues("skipped").Inc()
				continue
			}
			fail(err)
			continue
		}
		switch to {
		case model.AttemptTimeout:
			report.TimedOut++
		case model.AttemptAbandoned:
			report.Abandoned++
		}
		monitoring.SweepAttempts.WithLabelValues(string(to)).Inc()
	}

	span.SetAttributes(
		attribute.Int("sweep.examined", report.Examined),
		attribute.Int("sweep.timed_out", report.TimedOut),
		attribute.Int("sweep.abandoned", report.Abandoned),
		attribute.Int("sweep.failures", len(report.Failures)),
	)
	s.log.Info("stale attempt sweep finished",
		zap.Int("examined", report.Examined),
		zap.Int("timed_out", report.TimedOut),
		zap.Int("abandoned", report.Abandoned),
		zap.Int("skipped", report.Skipped),
		zap.Int("failures", len(report.Failures)))
	for _, f := range report.Failures {
		s.log.Warn("sweep attempt failed", zap.String("attempt_id", f.AttemptID), zap.String("quiz_id", f.QuizID), zap.String("error", f.Error))
	}
	return report, nil
}

// DetectFalseCompletions 找出 completed 但没有分数或作答的记录
func (s *MaintenanceService) DetectFalseCompletions(ctx context.Context) ([]FalseCompletion, error) {
	out := []FalseCompletion{}
	err := s.repo.Attempt.ScanCompleted(ctx, scanBatchSize, func(batch []model.QuizAttempt) error {
		for i := range batch {
			a := &batch[i]
			if !lifecycle.IsFalseCompletion(a) {
				continue
			}
			reason := "no answers"
			if a.Score == nil {
				reason = "no score"
			}
			out = append(out, FalseCompletion{
				AttemptID:    a.ID,
				QuizID:       a.QuizID,
				StudentID:    a.StudentID,
				EnrollmentID: a.EnrollmentID,
				Reason:       reason,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan completed attempts: %w", err)
	}
	return out, nil
}

// CorrectFalseCompletions 把虚假完成的作答及其报名改回 abandoned
func (s *MaintenanceService) CorrectFalseCompletions(ctx context.Context, actor Actor) (*CorrectionReport, error) {
	if !actor.IsAdmin() {
		return nil, ErrAdminOnly
	}
	found, err := s.DetectFalseCompletions(ctx)
	if err != nil {
		return nil, err
	}

	report := &CorrectionReport{Corrected: []string{}, Failures: []SweepFailure{}}
	for _, fc := range found {
		err := s.repo.Attempt.RevertCompletion(ctx, fc.AttemptID)
		switch {
		case err == nil:
			report.Corrected = append(report.Corrected, fc.AttemptID)
			monitoring.FalseCompletionsCorrected.Inc()
		case errors.Is(err, apperr.ErrOptimisticLock):
			report.Skipped++
		default:
			report.Failures = append(report.Failures, SweepFailure{AttemptID: fc.AttemptID, QuizID: fc.QuizID, Error: err.Error()})
		}
	}

	s.log.Info("false completions corrected",
		zap.String("actor", actor.ID),
		zap.Int("found", len(found)),
		zap.Int("corrected", len(report.Corrected)),
		zap.Int("failures", len(report.Failures)))
	return report, nil
}

// DetectDuplicateEnrollments 同一 (测验, 学生) 的重复原始报名，只报告不修改
func (s *MaintenanceService) DetectDuplicateEnrollments(ctx context.Context) ([]lifecycle.DuplicateGroup, error) {
	rows, err := s.repo.Enrollment.ListDuplicateOriginals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicate enrollments: %w", err)
	}
	groups := lifecycle.FindDuplicateOriginals(rows)
	if groups == nil {
		groups = []lifecycle.DuplicateGroup{}
	}
	return groups, nil
}

// Sweeper 进程内定时执行清理，启停和间隔都可在配置热更新时调整
type Sweeper struct {
	svc      *MaintenanceService
	log      *zap.Logger
	interval chan time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(svc *MaintenanceService, log *zap.Logger) *Sweeper {
	return &Sweeper{svc: svc, log: log, interval: make(chan time.Duration, 1)}
}

// SetInterval 非阻塞，只保留最新的值
func (w *Sweeper) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-w.interval:
	default:
	}
	w.interval <- d
}

// Start 在后台启动清理循环；已在运行时只更新间隔
func (w *Sweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		w.SetInterval(interval)
		return
	}
	// 丢弃上一轮遗留的间隔
	select {
	case <-w.interval:
	default:
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel, w.done = cancel, done
	go func() {
		defer close(done)
		w.Run(runCtx, interval)
	}()
	w.log.Info("stale attempt sweeper started", zap.Duration("interval", interval))
}

// Stop 停止清理循环并等待正在进行的一轮结束，未运行时为空操作
func (w *Sweeper) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel, w.done = nil, nil
	w.log.Info("stale attempt sweeper stopped")
}

func (w *Sweeper) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

// Run 阻塞直到 ctx 取消
func (w *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-w.interval:
			if d != interval {
				interval = d
				ticker.Reset(d)
				w.log.Info("sweep interval changed", zap.Duration("interval", d))
			}
		case <-ticker.C:
			if _, err := w.svc.SweepStaleAttempts(ctx, w.svc.now()); err != nil && !errors.Is(err, ErrSweepRunning) {
				w.log.Error("scheduled sweep failed", zap.Error(err))
			}
		}
	}
}

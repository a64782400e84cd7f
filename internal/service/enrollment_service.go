package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"scripture_quiz_backend/internal/lifecycle"
	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/internal/repository"
	"scripture_quiz_backend/pkg/monitoring"
)

type ReassignRequest struct {
	StudentID string `json:"studentId" binding:"required"`
	Reason    string `json:"reason"`
}

// RosterEntry 教师视角下每个学生的有效状态
type RosterEntry struct {
	StudentID          string                 `json:"studentId"`
	Name               string                 `json:"name,omitempty"`
	Email              string                 `json:"email,omitempty"`
	EnrollmentID       string                 `json:"enrollmentId"`
	Status             model.EnrollmentStatus `json:"status"`
	IsReassignment     bool                   `json:"isReassignment"`
	ReassignmentCount  int                    `json:"reassignmentCount"`
	DuplicateOriginals int                    `json:"duplicateOriginals"`
	Score              *float64               `json:"score,omitempty"`
}

type EnrollmentService struct {
	repo     *repository.Repository
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewEnrollmentService(repo *repository.Repository, notifier Notifier, log *zap.Logger) *EnrollmentService {
	return &EnrollmentService{repo: repo, notifier: notifier, log: log, now: time.Now}
}

// Enroll 幂等：已有原始报名时返回已有记录，created=false
func (s *EnrollmentService) Enroll(ctx context.Context, quizID, studentID string) (*model.Enrollment, bool, error) {
	quiz, err := s.repo.Quiz.FindByID(ctx, quizID)
	if err != nil {
		return nil, false, notFound(err, ErrQuizNotFound)
	}
	now := s.now().UTC()
	if err := lifecycle.CanEnroll(quiz, lifecycle.ComputeAvailability(quiz, now)); err != nil {
		return nil, false, err
	}

	e, created, err := s.repo.Enrollment.CreateOriginalIfAbsent(ctx, &model.Enrollment{
		QuizID:     quizID,
		StudentID:  studentID,
		Status:     model.EnrollmentEnrolled,
		EnrolledAt: now,
	})
	if err != nil {
		return nil, false, notFound(err, ErrQuizNotFound)
	}
	if created {
		s.log.Info("student enrolled", zap.String("quiz_id", quizID), zap.String("student_id", studentID))
	}
	return e, created, nil
}

// GetStudentQuizStatus 学生对某个测验的状态与可执行操作
func (s *EnrollmentService) GetStudentQuizStatus(ctx context.Context, quizID, studentID string) (*lifecycle.QuizStatus, error) {
	quiz, err := s.repo.Quiz.FindByID(ctx, quizID)
	if err != nil {
		return nil, notFound(err, ErrQuizNotFound)
	}
	rows, err := s.repo.Enrollment.ListByQuizAndStudent(ctx, quizID, studentID)
	if err != nil {
		return nil, err
	}
	eff := lifecycle.Resolve(rows)
	// 草稿对未报名的学生不可见
	if eff == nil && quiz.Status == model.QuizDraft {
		return nil, ErrQuizNotFound
	}

	var attempt *model.QuizAttempt
	if eff != nil {
		latest, err := s.repo.Attempt.LatestByEnrollments(ctx, []string{eff.Enrollment.ID})
		if err != nil {
			return nil, err
		}
		attempt = latest[eff.Enrollment.ID]
	}

	st := lifecycle.BuildQuizStatus(quiz, eff, attempt, s.now())
	monitoring.AvailabilityChecks.WithLabelValues(st.AvailabilityStatus).Inc()
	return &st, nil
}

// ListStudentDashboard 学生所有已报名测验的状态
func (s *EnrollmentService) ListStudentDashboard(ctx context.Context, studentID string) ([]lifecycle.QuizStatus, error) {
	rows, err := s.repo.Enrollment.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	byQuiz := make(map[string][]model.Enrollment)
	for _, e := range rows {
		byQuiz[e.QuizID] = append(byQuiz[e.QuizID], e)
	}
	quizIDs := make([]string, 0, len(byQuiz))
	for id := range byQuiz {
		quizIDs = append(quizIDs, id)
	}
	quizzes, err := s.repo.Quiz.FindByIDs(ctx, quizIDs)
	if err != nil {
		return nil, err
	}

	effs := make(map[string]*lifecycle.EffectiveEnrollment, len(byQuiz))
	var enrollmentIDs []string
	for quizID, list := range byQuiz {
		eff := lifecycle.Resolve(list)
		effs[quizID] = eff
		enrollmentIDs = append(enrollmentIDs, eff.Enrollment.ID)
	}
	attempts, err := s.repo.Attempt.LatestByEnrollments(ctx, enrollmentIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]lifecycle.QuizStatus, 0, len(quizzes))
	for i := range quizzes {
		q := &quizzes[i]
		eff := effs[q.ID]
		st := lifecycle.BuildQuizStatus(q, eff, attempts[eff.Enrollment.ID], now)
		monitoring.AvailabilityChecks.WithLabelValues(st.AvailabilityStatus).Inc()
		out = append(out, st)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].WindowStart, out[j].WindowStart
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})
	return out, nil
}

// ListQuizRoster 测验下每个学生的有效报名
func (s *EnrollmentService) ListQuizRoster(ctx context.Context, actor Actor, quizID string) ([]RosterEntry, error) {
	quiz, err := s.repo.Quiz.FindByID(ctx, quizID)
	if err != nil {
		return nil, notFound(err, ErrQuizNotFound)
	}
	if !actor.owns(quiz) {
		return nil, ErrNotQuizOwner
	}
	rows, err := s.repo.Enrollment.ListByQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	groups := groupByStudent(rows)
	studentIDs := make([]string, 0, len(groups))
	for id := range groups {
		studentIDs = append(studentIDs, id)
	}
	sort.Strings(studentIDs)

	users, err := s.repo.User.FindByIDs(ctx, studentIDs)
	if err != nil {
		return nil, err
	}
	userByID := make(map[string]model.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	entries := make([]RosterEntry, 0, len(studentIDs))
	var enrollmentIDs []string
	for _, sid := range studentIDs {
		eff := lifecycle.Resolve(groups[sid])
		u := userByID[sid]
		entries = append(entries, RosterEntry{
			StudentID:          sid,
			Name:               u.Name,
			Email:              u.Email,
			EnrollmentID:       eff.Enrollment.ID,
			Status:             eff.State,
			IsReassignment:     eff.IsReassignment,
			ReassignmentCount:  len(eff.Reassignments),
			DuplicateOriginals: len(eff.SupersededOriginals),
		})
		enrollmentIDs = append(enrollmentIDs, eff.Enrollment.ID)
	}

	attempts, err := s.repo.Attempt.LatestByEnrollments(ctx, enrollmentIDs)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if a := attempts[entries[i].EnrollmentID]; a != nil && entries[i].Status == model.EnrollmentCompleted {
			entries[i].Score = a.Score
		}
	}
	return entries, nil
}

// Reassign 为未完成的学生创建一次新的报名机会，同一时间最多一条待完成的重新分配
func (s *EnrollmentService) Reassign(ctx context.Context, actor Actor, quizID string, req ReassignRequest) (*model.Enrollment, error) {
	studentID := strings.TrimSpace(req.StudentID)
	if studentID == "" {
		return nil, ErrStudentRequired
	}
	quiz, err := s.repo.Quiz.FindByID(ctx, quizID)
	if err != nil {
		return nil, notFound(err, ErrQuizNotFound)
	}
	if !actor.owns(quiz) {
		return nil, ErrNotQuizOwner
	}
	if quiz.Status != model.QuizPublished {
		return nil, lifecycle.ErrQuizNotPublished
	}

	now := s.now().UTC()
	reason := strings.TrimSpace(req.Reason)
	e, err := s.repo.Enrollment.CreateReassignment(ctx, quizID, studentID, func(rows []model.Enrollment) (*model.Enrollment, error) {
		parent, err := lifecycle.CheckReassignmentEligibility(rows)
		if err != nil {
			return nil, err
		}
		return &model.Enrollment{
			QuizID:             quizID,
			StudentID:          studentID,
			Status:             model.EnrollmentEnrolled,
			EnrolledAt:         now,
			ParentEnrollmentID: &parent.ID,
			ReassignmentReason: reason,
			ReassignedAt:       &now,
			ReassignedBy:       &actor.ID,
		}, nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, lifecycle.ErrReassignmentPending
		}
		return nil, notFound(err, ErrQuizNotFound)
	}

	monitoring.Reassignments.Inc()
	s.log.Info("student reassigned",
		zap.String("quiz_id", quizID),
		zap.String("student_id", studentID),
		zap.String("enrollment_id", e.ID),
		zap.String("actor", actor.ID))

	if u, err := s.repo.User.FindByID(ctx, studentID); err == nil {
		s.notifier.StudentReassigned(*u, quiz.Title, reason)
	} else {
		s.log.Warn("load reassigned student failed", zap.String("student_id", studentID), zap.Error(err))
	}
	return e, nil
}

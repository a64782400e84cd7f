package controller

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"scripture_quiz_backend/internal/lifecycle"
	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/internal/service"
	"scripture_quiz_backend/internal/util"
)

// 控制器依赖的服务能力，由 *service.XxxService 实现，测试中替换为桩

type QuizManager interface {
	CreateQuiz(ctx context.Context, educatorID string, req service.CreateQuizRequest) (*model.Quiz, error)
	GetQuiz(ctx context.Context, actor service.Actor, quizID string) (*model.Quiz, error)
	ListQuizzes(ctx context.Context, educatorID string) ([]model.Quiz, error)
	PublishQuiz(ctx context.Context, actor service.Actor, quizID string) (*model.Quiz, error)
	ArchiveQuiz(ctx context.Context, actor service.Actor, quizID string) (*model.Quiz, error)
	ScheduleQuiz(ctx context.Context, actor service.Actor, quizID string, req service.ScheduleQuizRequest) (*model.Quiz, error)
	GetAvailability(ctx context.Context, actor service.Actor, quizID string) (lifecycle.Availability, error)
	ListScheduleLogs(ctx context.Context, actor service.Actor, quizID string) ([]model.QuizScheduleLog, error)
}

type EnrollmentManager interface {
	Enroll(ctx context.Context, quizID, studentID string) (*model.Enrollment, bool, error)
	GetStudentQuizStatus(ctx context.Context, quizID, studentID string) (*lifecycle.QuizStatus, error)
	ListStudentDashboard(ctx context.Context, studentID string) ([]lifecycle.QuizStatus, error)
	ListQuizRoster(ctx context.Context, actor service.Actor, quizID string) ([]service.RosterEntry, error)
	Reassign(ctx context.Context, actor service.Actor, quizID string, req service.ReassignRequest) (*model.Enrollment, error)
}

type AttemptManager interface {
	StartAttempt(ctx context.Context, studentID, quizID string) (*service.StartAttemptResult, error)
	SubmitAttempt(ctx context.Context, studentID, attemptID string, req service.SubmitAttemptRequest) (*model.QuizAttempt, error)
	GetAttempt(ctx context.Context, actor service.Actor, attemptID string) (*model.QuizAttempt, error)
}

type MaintenanceManager interface {
	SweepStaleAttempts(ctx context.Context, now time.Time) (*service.SweepReport, error)
	DetectFalseCompletions(ctx context.Context) ([]service.FalseCompletion, error)
	CorrectFalseCompletions(ctx context.Context, actor service.Actor) (*service.CorrectionReport, error)
	DetectDuplicateEnrollments(ctx context.Context) ([]lifecycle.DuplicateGroup, error)
}

type GenerationJobManager interface {
	SubmitJob(ctx context.Context, actor service.Actor, req service.SubmitJobRequest) (*model.GenerationJob, error)
	GetJob(ctx context.Context, actor service.Actor, jobID string) (*model.GenerationJob, error)
	ListJobs(ctx context.Context, actor service.Actor) ([]model.GenerationJob, error)
	RecordCallback(ctx context.Context, jobID string, req service.JobCallbackRequest) (*model.GenerationJob, error)
}

// currentActor 未登录时写出 401 并返回 false
func currentActor(ctx *gin.Context) (service.Actor, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return service.Actor{}, false
	}
	return service.Actor{ID: user.UserID, Role: user.Role}, true
}

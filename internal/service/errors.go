package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/pkg/apperr"
)

var (
	ErrQuizNotFound       = fmt.Errorf("%w: quiz not found", apperr.ErrNotFound)
	ErrEnrollmentNotFound = fmt.Errorf("%w: enrollment not found", apperr.ErrNotFound)
	ErrAttemptNotFound    = fmt.Errorf("%w: attempt not found", apperr.ErrNotFound)
	ErrJobNotFound        = fmt.Errorf("%w: generation job not found", apperr.ErrNotFound)

	ErrNotQuizOwner    = fmt.Errorf("%w: only the owning educator can manage this quiz", apperr.ErrForbidden)
	ErrNotAttemptOwner = fmt.Errorf("%w: attempt belongs to another student", apperr.ErrForbidden)
	ErrNotJobOwner     = fmt.Errorf("%w: generation job belongs to another educator", apperr.ErrForbidden)

	ErrTitleRequired         = fmt.Errorf("%w: title is required", apperr.ErrValidation)
	ErrInvalidQuestionCount  = fmt.Errorf("%w: question count must not be negative", apperr.ErrValidation)
	ErrStudentRequired       = fmt.Errorf("%w: studentId is required", apperr.ErrValidation)
	ErrDocumentRequired      = fmt.Errorf("%w: documentName is required", apperr.ErrValidation)
	ErrInvalidQuizTransition = fmt.Errorf("%w: quiz status transition not allowed", apperr.ErrValidation)
	ErrInvalidJobStatus      = fmt.Errorf("%w: status must be processing, completed or failed", apperr.ErrValidation)

	ErrQuizChanged  = fmt.Errorf("%w: quiz was modified concurrently, please retry", apperr.ErrConflict)
	ErrJobFinished  = fmt.Errorf("%w: generation job already finished", apperr.ErrConflict)
	ErrSweepRunning = fmt.Errorf("%w: a sweep is already running", apperr.ErrConflict)
	ErrAdminOnly    = fmt.Errorf("%w: administrator role required", apperr.ErrForbidden)
)

// notFound 把 gorm.ErrRecordNotFound 转换为业务错误
func notFound(err, target error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}

// Actor 当前调用者
type Actor struct {
	ID   string
	Role model.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.Admin
}

// owns 教师只能管理自己的测验，管理员不受限
func (a Actor) owns(quiz *model.Quiz) bool {
	return a.IsAdmin() || quiz.EducatorID == a.ID
}

package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/pkg/apperr"
)

var (
	ErrStartTimeInPast     = fmt.Errorf("%w: start time must be in the future", apperr.ErrValidation)
	ErrNonPositiveDuration = fmt.Errorf("%w: duration must be a positive number of minutes", apperr.ErrValidation)
	ErrInvalidTimezone     = fmt.Errorf("%w: timezone is not a valid IANA zone name", apperr.ErrValidation)
	ErrQuizArchived        = fmt.Errorf("%w: archived quizzes cannot be scheduled", apperr.ErrValidation)
	ErrInvalidTransition   = errors.New("invalid scheduling transition")
)

// ScheduleRequest 教师设置或修改开始时间
type ScheduleRequest struct {
	StartTime time.Time
	Timezone  string
	Duration  int
	Actor     string
}

// SchedulePlan 经过校验的排期变更
type SchedulePlan struct {
	From          model.SchedulingStatus
	To            model.SchedulingStatus
	PreviousStart *time.Time
	NewStart      time.Time
	Timezone      string
	Duration      int
	Actor         string
	// Noop 与当前排期完全相同的重放请求，不产生写入和通知
	Noop bool
}

// CanTransition 排期状态机。
// legacy 只能停留在 legacy；deferred 只能前进到 scheduled；scheduled 只能重新排期，不能回到 deferred。
func CanTransition(from, to model.SchedulingStatus) bool {
	switch from {
	case model.SchedulingLegacy:
		return to == model.SchedulingLegacy
	case model.SchedulingDeferred:
		return to == model.SchedulingScheduled
	case model.SchedulingScheduled:
		return to == model.SchedulingScheduled
	}
	return false
}

// InitialSchedulingStatus 新建测验的排期状态
func InitialSchedulingStatus(startTime *time.Time) model.SchedulingStatus {
	if startTime == nil {
		return model.SchedulingDeferred
	}
	return model.SchedulingScheduled
}

// ValidateQuizTiming 新建测验时的时间参数校验，start 可为空（延期排期）
func ValidateQuizTiming(start *time.Time, timezone string, duration int, now time.Time) error {
	if duration <= 0 {
		return ErrNonPositiveDuration
	}
	if !ValidTimezone(timezone) {
		return ErrInvalidTimezone
	}
	if start != nil && !start.After(now) {
		return ErrStartTimeInPast
	}
	return nil
}

// PlanSchedule 校验一次排期请求并给出状态变更。归属校验由调用方完成。
func PlanSchedule(quiz *model.Quiz, req ScheduleRequest, now time.Time) (*SchedulePlan, error) {
	if quiz.Status == model.QuizArchived {
		return nil, ErrQuizArchived
	}
	if req.Duration <= 0 {
		return nil, ErrNonPositiveDuration
	}
	if !ValidTimezone(req.Timezone) {
		return nil, ErrInvalidTimezone
	}

	to := model.SchedulingScheduled
	if quiz.SchedulingStatus == model.SchedulingLegacy {
		to = model.SchedulingLegacy
	}
	if !CanTransition(quiz.SchedulingStatus, to) {
		return nil, fmt.Errorf("%w: %w from %s", apperr.ErrValidation, ErrInvalidTransition, quiz.SchedulingStatus)
	}

	plan := &SchedulePlan{
		From:          quiz.SchedulingStatus,
		To:            to,
		PreviousStart: quiz.StartTime,
		NewStart:      req.StartTime.UTC(),
		Timezone:      req.Timezone,
		Duration:      req.Duration,
		Actor:         req.Actor,
	}

	// 重放相同的排期不是错误，即使开始时间已经过去
	if quiz.StartTime != nil && quiz.StartTime.Equal(req.StartTime) &&
		quiz.Timezone == req.Timezone && quiz.Duration == req.Duration && quiz.SchedulingStatus == to {
		plan.Noop = true
		return plan, nil
	}

	if !req.StartTime.After(now) {
		return nil, ErrStartTimeInPast
	}
	return plan, nil
}

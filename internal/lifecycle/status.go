package lifecycle

import (
	"time"

	"scripture_quiz_backend/internal/model"
)

// StudentAction 学生端可执行的操作
type StudentAction string

const (
	ActionEnroll      StudentAction = "enroll"
	ActionStart       StudentAction = "start"
	ActionResume      StudentAction = "resume"
	ActionViewResults StudentAction = "view_results"
	ActionLocked      StudentAction = "locked"
)

// QuizStatus 每个学生每个测验的状态，前端依赖该结构
type QuizStatus struct {
	QuizID              string                 `json:"quizId"`
	Title               string                 `json:"title"`
	Enrolled            bool                   `json:"enrolled"`
	Attempted           bool                   `json:"attempted"`
	IsActive            bool                   `json:"isActive"`
	IsUpcoming          bool                   `json:"isUpcoming"`
	IsExpired           bool                   `json:"isExpired"`
	IsReassignment      bool                   `json:"isReassignment"`
	AvailabilityStatus  string                 `json:"availabilityStatus"`
	AvailabilityMessage string                 `json:"availabilityMessage"`
	Action              StudentAction          `json:"action"`
	EnrollmentID        string                 `json:"enrollmentId,omitempty"`
	EnrollmentStatus    model.EnrollmentStatus `json:"enrollmentStatus,omitempty"`
	Score               *float64               `json:"score,omitempty"`
	WindowStart         *time.Time             `json:"windowStart,omitempty"`
	WindowEnd           *time.Time             `json:"windowEnd,omitempty"`
}

// BuildQuizStatus 组合时间窗口、有效报名和其最近一次作答。
// attempt 是有效报名下的最近一次作答，可为空。
func BuildQuizStatus(quiz *model.Quiz, eff *EffectiveEnrollment, attempt *model.QuizAttempt, now time.Time) QuizStatus {
	a := ResolveAvailability(quiz, eff, ComputeAvailability(quiz, now))

	st := QuizStatus{
		QuizID:              quiz.ID,
		Title:               quiz.Title,
		IsActive:            a.Status == model.AvailabilityActive,
		IsUpcoming:          a.Status == model.AvailabilityUpcoming,
		IsExpired:           a.Status == model.AvailabilityEnded,
		AvailabilityStatus:  string(a.Status),
		AvailabilityMessage: a.Message,
		WindowStart:         a.WindowStart,
		WindowEnd:           a.WindowEnd,
	}

	if eff == nil || eff.Enrollment == nil {
		st.Action = ActionLocked
		if CanEnroll(quiz, a) == nil {
			st.Action = ActionEnroll
		}
		return st
	}

	st.Enrolled = true
	st.IsReassignment = eff.IsReassignment
	st.EnrollmentID = eff.Enrollment.ID
	st.EnrollmentStatus = eff.State
	st.Attempted = eff.State != model.EnrollmentEnrolled || attempt != nil

	switch eff.State {
	case model.EnrollmentCompleted:
		st.Action = ActionViewResults
		st.AvailabilityMessage = "You have already completed this quiz."
		if attempt != nil {
			st.Score = attempt.Score
		}
	case model.EnrollmentInProgress:
		st.Action = ActionLocked
		if a.Available {
			st.Action = ActionResume
		}
	case model.EnrollmentEnrolled:
		st.Action = ActionLocked
		if a.Available {
			st.Action = ActionStart
		}
	default:
		st.Action = ActionLocked
	}
	return st
}

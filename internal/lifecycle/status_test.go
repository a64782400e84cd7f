package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"scripture_quiz_backend/internal/model"
)

func TestBuildQuizStatus(t *testing.T) {
	q := publishedQuiz("2025-09-04T03:30:00Z", 30)
	active := mustTime("2025-09-04T03:45:00Z")
	ended := mustTime("2025-09-04T04:10:00Z")

	t.Run("not enrolled active", func(t *testing.T) {
		st := BuildQuizStatus(q, nil, nil, active)
		assert.False(t, st.Enrolled)
		assert.True(t, st.IsActive)
		assert.Equal(t, ActionEnroll, st.Action)
	})

	t.Run("not enrolled ended", func(t *testing.T) {
		st := BuildQuizStatus(q, nil, nil, ended)
		assert.True(t, st.IsExpired)
		assert.Equal(t, ActionLocked, st.Action)
		assert.Equal(t, "ended", st.AvailabilityStatus)
	})

	t.Run("enrolled active", func(t *testing.T) {
		eff := Resolve([]model.Enrollment{enrollment("o1", model.EnrollmentEnrolled, "2025-09-01T00:00:00Z")})
		st := BuildQuizStatus(q, eff, nil, active)
		assert.True(t, st.Enrolled)
		assert.False(t, st.Attempted)
		assert.Equal(t, ActionStart, st.Action)
		assert.Equal(t, "o1", st.EnrollmentID)
	})

	t.Run("in progress resumes", func(t *testing.T) {
		eff := Resolve([]model.Enrollment{enrollment("o1", model.EnrollmentInProgress, "2025-09-01T00:00:00Z")})
		st := BuildQuizStatus(q, eff, &model.QuizAttempt{Status: model.AttemptInProgress}, active)
		assert.True(t, st.Attempted)
		assert.Equal(t, ActionResume, st.Action)
	})

	t.Run("completed shows score", func(t *testing.T) {
		eff := Resolve([]model.Enrollment{
			enrollment("o1", model.EnrollmentTimeout, "2025-09-01T00:00:00Z"),
			reassignment("r1", model.EnrollmentCompleted, "2025-09-04T04:10:00Z"),
		})
		st := BuildQuizStatus(q, eff, &model.QuizAttempt{Status: model.AttemptCompleted, Score: ptr(90.0)}, ended)
		assert.Equal(t, ActionViewResults, st.Action)
		assert.True(t, st.IsReassignment)
		assert.Equal(t, 90.0, *st.Score)
		assert.Contains(t, st.AvailabilityMessage, "already completed")
	})

	t.Run("pending reassignment after window", func(t *testing.T) {
		eff := Resolve([]model.Enrollment{
			enrollment("o1", model.EnrollmentTimeout, "2025-09-01T00:00:00Z"),
			reassignment("r1", model.EnrollmentEnrolled, "2025-09-04T04:10:00Z"),
		})
		st := BuildQuizStatus(q, eff, nil, ended)
		assert.True(t, st.IsActive)
		assert.False(t, st.IsExpired)
		assert.True(t, st.IsReassignment)
		assert.Equal(t, "active", st.AvailabilityStatus)
		assert.Equal(t, ActionStart, st.Action)
	})

	t.Run("timed out original", func(t *testing.T) {
		eff := Resolve([]model.Enrollment{enrollment("o1", model.EnrollmentTimeout, "2025-09-01T00:00:00Z")})
		st := BuildQuizStatus(q, eff, nil, active)
		assert.Equal(t, ActionLocked, st.Action)
		assert.True(t, st.Attempted)
	})
}

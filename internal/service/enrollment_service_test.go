package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scripture_quiz_backend/internal/lifecycle"
	"scripture_quiz_backend/internal/model"
)

func TestEnroll(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent", func(t *testing.T) {
		h := newHarness(t)
		q := h.seedQuiz(t, at(time.Hour), 30)

		first, created, err := h.enrollments.Enroll(ctx, q.ID, "stu-1")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, model.EnrollmentEnrolled, first.Status)

		second, created, err := h.enrollments.Enroll(ctx, q.ID, "stu-1")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
		assert.Len(t, h.store.enrollments, 1)
	})

	t.Run("deferred quiz accepts enrollment", func(t *testing.T) {
		h := newHarness(t)
		q := h.seedQuiz(t, nil, 30)
		_, created, err := h.enrollments.Enroll(ctx, q.ID, "stu-1")
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("ended and unpublished quizzes reject", func(t *testing.T) {
		h := newHarness(t)
		ended := h.seedQuiz(t, at(-2*time.Hour), 30)
		_, _, err := h.enrollments.Enroll(ctx, ended.ID, "stu-1")
		assert.ErrorIs(t, err, lifecycle.ErrQuizEnded)

		draft := h.seedQuiz(t, at(time.Hour), 30)
		h.store.quizzes[draft.ID].Status = model.QuizDraft
		_, _, err = h.enrollments.Enroll(ctx, draft.ID, "stu-1")
		assert.ErrorIs(t, err, lifecycle.ErrQuizNotPublished)

		_, _, err = h.enrollments.Enroll(ctx, "missing", "stu-1")
		assert.ErrorIs(t, err, ErrQuizNotFound)
	})
}

func TestGetStudentQuizStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("upcoming before enrollment offers enroll", func(t *testing.T) {
		h := newHarness(t)
		q := h.seedQuiz(t, at(2*time.Hour), 30)

		st, err := h.enrollments.GetStudentQuizStatus(ctx, q.ID, "stu-1")
		require.NoError(t, err)
		assert.False(t, st.Enrolled)
		assert.True(t, st.IsUpcoming)
		assert.Equal(t, lifecycle.ActionEnroll, st.Action)
	})

	t.Run("draft hidden without enrollment", func(t *testing.T) {
		h := newHarness(t)
		q := h.seedQuiz(t, at(time.Hour), 30)
		h.store.quizzes[q.ID].Status = model.QuizDraft

		_, err := h.enrollments.GetStudentQuizStatus(ctx, q.ID, "stu-1")
		assert.ErrorIs(t, err, ErrQuizNotFound)
	})

	t.Run("completed shows score", func(t *testing.T) {
		h := newHarness(t)
		q := h.seedQuiz(t, at(-5*time.Minute), 30)
		_, _, err := h.enrollments.Enroll(ctx, q.ID, "stu-1")
		require.NoError(t, err)
		res, err := h.attempts.StartAttempt(ctx, "stu-1", q.ID)
		require.NoError(t, err)
		_, err = h.attempts.SubmitAttempt(ctx, "stu-1", res.Attempt.ID, SubmitAttemptRequest{Answers: answers(true, false)})
		require.NoError(t, err)

		st, err := h.enrollments.GetStudentQuizStatus(ctx, q.ID, "stu-1")
		require.NoError(t, err)
		assert.True(t, st.Enrolled)
		assert.True(t, st.Attempted)
		assert.Equal(t, lifecycle.ActionViewResults, st.Action)
		require.NotNil(t, st.Score)
		assert.InDelta(t, 33.33, *st.Score, 0.001)
	})
}

func TestListStudentDashboard(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	later := h.seedQuiz(t, at(3*time.Hour), 30)
	sooner := h.seedQuiz(t, at(time.Hour), 30)
	deferred := h.seedQuiz(t, nil, 30)
	for _, q := range []*model.Quiz{later, sooner, deferred} {
		_, _, err := h.enrollments.Enroll(ctx, q.ID, "stu-1")
		require.NoError(t, err)
	}

	list, err := h.enrollments.ListStudentDashboard(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, sooner.ID, list[0].QuizID)
	assert.Equal(t, later.ID, list[1].QuizID)
	assert.Equal(t, deferred.ID, list[2].QuizID)
	assert.Equal(t, string(model.AvailabilityNotScheduled), list[2].AvailabilityStatus)
}

func TestReassign(t *testing.T) {
	ctx := context.Background()

	t.Run("ended quiz becomes available through reassignment", func(t *testing.T) {
		h := newHarness(t)
		q := h.seedQuiz(t, at(-2*time.Hour), 30)
		original := &model.Enrollment{QuizID: q.ID, StudentID: "stu-1", Status: model.EnrollmentEnrolled, EnrolledAt: testNow.Add(-3 * time.Hour)}
		_, _, err := (&mockEnrollmentRepo{h.store}).CreateOriginalIfAbsent(ctx, original)
		require.NoError(t, err)

		st, err := h.enrollments.GetStudentQuizStatus(ctx, q.ID, "stu-1")
		require.NoError(t, err)
		assert.True(t, st.IsExpired)
		assert.Equal(t, lifecycle.ActionLocked, st.Action)

		re, err := h.enrollments.Reassign(ctx, h.educator, q.ID, ReassignRequest{StudentID: "stu-1", Reason: "was ill"})
		require.NoError(t, err)
		assert.True(t, re.IsReassignment)
		require.NotNil(t, re.ParentEnrollmentID)
		assert.Equal(t, original.ID, *re.ParentEnrollmentID)
		assert.Equal(t, []string{"stu-1"}, h.notifier.reassigned)

		st, err = h.enrollments.GetStudentQuizStatus(ctx, q.ID, "stu-1")
		require.NoError(t, err)
		assert.True(t, st.IsReassignment)
		assert.True(t, st.IsActive)
		assert.False(t, st.IsExpired)
		assert.Equal(t, lifecycle.ActionStart, st.Action)
		assert.Equal(t, re.ID, st.EnrollmentID)
	})

	t.Run("second pending reassignment rejected", func(t *testing.T) {
		h := newHarness(t)
		q := h.seedQuiz(t, at(-2*time.Hour), 30)
		_, _, err := (&mockEnrollmentRepo{h.store}).CreateOriginalIfAbsent(ctx, &model.Enrollment{QuizID: q.ID, StudentID: "stu-1", Status: model.EnrollmentEnrolled})
		require.NoError(t, err)

		_, err = h.enrollments.Reassign(ctx, h.educator, q.ID, ReassignRequest{StudentID: "stu-1"})
		require.NoError(t, err)
		_, err = h.enrollments.Reassign(ctx, h.educator, q.ID, ReassignRequest{StudentID: "stu-1"})
		assert.ErrorIs(t, err, lifecycle.ErrReassignmentPending)
	})

	t.Run("archived quiz keeps pending reassignment locked", func(t *testing.T) {
		h := newHarness(t)
		q := h.seedQuiz(t, at(-2*time.Hour), 30)
		_, _, err := (&mockEnrollmentRepo{h.store}).CreateOriginalIfAbsent(ctx, &model.Enrollment{QuizID: q.ID, StudentID: "stu-1", Status: model.EnrollmentEnrolled})
		require.NoError(t, err)
		_, err = h.enrollments.Reassign(ctx, h.educator, q.ID, ReassignRequest{StudentID: "stu-1"})
		require.NoError(t, err)

		_, err = h.quizzes.ArchiveQuiz(ctx, h.educator, q.ID)
		require.NoError(t, err)

		st, err := h.enrollments.GetStudentQuizStatus(ctx, q.ID, "stu-1")
		require.NoError(t, err)
		assert.True(t, st.IsReassignment)
		assert.False(t, st.IsActive)
		assert.Equal(t, string(model.AvailabilityNotScheduled), st.AvailabilityStatus)
		assert.Equal(t, lifecycle.ActionLocked, st.Action)

		_, err = h.attempts.StartAttempt(ctx, "stu-1", q.ID)
		assert.ErrorIs(t, err, lifecycle.ErrQuizNotPublished)
	})

	t.Run("original with attempt in progress cannot be reassigned", func(t *testing.T) {
		h := newHarness(t)
		q := h.seedQuiz(t, at(-10*time.Minute), 30)
		_, _, err := h.enrollments.Enroll(ctx, q.ID, "stu-1")
		require.NoError(t, err)
		res, err := h.attempts.StartAttempt(ctx, "stu-1", q.ID)
		require.NoError(t, err)

		_, err = h.enrollments.Reassign(ctx, h.educator, q.ID, ReassignRequest{StudentID: "stu-1"})
		assert.ErrorIs(t, err, lifecycle.ErrOriginalInProgress)
		assert.Empty(t, h.notifier.reassigned)

		st, err := h.enrollments.GetStudentQuizStatus(ctx, q.ID, "stu-1")
		require.NoError(t, err)
		assert.False(t, st.IsReassignment)
		assert.Equal(t, res.Enrollment.ID, st.EnrollmentID)
		assert.Equal(t, lifecycle.ActionResume, st.Action)
	})

	t.Run("completed or unenrolled students cannot be reassigned", func(t *testing.T) {
		h := newHarness(t)
		q := h.seedQuiz(t, at(-2*time.Hour), 30)
		e := &model.Enrollment{QuizID: q.ID, StudentID: "stu-1", Status: model.EnrollmentCompleted}
		_, _, err := (&mockEnrollmentRepo{h.store}).CreateOriginalIfAbsent(ctx, e)
		require.NoError(t, err)

		_, err = h.enrollments.Reassign(ctx, h.educator, q.ID, ReassignRequest{StudentID: "stu-1"})
		assert.ErrorIs(t, err, lifecycle.ErrReassignCompleted)

		_, err = h.enrollments.Reassign(ctx, h.educator, q.ID, ReassignRequest{StudentID: "stu-2"})
		assert.ErrorIs(t, err, lifecycle.ErrNoOriginalEnrollment)

		_, err = h.enrollments.Reassign(ctx, Actor{ID: "edu-2", Role: model.Educator}, q.ID, ReassignRequest{StudentID: "stu-1"})
		assert.ErrorIs(t, err, ErrNotQuizOwner)

		_, err = h.enrollments.Reassign(ctx, h.educator, q.ID, ReassignRequest{})
		assert.ErrorIs(t, err, ErrStudentRequired)
		assert.Empty(t, h.notifier.reassigned)
	})
}

func TestListQuizRoster(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	q := h.seedQuiz(t, at(-2*time.Hour), 30)
	repo := &mockEnrollmentRepo{h.store}
	_, _, err := repo.CreateOriginalIfAbsent(ctx, &model.Enrollment{QuizID: q.ID, StudentID: "stu-1", Status: model.EnrollmentTimeout})
	require.NoError(t, err)
	_, _, err = repo.CreateOriginalIfAbsent(ctx, &model.Enrollment{QuizID: q.ID, StudentID: "stu-2", Status: model.EnrollmentEnrolled})
	require.NoError(t, err)
	_, err = h.enrollments.Reassign(ctx, h.educator, q.ID, ReassignRequest{StudentID: "stu-1"})
	require.NoError(t, err)

	roster, err := h.enrollments.ListQuizRoster(ctx, h.educator, q.ID)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "stu-1", roster[0].StudentID)
	assert.Equal(t, "Ruth", roster[0].Name)
	assert.True(t, roster[0].IsReassignment)
	assert.Equal(t, 1, roster[0].ReassignmentCount)
	assert.Equal(t, model.EnrollmentEnrolled, roster[0].Status)
	assert.Equal(t, "stu-2", roster[1].StudentID)
	assert.False(t, roster[1].IsReassignment)

	_, err = h.enrollments.ListQuizRoster(ctx, Actor{ID: "edu-2", Role: model.Educator}, q.ID)
	assert.ErrorIs(t, err, ErrNotQuizOwner)
}

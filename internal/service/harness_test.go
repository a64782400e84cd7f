package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scripture_quiz_backend/internal/model"
)

var testNow = time.Date(2025, 9, 4, 10, 0, 0, 0, time.UTC)

type harness struct {
	store       *memStore
	notifier    *fakeNotifier
	quizzes     *QuizService
	enrollments *EnrollmentService
	attempts    *AttemptService
	maintenance *MaintenanceService
	jobs        *GenerationJobService
	educator    Actor
	admin       Actor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newMemStore()
	repo := newTestRepository(store)
	notifier := &fakeNotifier{}
	clock := func() time.Time { return testNow }

	h := &harness{
		store:       store,
		notifier:    notifier,
		quizzes:     NewQuizService(repo, notifier, testLogger()),
		enrollments: NewEnrollmentService(repo, notifier, testLogger()),
		attempts:    NewAttemptService(repo, testLogger()),
		maintenance: NewMaintenanceService(repo, testLogger()),
		jobs:        NewGenerationJobService(repo, testLogger()),
		educator:    Actor{ID: "edu-1", Role: model.Educator},
		admin:       Actor{ID: "admin-1", Role: model.Admin},
	}
	h.quizzes.now = clock
	h.enrollments.now = clock
	h.attempts.now = clock
	h.maintenance.now = clock
	h.jobs.now = clock

	for _, u := range []model.User{
		{UUIDBase: model.UUIDBase{ID: "edu-1"}, Name: "Educator", Email: "edu@example.com", Role: model.Educator},
		{UUIDBase: model.UUIDBase{ID: "stu-1"}, Name: "Ruth", Email: "ruth@example.com", Role: model.Student},
		{UUIDBase: model.UUIDBase{ID: "stu-2"}, Name: "Boaz", Email: "boaz@example.com", Role: model.Student},
	} {
		u := u
		require.NoError(t, repo.User.Create(context.Background(), &u))
	}
	return h
}

// seedQuiz 直接写入一个已发布的测验，题目数为 3
func (h *harness) seedQuiz(t *testing.T, start *time.Time, duration int) *model.Quiz {
	t.Helper()
	status := model.SchedulingScheduled
	if start == nil {
		status = model.SchedulingDeferred
	}
	q := &model.Quiz{
		EducatorID:       h.educator.ID,
		Title:            "Book of Ruth",
		Status:           model.QuizPublished,
		StartTime:        start,
		Timezone:         "UTC",
		Duration:         duration,
		QuestionCount:    3,
		SchedulingStatus: status,
	}
	require.NoError(t, (&mockQuizRepo{h.store}).Create(context.Background(), q))
	return q
}

func at(d time.Duration) *time.Time {
	t := testNow.Add(d)
	return &t
}

func answers(correct ...bool) []model.AttemptAnswer {
	out := make([]model.AttemptAnswer, len(correct))
	for i, c := range correct {
		out[i] = model.AttemptAnswer{QuestionID: string(rune('a' + i)), Answer: "x", IsCorrect: c}
	}
	return out
}

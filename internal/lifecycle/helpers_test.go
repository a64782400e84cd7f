package lifecycle

import (
	"time"

	"scripture_quiz_backend/internal/model"
)

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr[T any](v T) *T { return &v }

func publishedQuiz(start string, duration int) *model.Quiz {
	q := &model.Quiz{
		Title:            "Romans 1-4",
		Status:           model.QuizPublished,
		Timezone:         "UTC",
		Duration:         duration,
		SchedulingStatus: model.SchedulingScheduled,
	}
	q.ID = "quiz-1"
	if start != "" {
		q.StartTime = ptr(mustTime(start))
	}
	return q
}

func enrollment(id string, status model.EnrollmentStatus, created string) model.Enrollment {
	e := model.Enrollment{QuizID: "quiz-1", StudentID: "stu-1", Status: status}
	e.ID = id
	e.CreatedAt = mustTime(created)
	return e
}

func reassignment(id string, status model.EnrollmentStatus, at string) model.Enrollment {
	e := enrollment(id, status, at)
	e.IsReassignment = true
	e.ReassignedAt = ptr(mustTime(at))
	return e
}

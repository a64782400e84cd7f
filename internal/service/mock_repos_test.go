package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/internal/repository"
	"scripture_quiz_backend/pkg/apperr"
)

// memStore 内存数据，模拟条件更新语义
type memStore struct {
	mu          sync.Mutex
	quizzes     map[string]*model.Quiz
	logs        []model.QuizScheduleLog
	enrollments []*model.Enrollment
	attempts    []*model.QuizAttempt
	users       map[string]*model.User
	jobs        map[string]*model.GenerationJob
	clock       time.Time
}

func newMemStore() *memStore {
	return &memStore{
		quizzes: make(map[string]*model.Quiz),
		users:   make(map[string]*model.User),
		jobs:    make(map[string]*model.GenerationJob),
		clock:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// stamp 为新记录分配 ID 与递增的创建时间
func (s *memStore) stamp(b *model.UUIDBase) {
	if b.ID == "" {
		b.ID = model.GenerateUUID()
	}
	if b.CreatedAt.IsZero() {
		s.clock = s.clock.Add(time.Second)
		b.CreatedAt = s.clock
	}
	b.UpdatedAt = b.CreatedAt
}

func newTestRepository(s *memStore) *repository.Repository {
	return &repository.Repository{
		Quiz:          &mockQuizRepo{s},
		Enrollment:    &mockEnrollmentRepo{s},
		Attempt:       &mockAttemptRepo{s},
		User:          &mockUserRepo{s},
		GenerationJob: &mockJobRepo{s},
	}
}

func testLogger() *zap.Logger { return zap.NewNop() }

// ---- quiz ----

type mockQuizRepo struct{ s *memStore }

func (r *mockQuizRepo) Create(_ context.Context, q *model.Quiz) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&q.UUIDBase)
	cp := *q
	r.s.quizzes[q.ID] = &cp
	return nil
}

func (r *mockQuizRepo) FindByID(_ context.Context, id string) (*model.Quiz, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.quizzes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *q
	return &cp, nil
}

func (r *mockQuizRepo) FindByIDs(_ context.Context, ids []string) ([]model.Quiz, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Quiz
	for _, id := range ids {
		if q, ok := r.s.quizzes[id]; ok {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (r *mockQuizRepo) ListByEducator(_ context.Context, educatorID string) ([]model.Quiz, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Quiz
	for _, q := range r.s.quizzes {
		if q.EducatorID == educatorID {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *mockQuizRepo) UpdateStatus(_ context.Context, id string, from []model.QuizStatus, to model.QuizStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.quizzes[id]
	if !ok {
		return apperr.ErrOptimisticLock
	}
	for _, f := range from {
		if q.Status == f {
			q.Status = to
			if to == model.QuizPublished {
				q.PublishedAt = &at
			}
			return nil
		}
	}
	return apperr.ErrOptimisticLock
}

func (r *mockQuizRepo) UpdateSchedule(_ context.Context, id string, upd repository.ScheduleUpdate) (*model.Quiz, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.quizzes[id]
	if !ok || q.SchedulingStatus != upd.ExpectedStatus {
		return nil, apperr.ErrOptimisticLock
	}
	switch {
	case upd.ExpectedStart == nil && q.StartTime != nil,
		upd.ExpectedStart != nil && (q.StartTime == nil || !q.StartTime.Equal(*upd.ExpectedStart)):
		return nil, apperr.ErrOptimisticLock
	}

	prev := q.StartTime
	start, actor, at := upd.StartTime, upd.Actor, upd.At
	q.StartTime = &start
	q.Timezone = upd.Timezone
	q.Duration = upd.Duration
	q.SchedulingStatus = upd.NewStatus
	q.ScheduledBy = &actor
	q.ScheduledAt = &at

	entry := model.QuizScheduleLog{
		QuizID:            id,
		FromStatus:        upd.ExpectedStatus,
		ToStatus:          upd.NewStatus,
		PreviousStartTime: prev,
		NewStartTime:      start,
		Timezone:          upd.Timezone,
		Duration:          upd.Duration,
		ScheduledBy:       actor,
		ScheduledAt:       at,
	}
	r.s.stamp(&entry.UUIDBase)
	r.s.logs = append(r.s.logs, entry)
	cp := *q
	return &cp, nil
}

func (r *mockQuizRepo) ListScheduleLogs(_ context.Context, quizID string) ([]model.QuizScheduleLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.QuizScheduleLog
	for _, l := range r.s.logs {
		if l.QuizID == quizID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *mockQuizRepo) SetQuestionCount(_ context.Context, id string, count int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.quizzes[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	q.QuestionCount = count
	return nil
}

// ---- enrollment ----

type mockEnrollmentRepo struct{ s *memStore }

func (s *memStore) enrollment(id string) *model.Enrollment {
	for _, e := range s.enrollments {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (s *memStore) pair(quizID, studentID string) []model.Enrollment {
	var out []model.Enrollment
	for _, e := range s.enrollments {
		if e.QuizID == quizID && e.StudentID == studentID {
			out = append(out, *e)
		}
	}
	return out
}

func (r *mockEnrollmentRepo) FindByID(_ context.Context, id string) (*model.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e := r.s.enrollment(id)
	if e == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *mockEnrollmentRepo) ListByQuizAndStudent(_ context.Context, quizID, studentID string) ([]model.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.pair(quizID, studentID), nil
}

func (r *mockEnrollmentRepo) ListByStudent(_ context.Context, studentID string) ([]model.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Enrollment
	for _, e := range r.s.enrollments {
		if e.StudentID == studentID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *mockEnrollmentRepo) ListByQuiz(_ context.Context, quizID string) ([]model.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Enrollment
	for _, e := range r.s.enrollments {
		if e.QuizID == quizID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *mockEnrollmentRepo) CreateOriginalIfAbsent(_ context.Context, e *model.Enrollment) (*model.Enrollment, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.quizzes[e.QuizID]; !ok {
		return nil, false, gorm.ErrRecordNotFound
	}
	for _, row := range r.s.pair(e.QuizID, e.StudentID) {
		if !row.IsReassignment {
			cp := row
			return &cp, false, nil
		}
	}
	e.IsReassignment = false
	r.s.stamp(&e.UUIDBase)
	cp := *e
	r.s.enrollments = append(r.s.enrollments, &cp)
	return e, true, nil
}

func (r *mockEnrollmentRepo) CreateReassignment(_ context.Context, quizID, studentID string, build func([]model.Enrollment) (*model.Enrollment, error)) (*model.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, err := build(r.s.pair(quizID, studentID))
	if err != nil {
		return nil, err
	}
	e.IsReassignment = true
	r.s.stamp(&e.UUIDBase)
	cp := *e
	r.s.enrollments = append(r.s.enrollments, &cp)
	return e, nil
}

func (r *mockEnrollmentRepo) UpdateStatus(_ context.Context, id string, from, to model.EnrollmentStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.transitionEnrollment(id, from, to, at)
}

func (s *memStore) transitionEnrollment(id string, from, to model.EnrollmentStatus, at time.Time) error {
	e := s.enrollment(id)
	if e == nil || e.Status != from {
		return apperr.ErrOptimisticLock
	}
	e.Status = to
	switch to {
	case model.EnrollmentInProgress:
		e.StartedAt = &at
	case model.EnrollmentCompleted:
		e.CompletedAt = &at
	}
	if from == model.EnrollmentCompleted {
		e.CompletedAt = nil
	}
	return nil
}

func (r *mockEnrollmentRepo) ListDuplicateOriginals(_ context.Context) ([]model.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := make(map[[2]string]int)
	for _, e := range r.s.enrollments {
		if !e.IsReassignment {
			count[[2]string{e.QuizID, e.StudentID}]++
		}
	}
	var out []model.Enrollment
	for _, e := range r.s.enrollments {
		if !e.IsReassignment && count[[2]string{e.QuizID, e.StudentID}] > 1 {
			out = append(out, *e)
		}
	}
	return out, nil
}

// ---- attempt ----

type mockAttemptRepo struct{ s *memStore }

func (s *memStore) attempt(id string) *model.QuizAttempt {
	for _, a := range s.attempts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (r *mockAttemptRepo) FindByID(_ context.Context, id string) (*model.QuizAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a := r.s.attempt(id)
	if a == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *mockAttemptRepo) LatestByEnrollments(_ context.Context, ids []string) (map[string]*model.QuizAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[string]*model.QuizAttempt)
	for _, a := range r.s.attempts {
		if want[a.EnrollmentID] {
			cp := *a
			out[a.EnrollmentID] = &cp
		}
	}
	return out, nil
}

func (r *mockAttemptRepo) CreateIfAbsent(_ context.Context, attempt *model.QuizAttempt) (*model.QuizAttempt, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.attempts {
		if a.EnrollmentID == attempt.EnrollmentID && a.Status == model.AttemptInProgress {
			cp := *a
			return &cp, true, nil
		}
	}
	e := r.s.enrollment(attempt.EnrollmentID)
	if e == nil {
		return nil, false, gorm.ErrRecordNotFound
	}
	switch e.Status {
	case model.EnrollmentEnrolled:
		at := time.Now()
		if attempt.StartTime != nil {
			at = *attempt.StartTime
		}
		_ = r.s.transitionEnrollment(e.ID, model.EnrollmentEnrolled, model.EnrollmentInProgress, at)
	case model.EnrollmentInProgress:
	default:
		return nil, false, apperr.ErrOptimisticLock
	}
	r.s.stamp(&attempt.UUIDBase)
	cp := *attempt
	r.s.attempts = append(r.s.attempts, &cp)
	return attempt, false, nil
}

func (r *mockAttemptRepo) Complete(_ context.Context, id string, res repository.CompleteAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a := r.s.attempt(id)
	if a == nil || a.Status != model.AttemptInProgress {
		return apperr.ErrOptimisticLock
	}
	score, end := res.Score, res.EndTime
	a.Status = model.AttemptCompleted
	a.Answers = res.Answers
	a.Score = &score
	a.TotalCorrect = res.TotalCorrect
	a.TotalQuestions = res.TotalQuestions
	a.EndTime = &end
	a.TimeSpent = res.TimeSpent
	return r.s.transitionEnrollment(a.EnrollmentID, model.EnrollmentInProgress, model.EnrollmentCompleted, end)
}

func (r *mockAttemptRepo) Close(_ context.Context, id string, to model.AttemptStatus, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a := r.s.attempt(id)
	if a == nil || a.Status != model.AttemptInProgress {
		return apperr.ErrOptimisticLock
	}
	a.Status = to
	a.EndTime = &at
	_ = r.s.transitionEnrollment(a.EnrollmentID, model.EnrollmentInProgress, to.EnrollmentStatus(), at)
	return nil
}

func (r *mockAttemptRepo) ListInProgressCreatedBefore(_ context.Context, before time.Time) ([]model.QuizAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.QuizAttempt
	for _, a := range r.s.attempts {
		if a.Status == model.AttemptInProgress && a.CreatedAt.Before(before) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *mockAttemptRepo) ScanCompleted(_ context.Context, batchSize int, fn func([]model.QuizAttempt) error) error {
	r.s.mu.Lock()
	var all []model.QuizAttempt
	for _, a := range r.s.attempts {
		if a.Status == model.AttemptCompleted {
			all = append(all, *a)
		}
	}
	r.s.mu.Unlock()

	for start := 0; start < len(all); start += batchSize {
		end := start + batchSize
		if end > len(all) {
			end = len(all)
		}
		if err := fn(all[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *mockAttemptRepo) RevertCompletion(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a := r.s.attempt(id)
	if a == nil || a.Status != model.AttemptCompleted {
		return apperr.ErrOptimisticLock
	}
	a.Status = model.AttemptAbandoned
	_ = r.s.transitionEnrollment(a.EnrollmentID, model.EnrollmentCompleted, model.EnrollmentAbandoned, time.Time{})
	return nil
}

// ---- user ----

type mockUserRepo struct{ s *memStore }

func (r *mockUserRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&u.UUIDBase)
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *mockUserRepo) FindByIDs(_ context.Context, ids []string) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.User
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

// ---- generation job ----

type mockJobRepo struct{ s *memStore }

func (r *mockJobRepo) Create(_ context.Context, job *model.GenerationJob) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&job.UUIDBase)
	cp := *job
	r.s.jobs[job.ID] = &cp
	return nil
}

func (r *mockJobRepo) FindByID(_ context.Context, id string) (*model.GenerationJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *mockJobRepo) ListByEducator(_ context.Context, educatorID string) ([]model.GenerationJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.GenerationJob
	for _, j := range r.s.jobs {
		if j.EducatorID == educatorID {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (r *mockJobRepo) UpdateStatus(_ context.Context, id string, from []model.GenerationJobStatus, to model.GenerationJobStatus, fields map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.jobs[id]
	if !ok {
		return apperr.ErrOptimisticLock
	}
	for _, f := range from {
		if j.Status != f {
			continue
		}
		j.Status = to
		if v, ok := fields["question_count"].(int); ok {
			j.QuestionCount = v
		}
		if v, ok := fields["error"].(string); ok {
			j.Error = v
		}
		if v, ok := fields["completed_at"].(time.Time); ok {
			j.CompletedAt = &v
		}
		return nil
	}
	return apperr.ErrOptimisticLock
}

// ---- notifier ----

type scheduledCall struct {
	Recipients []string
	Title      string
	Start      time.Time
}

type fakeNotifier struct {
	mu         sync.Mutex
	scheduled  []scheduledCall
	reassigned []string
}

func (n *fakeNotifier) QuizScheduled(recipients []model.User, quizTitle string, start time.Time, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var ids []string
	for _, u := range recipients {
		ids = append(ids, u.ID)
	}
	sort.Strings(ids)
	n.scheduled = append(n.scheduled, scheduledCall{Recipients: ids, Title: quizTitle, Start: start})
}

func (n *fakeNotifier) StudentReassigned(recipient model.User, _, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reassigned = append(n.reassigned, recipient.ID)
}

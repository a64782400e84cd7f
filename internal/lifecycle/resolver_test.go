package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/pkg/apperr"
)

func TestResolve_Empty(t *testing.T) {
	assert.Nil(t, Resolve(nil))
}

func TestResolve_Precedence(t *testing.T) {
	tests := []struct {
		name       string
		rows       []model.Enrollment
		wantID     string
		wantState  model.EnrollmentStatus
		wantBypass bool
	}{
		{
			name:      "original only",
			rows:      []model.Enrollment{enrollment("o1", model.EnrollmentEnrolled, "2025-09-01T00:00:00Z")},
			wantID:    "o1",
			wantState: model.EnrollmentEnrolled,
		},
		{
			name: "completed reassignment wins over completed original",
			rows: []model.Enrollment{
				enrollment("o1", model.EnrollmentCompleted, "2025-09-01T00:00:00Z"),
				reassignment("r1", model.EnrollmentCompleted, "2025-09-05T00:00:00Z"),
			},
			wantID:    "r1",
			wantState: model.EnrollmentCompleted,
		},
		{
			name: "completed original wins over pending reassignment",
			rows: []model.Enrollment{
				reassignment("r1", model.EnrollmentEnrolled, "2025-09-05T00:00:00Z"),
				enrollment("o1", model.EnrollmentCompleted, "2025-09-01T00:00:00Z"),
			},
			wantID:    "o1",
			wantState: model.EnrollmentCompleted,
		},
		{
			name: "pending reassignment bypasses window",
			rows: []model.Enrollment{
				enrollment("o1", model.EnrollmentTimeout, "2025-09-01T00:00:00Z"),
				reassignment("r1", model.EnrollmentEnrolled, "2025-09-05T00:00:00Z"),
			},
			wantID:     "r1",
			wantState:  model.EnrollmentEnrolled,
			wantBypass: true,
		},
		{
			name: "in-progress reassignment keeps bypass",
			rows: []model.Enrollment{
				enrollment("o1", model.EnrollmentAbandoned, "2025-09-01T00:00:00Z"),
				reassignment("r1", model.EnrollmentInProgress, "2025-09-05T00:00:00Z"),
			},
			wantID:     "r1",
			wantState:  model.EnrollmentInProgress,
			wantBypass: true,
		},
		{
			name: "expired reassignment falls back to original",
			rows: []model.Enrollment{
				enrollment("o1", model.EnrollmentTimeout, "2025-09-01T00:00:00Z"),
				reassignment("r1", model.EnrollmentTimeout, "2025-09-05T00:00:00Z"),
			},
			wantID:    "o1",
			wantState: model.EnrollmentTimeout,
		},
		{
			name: "latest completed reassignment",
			rows: []model.Enrollment{
				reassignment("r2", model.EnrollmentCompleted, "2025-09-07T00:00:00Z"),
				reassignment("r1", model.EnrollmentCompleted, "2025-09-05T00:00:00Z"),
				enrollment("o1", model.EnrollmentTimeout, "2025-09-01T00:00:00Z"),
			},
			wantID:    "r2",
			wantState: model.EnrollmentCompleted,
		},
		{
			name:      "reassignments only",
			rows:      []model.Enrollment{reassignment("r1", model.EnrollmentAbandoned, "2025-09-05T00:00:00Z")},
			wantID:    "r1",
			wantState: model.EnrollmentAbandoned,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eff := Resolve(tt.rows)
			require.NotNil(t, eff)
			assert.Equal(t, tt.wantID, eff.Enrollment.ID)
			assert.Equal(t, tt.wantState, eff.State)
			assert.Equal(t, tt.wantBypass, eff.Bypass)
		})
	}
}

func TestResolve_DuplicateOriginalsPickNewest(t *testing.T) {
	rows := []model.Enrollment{
		enrollment("o-old", model.EnrollmentCompleted, "2025-09-01T00:00:00Z"),
		enrollment("o-new", model.EnrollmentEnrolled, "2025-09-02T00:00:00Z"),
		enrollment("o-mid", model.EnrollmentEnrolled, "2025-09-01T12:00:00Z"),
	}

	// 与输入顺序无关
	for i := 0; i < len(rows); i++ {
		rotated := append(append([]model.Enrollment{}, rows[i:]...), rows[:i]...)
		eff := Resolve(rotated)
		require.NotNil(t, eff.Original)
		assert.Equal(t, "o-new", eff.Original.ID)
		assert.Equal(t, "o-new", eff.Enrollment.ID)
		require.Len(t, eff.SupersededOriginals, 2)
		assert.Equal(t, "o-mid", eff.SupersededOriginals[0].ID)
		assert.Equal(t, "o-old", eff.SupersededOriginals[1].ID)
	}
}

func TestResolve_SameCreatedAtTieBreaksOnID(t *testing.T) {
	eff := Resolve([]model.Enrollment{
		enrollment("a", model.EnrollmentEnrolled, "2025-09-01T00:00:00Z"),
		enrollment("b", model.EnrollmentEnrolled, "2025-09-01T00:00:00Z"),
	})
	assert.Equal(t, "b", eff.Original.ID)
}

func TestResolveAvailability_ReassignmentBypass(t *testing.T) {
	q := publishedQuiz("2025-09-04T03:30:00Z", 30)
	base := ComputeAvailability(q, mustTime("2025-09-04T04:10:00Z"))
	require.Equal(t, model.AvailabilityEnded, base.Status)

	eff := Resolve([]model.Enrollment{
		enrollment("o1", model.EnrollmentTimeout, "2025-09-01T00:00:00Z"),
		reassignment("r1", model.EnrollmentEnrolled, "2025-09-04T04:10:00Z"),
	})
	a := ResolveAvailability(q, eff, base)
	assert.Equal(t, model.AvailabilityActive, a.Status)
	assert.True(t, a.Available)

	orig := Resolve([]model.Enrollment{enrollment("o1", model.EnrollmentEnrolled, "2025-09-01T00:00:00Z")})
	assert.Equal(t, base, ResolveAvailability(q, orig, base))
	assert.Equal(t, base, ResolveAvailability(q, nil, base))
}

func TestResolveAvailability_BypassRequiresPublished(t *testing.T) {
	eff := Resolve([]model.Enrollment{
		enrollment("o1", model.EnrollmentEnrolled, "2025-09-01T00:00:00Z"),
		reassignment("r1", model.EnrollmentEnrolled, "2025-09-04T04:10:00Z"),
	})
	require.True(t, eff.Bypass)
	now := mustTime("2025-09-04T04:15:00Z")

	for _, status := range []model.QuizStatus{model.QuizArchived, model.QuizDraft} {
		q := publishedQuiz("2025-09-04T03:30:00Z", 30)
		q.Status = status
		base := ComputeAvailability(q, now)

		a := ResolveAvailability(q, eff, base)
		assert.Equal(t, base, a, status)
		assert.False(t, a.Available, status)
		assert.ErrorIs(t, CheckStart(q, eff, base), ErrQuizNotPublished, status)

		st := BuildQuizStatus(q, eff, nil, now)
		assert.False(t, st.IsActive, status)
		assert.Equal(t, ActionLocked, st.Action, status)
		assert.True(t, st.IsReassignment, status)
	}
}

func TestCheckReassignmentEligibility(t *testing.T) {
	parent, err := CheckReassignmentEligibility([]model.Enrollment{
		enrollment("o1", model.EnrollmentTimeout, "2025-09-01T00:00:00Z"),
	})
	require.NoError(t, err)
	assert.Equal(t, "o1", parent.ID)

	// 上一次重新分配已失效，可以再次分配
	parent, err = CheckReassignmentEligibility([]model.Enrollment{
		enrollment("o1", model.EnrollmentTimeout, "2025-09-01T00:00:00Z"),
		reassignment("r1", model.EnrollmentAbandoned, "2025-09-05T00:00:00Z"),
	})
	require.NoError(t, err)
	assert.Equal(t, "o1", parent.ID)

	_, err = CheckReassignmentEligibility(nil)
	assert.ErrorIs(t, err, ErrNoOriginalEnrollment)

	_, err = CheckReassignmentEligibility([]model.Enrollment{
		reassignment("r1", model.EnrollmentAbandoned, "2025-09-05T00:00:00Z"),
	})
	assert.ErrorIs(t, err, ErrNoOriginalEnrollment)

	_, err = CheckReassignmentEligibility([]model.Enrollment{
		enrollment("o1", model.EnrollmentCompleted, "2025-09-01T00:00:00Z"),
	})
	assert.ErrorIs(t, err, ErrReassignCompleted)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = CheckReassignmentEligibility([]model.Enrollment{
		enrollment("o1", model.EnrollmentTimeout, "2025-09-01T00:00:00Z"),
		reassignment("r1", model.EnrollmentEnrolled, "2025-09-05T00:00:00Z"),
	})
	assert.ErrorIs(t, err, ErrReassignmentPending)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = CheckReassignmentEligibility([]model.Enrollment{
		enrollment("o1", model.EnrollmentInProgress, "2025-09-01T00:00:00Z"),
	})
	assert.ErrorIs(t, err, ErrOriginalInProgress)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

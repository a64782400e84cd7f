package lifecycle

import (
	"fmt"
	"sort"
	"time"

	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/pkg/apperr"
)

var (
	ErrNoOriginalEnrollment = fmt.Errorf("%w: student has no original enrollment for this quiz", apperr.ErrValidation)
	ErrReassignCompleted    = fmt.Errorf("%w: student has already completed this quiz", apperr.ErrValidation)
	ErrReassignmentPending  = fmt.Errorf("%w: student already has a pending reassignment", apperr.ErrConflict)
	ErrOriginalInProgress   = fmt.Errorf("%w: student has an attempt in progress", apperr.ErrConflict)
)

// EffectiveEnrollment 一个 (学生, 测验) 的权威报名记录
type EffectiveEnrollment struct {
	Enrollment     *model.Enrollment
	Original       *model.Enrollment
	Reassignments  []*model.Enrollment // 按 ReassignedAt 升序
	State          model.EnrollmentStatus
	IsReassignment bool
	// Bypass 待完成的重新分配不受时间窗口限制
	Bypass bool
	// SupersededOriginals 重复的原始报名中被淘汰的记录
	SupersededOriginals []*model.Enrollment
}

// Resolve 从同一 (学生, 测验) 的所有报名记录中确定权威记录，没有记录时返回 nil。
//
// 优先级：
//  1. 已完成的重新分配（多条时取最近分配的）
//  2. 已完成的原始报名
//  3. 待完成（enrolled/in_progress）的重新分配，享有时间窗口豁免
//  4. 原始报名，遵循正常时间窗口
//
// 原始报名重复时取 CreatedAt 最新的一条，相同时按 ID 倒序。
func Resolve(rows []model.Enrollment) *EffectiveEnrollment {
	if len(rows) == 0 {
		return nil
	}

	var originals []*model.Enrollment
	eff := &EffectiveEnrollment{}
	for i := range rows {
		e := &rows[i]
		if e.IsReassignment {
			eff.Reassignments = append(eff.Reassignments, e)
		} else {
			originals = append(originals, e)
		}
	}

	sort.SliceStable(originals, func(i, j int) bool {
		a, b := originals[i], originals[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	if len(originals) > 0 {
		eff.Original = originals[0]
		eff.SupersededOriginals = originals[1:]
	}

	sort.SliceStable(eff.Reassignments, func(i, j int) bool {
		a, b := reassignedAt(eff.Reassignments[i]), reassignedAt(eff.Reassignments[j])
		if !a.Equal(b) {
			return a.Before(b)
		}
		return eff.Reassignments[i].ID < eff.Reassignments[j].ID
	})

	if r := lastWithStatus(eff.Reassignments, model.EnrollmentCompleted); r != nil {
		return eff.pick(r, false)
	}
	if eff.Original != nil && eff.Original.Status == model.EnrollmentCompleted {
		return eff.pick(eff.Original, false)
	}
	if r := lastWithStatus(eff.Reassignments, model.EnrollmentEnrolled, model.EnrollmentInProgress); r != nil {
		return eff.pick(r, true)
	}
	if eff.Original != nil {
		return eff.pick(eff.Original, false)
	}
	// 只有已失效的重新分配
	return eff.pick(eff.Reassignments[len(eff.Reassignments)-1], false)
}

func (eff *EffectiveEnrollment) pick(e *model.Enrollment, bypass bool) *EffectiveEnrollment {
	eff.Enrollment = e
	eff.State = e.Status
	eff.IsReassignment = e.IsReassignment
	eff.Bypass = bypass
	return eff
}

// PendingReassignment 返回未开始或进行中的重新分配
func (eff *EffectiveEnrollment) PendingReassignment() *model.Enrollment {
	if eff == nil {
		return nil
	}
	return lastWithStatus(eff.Reassignments, model.EnrollmentEnrolled, model.EnrollmentInProgress)
}

func reassignedAt(e *model.Enrollment) time.Time {
	if e.ReassignedAt != nil {
		return *e.ReassignedAt
	}
	return e.CreatedAt
}

func lastWithStatus(list []*model.Enrollment, statuses ...model.EnrollmentStatus) *model.Enrollment {
	for i := len(list) - 1; i >= 0; i-- {
		for _, s := range statuses {
			if list[i].Status == s {
				return list[i]
			}
		}
	}
	return nil
}

// ResolveAvailability 合并时间窗口与重新分配豁免。
// 豁免只针对时间窗口，草稿和已归档的测验始终不可用。
func ResolveAvailability(quiz *model.Quiz, eff *EffectiveEnrollment, base Availability) Availability {
	if eff == nil || !eff.Bypass || quiz.Status != model.QuizPublished {
		return base
	}
	return Availability{
		Status:      model.AvailabilityActive,
		Available:   true,
		Message:     "Reassigned: this quiz is available to you now.",
		WindowStart: base.WindowStart,
		WindowEnd:   base.WindowEnd,
	}
}

// CheckReassignmentEligibility 重新分配的前置条件：原始报名存在、未完成且不在作答中，
// 且没有待完成的重新分配。返回作为 parent 的原始报名。
func CheckReassignmentEligibility(rows []model.Enrollment) (*model.Enrollment, error) {
	eff := Resolve(rows)
	if eff == nil || eff.Original == nil {
		return nil, ErrNoOriginalEnrollment
	}
	if eff.Original.Status == model.EnrollmentCompleted || eff.State == model.EnrollmentCompleted {
		return nil, ErrReassignCompleted
	}
	// 作答中的原始报名会被新的重新分配遮蔽，必须先提交或由清理任务关闭
	if eff.Original.Status == model.EnrollmentInProgress {
		return nil, ErrOriginalInProgress
	}
	if eff.PendingReassignment() != nil {
		return nil, ErrReassignmentPending
	}
	return eff.Original, nil
}

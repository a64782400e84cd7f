package model

// QuizStatus 发布状态
type QuizStatus string

const (
	QuizDraft     QuizStatus = "draft"
	QuizPublished QuizStatus = "published"
	QuizArchived  QuizStatus = "archived"
)

func (s QuizStatus) Valid() bool {
	switch s {
	case QuizDraft, QuizPublished, QuizArchived:
		return true
	}
	return false
}

// SchedulingStatus 排期状态
//   - legacy: 延期排期功能上线前创建的测验，视为始终有开始时间，不再迁移
//   - deferred: 已发布但开始时间待定
//   - scheduled: 已设置开始时间
type SchedulingStatus string

const (
	SchedulingLegacy    SchedulingStatus = "legacy"
	SchedulingDeferred  SchedulingStatus = "deferred"
	SchedulingScheduled SchedulingStatus = "scheduled"
)

func (s SchedulingStatus) Valid() bool {
	switch s {
	case SchedulingLegacy, SchedulingDeferred, SchedulingScheduled:
		return true
	}
	return false
}

// EnrollmentStatus 学生与测验实例的关系状态
type EnrollmentStatus string

const (
	EnrollmentEnrolled   EnrollmentStatus = "enrolled"
	EnrollmentInProgress EnrollmentStatus = "in_progress"
	EnrollmentCompleted  EnrollmentStatus = "completed"
	EnrollmentAbandoned  EnrollmentStatus = "abandoned"
	EnrollmentTimeout    EnrollmentStatus = "timeout"
)

func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentEnrolled, EnrollmentInProgress, EnrollmentCompleted, EnrollmentAbandoned, EnrollmentTimeout:
		return true
	}
	return false
}

func (s EnrollmentStatus) IsTerminal() bool {
	switch s {
	case EnrollmentCompleted, EnrollmentAbandoned, EnrollmentTimeout:
		return true
	}
	return false
}

// AttemptStatus 作答记录状态
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptAbandoned  AttemptStatus = "abandoned"
	AttemptTimeout    AttemptStatus = "timeout"
)

func (s AttemptStatus) Valid() bool {
	switch s {
	case AttemptInProgress, AttemptCompleted, AttemptAbandoned, AttemptTimeout:
		return true
	}
	return false
}

func (s AttemptStatus) IsTerminal() bool {
	return s != AttemptInProgress
}

// EnrollmentStatus 返回作答结束后报名记录应进入的状态
func (s AttemptStatus) EnrollmentStatus() EnrollmentStatus {
	switch s {
	case AttemptCompleted:
		return EnrollmentCompleted
	case AttemptAbandoned:
		return EnrollmentAbandoned
	case AttemptTimeout:
		return EnrollmentTimeout
	default:
		return EnrollmentInProgress
	}
}

// AvailabilityStatus 时间窗口判定结果
type AvailabilityStatus string

const (
	AvailabilityNotScheduled AvailabilityStatus = "not_scheduled"
	AvailabilityUpcoming     AvailabilityStatus = "upcoming"
	AvailabilityActive       AvailabilityStatus = "active"
	AvailabilityEnded        AvailabilityStatus = "ended"
)

// GenerationJobStatus 题目生成任务状态
type GenerationJobStatus string

const (
	JobPending    GenerationJobStatus = "pending"
	JobProcessing GenerationJobStatus = "processing"
	JobCompleted  GenerationJobStatus = "completed"
	JobFailed     GenerationJobStatus = "failed"
)

func (s GenerationJobStatus) Valid() bool {
	switch s {
	case JobPending, JobProcessing, JobCompleted, JobFailed:
		return true
	}
	return false
}

func (s GenerationJobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

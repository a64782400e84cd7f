package model

import "time"

// swagger:model Enrollment
// 同一 (QuizID, StudentID) 通常只有一条原始报名（IsReassignment=false），
// 重新分配会新增记录并通过 ParentEnrollmentID 指向原始报名
type Enrollment struct {
	UUIDBase

	QuizID      string           `gorm:"index:idx_enrollment_quiz_student;type:varchar(36);not null" json:"quizId"`
	StudentID   string           `gorm:"index:idx_enrollment_quiz_student;type:varchar(36);not null" json:"studentId"`
	Status      EnrollmentStatus `gorm:"size:20;not null;default:'enrolled'" json:"status"`
	EnrolledAt  time.Time        `json:"enrolledAt"`
	StartedAt   *time.Time       `json:"startedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`

	IsReassignment     bool       `gorm:"default:false" json:"isReassignment"`
	ParentEnrollmentID *string    `gorm:"type:varchar(36)" json:"parentEnrollmentId,omitempty"`
	ReassignmentReason string     `gorm:"type:text" json:"reassignmentReason,omitempty"`
	ReassignedAt       *time.Time `json:"reassignedAt,omitempty"`
	ReassignedBy       *string    `gorm:"type:varchar(36)" json:"reassignedBy,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

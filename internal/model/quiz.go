package model

import (
	"time"

	"gorm.io/datatypes"
)

// swagger:model Quiz
// 所有时间以 UTC 存储，Timezone 仅用于展示
type Quiz struct {
	UUIDBase

	EducatorID       string           `gorm:"index;type:varchar(36);not null" json:"educatorId"`
	Title            string           `gorm:"size:255;not null" json:"title"`
	Description      string           `gorm:"type:text" json:"description"`
	Status           QuizStatus       `gorm:"size:20;not null;default:'draft';index" json:"status"`
	StartTime        *time.Time       `json:"startTime,omitempty"`
	Timezone         string           `gorm:"size:64;not null;default:'UTC'" json:"timezone"`
	Duration         int              `gorm:"not null" json:"duration"` // Minutes
	// 题目数，由出题任务回调或创建时写入，0 表示未知；计分以它为分母
	QuestionCount int `gorm:"not null;default:0" json:"questionCount"`
	SchedulingStatus SchedulingStatus `gorm:"size:20;not null;default:'legacy'" json:"schedulingStatus"`
	ScheduledBy      *string          `gorm:"type:varchar(36)" json:"scheduledBy,omitempty"`
	ScheduledAt      *time.Time       `json:"scheduledAt,omitempty"`
	PublishedAt      *time.Time       `json:"publishedAt,omitempty"`

	// 可选的计时配置，例如 {"durationMinutes": 45}，覆盖 Duration 用于超时清理
	TimeConfiguration datatypes.JSON `json:"timeConfiguration,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// WindowEnd 返回作答窗口结束时间；未排期时返回 nil
func (q *Quiz) WindowEnd() *time.Time {
	if q.StartTime == nil {
		return nil
	}
	d := q.Duration
	if d < 0 {
		d = 0
	}
	end := q.StartTime.Add(time.Duration(d) * time.Minute)
	return &end
}

// QuizScheduleLog 排期变更审计
type QuizScheduleLog struct {
	UUIDBase

	QuizID            string           `gorm:"index;type:varchar(36);not null" json:"quizId"`
	FromStatus        SchedulingStatus `gorm:"size:20;not null" json:"fromStatus"`
	ToStatus          SchedulingStatus `gorm:"size:20;not null" json:"toStatus"`
	PreviousStartTime *time.Time       `json:"previousStartTime,omitempty"`
	NewStartTime      time.Time        `json:"newStartTime"`
	Timezone          string           `gorm:"size:64" json:"timezone"`
	Duration          int              `json:"duration"`
	ScheduledBy       string           `gorm:"type:varchar(36);not null" json:"scheduledBy"`
	ScheduledAt       time.Time        `json:"scheduledAt"`
}

func (QuizScheduleLog) TableName() string {
	return "quiz_schedule_logs"
}

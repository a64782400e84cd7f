package model

import (
	"time"

	"gorm.io/datatypes"
)

// swagger:model GenerationJob
// 题目生成任务，持久化保存以支持多实例部署与重启恢复
type GenerationJob struct {
	UUIDBase

	EducatorID    string              `gorm:"index;type:varchar(36);not null" json:"educatorId"`
	QuizID        *string             `gorm:"type:varchar(36)" json:"quizId,omitempty"`
	DocumentName  string              `gorm:"size:255;not null" json:"documentName"`
	Status        GenerationJobStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	QuestionCount int                 `json:"questionCount"`
	Error         string              `gorm:"type:text" json:"error,omitempty"`
	Payload       datatypes.JSON      `json:"payload,omitempty"`
	CompletedAt   *time.Time          `json:"completedAt,omitempty"`
}

func (GenerationJob) TableName() string {
	return "generation_jobs"
}

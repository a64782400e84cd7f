package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// AttemptAnswer 单题作答
type AttemptAnswer struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
	IsCorrect  bool   `json:"isCorrect"`
}

// swagger:model QuizAttempt
type QuizAttempt struct {
	UUIDBase

	QuizID       string        `gorm:"index;type:varchar(36);not null" json:"quizId"`
	StudentID    string        `gorm:"index;type:varchar(36);not null" json:"studentId"`
	EnrollmentID string        `gorm:"index;type:varchar(36);not null" json:"enrollmentId"`
	Status       AttemptStatus `gorm:"size:20;not null;default:'in_progress';index" json:"status"`

	Score          *float64       `json:"score"`
	TotalCorrect   int            `json:"totalCorrect"`
	TotalQuestions int            `json:"totalQuestions"`
	StartTime      *time.Time     `json:"startTime,omitempty"`
	EndTime        *time.Time     `json:"endTime,omitempty"`
	TimeSpent      int            `json:"timeSpent"` // Seconds
	Answers        datatypes.JSON `json:"answers"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// DecodeAnswers 解析 Answers 列；空值视为没有作答
func (a *QuizAttempt) DecodeAnswers() ([]AttemptAnswer, error) {
	if len(a.Answers) == 0 {
		return nil, nil
	}
	var out []AttemptAnswer
	if err := json.Unmarshal(a.Answers, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func EncodeAnswers(answers []AttemptAnswer) (datatypes.JSON, error) {
	if answers == nil {
		answers = []AttemptAnswer{}
	}
	b, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

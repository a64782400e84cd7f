package lifecycle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/pkg/apperr"
)

// TimeConfiguration quizzes.time_configuration 列的结构
type TimeConfiguration struct {
	DurationMinutes int `json:"durationMinutes"`
}

// ParseTimeConfiguration 解析计时配置；空值或 null 返回 nil
func ParseTimeConfiguration(raw []byte) (*TimeConfiguration, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var tc TimeConfiguration
	if err := json.Unmarshal(trimmed, &tc); err != nil {
		return nil, fmt.Errorf("%w: malformed time configuration: %v", apperr.ErrValidation, err)
	}
	return &tc, nil
}

// EffectiveDuration 超时清理使用的时长（分钟），计时配置优先于 Duration
func EffectiveDuration(quiz *model.Quiz) (int, error) {
	tc, err := ParseTimeConfiguration(quiz.TimeConfiguration)
	if err != nil {
		return 0, err
	}
	d := quiz.Duration
	if tc != nil && tc.DurationMinutes > 0 {
		d = tc.DurationMinutes
	}
	if d <= 0 {
		return 0, ErrNonPositiveDuration
	}
	return d, nil
}

// ClassifyStaleAttempt 判断进行中的作答是否已过期。
//   - 已开始（StartTime 非空）：超过 2 倍时长 -> timeout
//   - 从未开始：自 CreatedAt 起超过 1.5 倍时长 -> abandoned
//
// 返回 false 表示不处理。
func ClassifyStaleAttempt(attempt *model.QuizAttempt, durationMinutes int, now time.Time) (model.AttemptStatus, bool) {
	if attempt.Status != model.AttemptInProgress || durationMinutes <= 0 {
		return "", false
	}
	d := time.Duration(durationMinutes) * time.Minute

	if attempt.StartTime == nil {
		if now.Sub(attempt.CreatedAt) > d*3/2 {
			return model.AttemptAbandoned, true
		}
		return "", false
	}
	if now.Sub(*attempt.StartTime) > 2*d {
		return model.AttemptTimeout, true
	}
	return "", false
}

// StaleCutoff 早于该时间创建的进行中作答才可能过期，供数据库预筛选
func StaleCutoff(now time.Time, minDurationMinutes int) time.Time {
	if minDurationMinutes <= 0 {
		return now
	}
	return now.Add(-time.Duration(minDurationMinutes) * time.Minute * 3 / 2)
}

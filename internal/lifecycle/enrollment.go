package lifecycle

import (
	"fmt"
	"math"

	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/pkg/apperr"
)

var (
	ErrQuizNotStarted      = fmt.Errorf("%w: quiz has not started yet", apperr.ErrUnavailable)
	ErrQuizEnded           = fmt.Errorf("%w: quiz has ended", apperr.ErrUnavailable)
	ErrQuizAwaitSchedule   = fmt.Errorf("%w: quiz is awaiting schedule", apperr.ErrUnavailable)
	ErrQuizNotPublished    = fmt.Errorf("%w: quiz is not published", apperr.ErrUnavailable)
	ErrAlreadyCompleted    = fmt.Errorf("%w: quiz already completed", apperr.ErrConflict)
	ErrEnrollmentClosed    = fmt.Errorf("%w: enrollment is closed", apperr.ErrConflict)
	ErrAttemptNotActive    = fmt.Errorf("%w: attempt is no longer in progress", apperr.ErrConflict)
	ErrFalseCompletion     = fmt.Errorf("%w: submission has no answers or no score", apperr.ErrValidation)
	ErrTooManyAnswers      = fmt.Errorf("%w: more answers than questions", apperr.ErrValidation)
	ErrDuplicateAnswer     = fmt.Errorf("%w: question answered more than once", apperr.ErrValidation)
	ErrInvalidEnrollStatus = fmt.Errorf("%w: invalid enrollment status transition", apperr.ErrValidation)

	ErrQuestionCountUnknown  = fmt.Errorf("%w: total question count is required for this quiz", apperr.ErrValidation)
	ErrQuestionCountMismatch = fmt.Errorf("%w: total question count does not match the quiz", apperr.ErrValidation)
)

// UnavailableReason 把时间窗口结果转换为学生可见的拒绝原因，可用时返回 nil
func UnavailableReason(quiz *model.Quiz, a Availability) error {
	if a.Available {
		return nil
	}
	if quiz.Status != model.QuizPublished {
		return ErrQuizNotPublished
	}
	switch a.Status {
	case model.AvailabilityUpcoming:
		return ErrQuizNotStarted
	case model.AvailabilityEnded:
		return ErrQuizEnded
	default:
		return ErrQuizAwaitSchedule
	}
}

// CanEnroll 仅已发布且未结束的测验允许报名（待排期的也可以）
func CanEnroll(quiz *model.Quiz, a Availability) error {
	if quiz.Status != model.QuizPublished {
		return ErrQuizNotPublished
	}
	if a.Status == model.AvailabilityEnded {
		return ErrQuizEnded
	}
	return nil
}

// CanTransitionEnrollment 报名状态机，终态不再变化。
// completed -> abandoned 只允许由虚假完成纠正流程使用，见 CanCorrect。
func CanTransitionEnrollment(from, to model.EnrollmentStatus) bool {
	switch from {
	case model.EnrollmentEnrolled:
		return to == model.EnrollmentInProgress
	case model.EnrollmentInProgress:
		return to == model.EnrollmentCompleted || to == model.EnrollmentAbandoned || to == model.EnrollmentTimeout
	}
	return false
}

// CanCorrect 管理员纠正：只能把 completed 改回 abandoned
func CanCorrect(from, to model.EnrollmentStatus) bool {
	return from == model.EnrollmentCompleted && to == model.EnrollmentAbandoned
}

// CheckStart 判断有效报名是否可以开始（或继续）作答。
// 重新分配的报名绕过时间窗口，但不绕过发布状态。
func CheckStart(quiz *model.Quiz, eff *EffectiveEnrollment, a Availability) error {
	if eff == nil || eff.Enrollment == nil {
		return fmt.Errorf("%w: not enrolled in this quiz", apperr.ErrNotFound)
	}
	switch eff.Enrollment.Status {
	case model.EnrollmentCompleted:
		return ErrAlreadyCompleted
	case model.EnrollmentAbandoned, model.EnrollmentTimeout:
		return ErrEnrollmentClosed
	case model.EnrollmentEnrolled, model.EnrollmentInProgress:
	default:
		return ErrInvalidEnrollStatus
	}
	if eff.Bypass && quiz.Status == model.QuizPublished {
		return nil
	}
	return UnavailableReason(quiz, a)
}

// QuestionTotal 计分分母。测验记录了题目数时以其为准，客户端声明的数量
// 只能为 0 或与之相同；未记录时必须由客户端给出。
func QuestionTotal(quiz *model.Quiz, declared int) (int, error) {
	if declared < 0 {
		return 0, ErrQuestionCountMismatch
	}
	if quiz.QuestionCount > 0 {
		if declared != 0 && declared != quiz.QuestionCount {
			return 0, ErrQuestionCountMismatch
		}
		return quiz.QuestionCount, nil
	}
	if declared == 0 {
		return 0, ErrQuestionCountUnknown
	}
	return declared, nil
}

// ScoreSubmission 服务端计分：score = 100 * 正确数 / 题目数，保留两位小数。
// totalQuestions 来自 QuestionTotal，未作答的题目按错误计。
func ScoreSubmission(answers []model.AttemptAnswer, totalQuestions int) (score float64, correct int, err error) {
	if len(answers) == 0 {
		return 0, 0, ErrFalseCompletion
	}
	if totalQuestions <= 0 {
		return 0, 0, ErrQuestionCountUnknown
	}
	if len(answers) > totalQuestions {
		return 0, 0, ErrTooManyAnswers
	}

	seen := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		if _, dup := seen[a.QuestionID]; dup {
			return 0, 0, ErrDuplicateAnswer
		}
		seen[a.QuestionID] = struct{}{}
		if a.IsCorrect {
			correct++
		}
	}

	score = math.Round(float64(correct)*100/float64(totalQuestions)*100) / 100
	return score, correct, nil
}

// ValidateCompletion 完成作答前的最终校验
func ValidateCompletion(answers []model.AttemptAnswer, score *float64) error {
	if len(answers) == 0 || score == nil {
		return ErrFalseCompletion
	}
	return nil
}

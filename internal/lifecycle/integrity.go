package lifecycle

import (
	"sort"

	"scripture_quiz_backend/internal/model"
)

// IsFalseCompletion 标记为 completed 但没有分数或没有作答的记录
func IsFalseCompletion(attempt *model.QuizAttempt) bool {
	if attempt.Status != model.AttemptCompleted {
		return false
	}
	if attempt.Score == nil {
		return true
	}
	answers, err := attempt.DecodeAnswers()
	return err != nil || len(answers) == 0
}

// DuplicateGroup 同一 (测验, 学生) 存在多条原始报名
type DuplicateGroup struct {
	QuizID          string   `json:"quizId"`
	StudentID       string   `json:"studentId"`
	AuthoritativeID string   `json:"authoritativeId"`
	SupersededIDs   []string `json:"supersededIds"`
}

// FindDuplicateOriginals 按 (测验, 学生) 分组，权威记录的选择与 Resolve 一致。
// 结果按 QuizID、StudentID 排序。
func FindDuplicateOriginals(rows []model.Enrollment) []DuplicateGroup {
	type key struct{ quiz, student string }
	groups := make(map[key][]model.Enrollment)
	for _, e := range rows {
		if e.IsReassignment {
			continue
		}
		k := key{e.QuizID, e.StudentID}
		groups[k] = append(groups[k], e)
	}

	var out []DuplicateGroup
	for k, list := range groups {
		if len(list) < 2 {
			continue
		}
		eff := Resolve(list)
		g := DuplicateGroup{
			QuizID:          k.quiz,
			StudentID:       k.student,
			AuthoritativeID: eff.Original.ID,
		}
		for _, s := range eff.SupersededOriginals {
			g.SupersededIDs = append(g.SupersededIDs, s.ID)
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuizID != out[j].QuizID {
			return out[i].QuizID < out[j].QuizID
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out
}

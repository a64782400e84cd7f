package repository

import (
	"time"

	"gorm.io/gorm"

	"scripture_quiz_backend/pkg/cache"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Quiz          QuizRepository
	Enrollment    EnrollmentRepository
	Attempt       AttemptRepository
	User          UserRepository
	GenerationJob GenerationJobRepository
}

// NewRepository 创建 Repository 聚合；c 非空时测验读取走缓存
func NewRepository(db *gorm.DB, c cache.Client, ttl time.Duration) *Repository {
	var quiz QuizRepository = NewQuizRepo(db)
	if c != nil {
		quiz = NewCachedQuizRepo(quiz, c, ttl)
	}
	return &Repository{
		Quiz:          quiz,
		Enrollment:    NewEnrollmentRepo(db),
		Attempt:       NewAttemptRepo(db),
		User:          NewUserRepo(db),
		GenerationJob: NewGenerationJobRepo(db),
	}
}

package app

import (
	"github.com/gin-gonic/gin"

	"scripture_quiz_backend/internal/config"
	"scripture_quiz_backend/internal/middleware"
	"scripture_quiz_backend/internal/model"
	"scripture_quiz_backend/pkg/monitoring"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c, cfg)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/api/health", c.health.HealthCheck)

	// 出题服务回调，使用共享密钥而非用户令牌
	webhooks := router.Group("/api/webhooks")
	webhooks.Use(middleware.WebhookSecret(cfg.Webhook.Secret))
	{
		webhooks.POST("/generation-jobs/:id", c.generationJob.Callback)
	}
}

func (a *App) registerStudentRoutes(authGroup *gin.RouterGroup, c *controllers) {
	student := authGroup.Group("/student")
	student.Use(middleware.RoleMiddleware(model.Student))
	{
		student.GET("/quizzes", c.student.Dashboard)
		student.GET("/quizzes/:id/status", c.student.QuizStatus)
		student.POST("/quizzes/:id/enroll", c.student.Enroll)
		student.POST("/quizzes/:id/start", c.student.StartAttempt)
		student.POST("/attempts/:id/submit", c.student.SubmitAttempt)
	}

	// 教师查看学生作答也走这个接口，权限在服务层判断
	authGroup.GET("/student/attempts/:id", c.student.GetAttempt)
}

func (a *App) registerTeacherRoutes(authGroup *gin.RouterGroup, c *controllers) {
	teacher := authGroup.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Educator))
	{
		quizzes := teacher.Group("/quizzes")
		{
			quizzes.POST("", c.quiz.CreateQuiz)
			quizzes.GET("", c.quiz.ListQuizzes)
			quizzes.GET("/:id", c.quiz.GetQuiz)
			quizzes.POST("/:id/publish", c.quiz.PublishQuiz)
			quizzes.POST("/:id/archive", c.quiz.ArchiveQuiz)
			quizzes.PUT("/:id/schedule", c.quiz.ScheduleQuiz)
			quizzes.GET("/:id/availability", c.quiz.GetAvailability)
			quizzes.GET("/:id/schedule-logs", c.quiz.ListScheduleLogs)
			quizzes.GET("/:id/roster", c.quiz.ListRoster)
			quizzes.POST("/:id/reassignments", c.quiz.Reassign)
		}

		jobs := teacher.Group("/generation-jobs")
		{
			jobs.POST("", c.generationJob.SubmitJob)
			jobs.GET("", c.generationJob.ListJobs)
			jobs.GET("/:id", c.generationJob.GetJob)
		}
	}
}

func (a *App) registerAdminRoutes(authGroup *gin.RouterGroup, c *controllers) {
	admin := authGroup.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		maintenance := admin.Group("/maintenance")
		{
			maintenance.POST("/sweep", c.maintenance.Sweep)
			maintenance.GET("/false-completions", c.maintenance.ListFalseCompletions)
			maintenance.POST("/false-completions/correct", c.maintenance.CorrectFalseCompletions)
			maintenance.GET("/duplicate-enrollments", c.maintenance.ListDuplicateEnrollments)
		}
	}
}

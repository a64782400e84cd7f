package controller

import (
	"github.com/gin-gonic/gin"

	"scripture_quiz_backend/internal/service"
	"scripture_quiz_backend/internal/util"
)

type QuizController struct {
	QuizService       QuizManager
	EnrollmentService EnrollmentManager
}

func NewQuizController(quizService QuizManager, enrollmentService EnrollmentManager) *QuizController {
	return &QuizController{QuizService: quizService, EnrollmentService: enrollmentService}
}

// @Summary 创建测验
// @Description 提供 startTime 时为 scheduled，否则为 deferred；新测验为草稿
// @Tags 测验管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param quiz body service.CreateQuizRequest true "测验信息"
// @Success 201 {object} util.Response
// @Router /api/teacher/quizzes [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req service.CreateQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.QuizService.CreateQuiz(ctx.Request.Context(), actor.ID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// @Summary 我的测验列表
// @Tags 测验管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes [get]
func (c *QuizController) ListQuizzes(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	quizzes, err := c.QuizService.ListQuizzes(ctx.Request.Context(), actor.ID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"items": quizzes, "total": len(quizzes)})
}

// @Summary 测验详情
// @Tags 测验管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	quiz, err := c.QuizService.GetQuiz(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// @Summary 发布测验
// @Tags 测验管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{id}/publish [post]
func (c *QuizController) PublishQuiz(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	quiz, err := c.QuizService.PublishQuiz(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// @Summary 归档测验
// @Tags 测验管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{id}/archive [post]
func (c *QuizController) ArchiveQuiz(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	quiz, err := c.QuizService.ArchiveQuiz(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// @Summary 设置或修改开始时间
// @Description deferred -> scheduled 或重新排期；相同的请求重复提交不会产生新的记录
// @Tags 测验管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Param schedule body service.ScheduleQuizRequest true "排期"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{id}/schedule [put]
func (c *QuizController) ScheduleQuiz(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req service.ScheduleQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if req.StartTime.IsZero() {
		util.BadRequest(ctx, "startTime is required")
		return
	}

	quiz, err := c.QuizService.ScheduleQuiz(ctx.Request.Context(), actor, ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// @Summary 测验时间窗口
// @Tags 测验管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{id}/availability [get]
func (c *QuizController) GetAvailability(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	a, err := c.QuizService.GetAvailability(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, a)
}

// @Summary 排期变更记录
// @Tags 测验管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{id}/schedule-logs [get]
func (c *QuizController) ListScheduleLogs(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	logs, err := c.QuizService.ListScheduleLogs(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, logs)
}

// @Summary 学生名单
// @Description 每个学生的有效报名状态（已合并重新分配与重复报名）
// @Tags 测验管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{id}/roster [get]
func (c *QuizController) ListRoster(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	roster, err := c.EnrollmentService.ListQuizRoster(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, roster)
}

// @Summary 重新分配
// @Description 为未完成的学生创建一次不受时间窗口限制的作答机会
// @Tags 测验管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Param reassignment body service.ReassignRequest true "学生与原因"
// @Success 201 {object} util.Response
// @Router /api/teacher/quizzes/{id}/reassignments [post]
func (c *QuizController) Reassign(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req service.ReassignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	e, err := c.EnrollmentService.Reassign(ctx.Request.Context(), actor, ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, e)
}

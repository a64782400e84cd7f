package controller

import (
	"github.com/gin-gonic/gin"

	"scripture_quiz_backend/internal/service"
	"scripture_quiz_backend/internal/util"
)

type StudentController struct {
	EnrollmentService EnrollmentManager
	AttemptService    AttemptManager
}

func NewStudentController(enrollmentService EnrollmentManager, attemptService AttemptManager) *StudentController {
	return &StudentController{EnrollmentService: enrollmentService, AttemptService: attemptService}
}

// @Summary 我的测验
// @Description 所有已报名测验的状态与可执行操作
// @Tags 学生测验
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/student/quizzes [get]
func (c *StudentController) Dashboard(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	list, err := c.EnrollmentService.ListStudentDashboard(ctx.Request.Context(), actor.ID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// @Summary 测验状态
// @Tags 学生测验
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/student/quizzes/{id}/status [get]
func (c *StudentController) QuizStatus(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	st, err := c.EnrollmentService.GetStudentQuizStatus(ctx.Request.Context(), ctx.Param("id"), actor.ID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, st)
}

// @Summary 报名测验
// @Description 重复报名返回已有记录
// @Tags 学生测验
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 201 {object} util.Response
// @Success 200 {object} util.Response
// @Router /api/student/quizzes/{id}/enroll [post]
func (c *StudentController) Enroll(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	e, created, err := c.EnrollmentService.Enroll(ctx.Request.Context(), ctx.Param("id"), actor.ID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	if created {
		util.Created(ctx, e)
		return
	}
	util.Success(ctx, e)
}

// @Summary 开始作答
// @Description 已有进行中的作答时返回该作答（resumed=true）
// @Tags 学生测验
// @Produce json
// @Security BearerAuth
// @Param id path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/student/quizzes/{id}/start [post]
func (c *StudentController) StartAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	res, err := c.AttemptService.StartAttempt(ctx.Request.Context(), actor.ID, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 提交作答
// @Tags 学生测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "作答ID"
// @Param submission body service.SubmitAttemptRequest true "答案"
// @Success 200 {object} util.Response
// @Router /api/student/attempts/{id}/submit [post]
func (c *StudentController) SubmitAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req service.SubmitAttemptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.AttemptService.SubmitAttempt(ctx.Request.Context(), actor.ID, ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 作答详情
// @Tags 学生测验
// @Produce json
// @Security BearerAuth
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response
// @Router /api/student/attempts/{id} [get]
func (c *StudentController) GetAttempt(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	attempt, err := c.AttemptService.GetAttempt(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

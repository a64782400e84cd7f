package controller

import (
	"github.com/gin-gonic/gin"

	"scripture_quiz_backend/internal/service"
	"scripture_quiz_backend/internal/util"
)

type GenerationJobController struct {
	JobService GenerationJobManager
}

func NewGenerationJobController(jobService GenerationJobManager) *GenerationJobController {
	return &GenerationJobController{JobService: jobService}
}

// @Summary 登记题目生成任务
// @Tags 题目生成
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param job body service.SubmitJobRequest true "任务"
// @Success 201 {object} util.Response
// @Router /api/teacher/generation-jobs [post]
func (c *GenerationJobController) SubmitJob(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}

	var req service.SubmitJobRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	job, err := c.JobService.SubmitJob(ctx.Request.Context(), actor, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, job)
}

// @Summary 任务列表
// @Tags 题目生成
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/teacher/generation-jobs [get]
func (c *GenerationJobController) ListJobs(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	jobs, err := c.JobService.ListJobs(ctx.Request.Context(), actor)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, jobs)
}

// @Summary 任务详情
// @Tags 题目生成
// @Produce json
// @Security BearerAuth
// @Param id path string true "任务ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/generation-jobs/{id} [get]
func (c *GenerationJobController) GetJob(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	job, err := c.JobService.GetJob(ctx.Request.Context(), actor, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, job)
}

// @Summary 生成服务回调
// @Description 需要 X-Webhook-Secret 请求头
// @Tags 题目生成
// @Accept json
// @Produce json
// @Param id path string true "任务ID"
// @Param callback body service.JobCallbackRequest true "任务状态"
// @Success 200 {object} util.Response
// @Router /api/webhooks/generation-jobs/{id} [post]
func (c *GenerationJobController) Callback(ctx *gin.Context) {
	var req service.JobCallbackRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	job, err := c.JobService.RecordCallback(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, job)
}

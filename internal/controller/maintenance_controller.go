package controller

import (
	"time"

	"github.com/gin-gonic/gin"

	"scripture_quiz_backend/internal/util"
)

type MaintenanceController struct {
	MaintenanceService MaintenanceManager
	now                func() time.Time
}

func NewMaintenanceController(maintenanceService MaintenanceManager) *MaintenanceController {
	return &MaintenanceController{MaintenanceService: maintenanceService, now: time.Now}
}

// @Summary 清理超时作答
// @Tags 系统维护
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/admin/maintenance/sweep [post]
func (c *MaintenanceController) Sweep(ctx *gin.Context) {
	report, err := c.MaintenanceService.SweepStaleAttempts(ctx.Request.Context(), c.now())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// @Summary 虚假完成检测
// @Tags 系统维护
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/admin/maintenance/false-completions [get]
func (c *MaintenanceController) ListFalseCompletions(ctx *gin.Context) {
	list, err := c.MaintenanceService.DetectFalseCompletions(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// @Summary 纠正虚假完成
// @Description 把没有分数或作答的 completed 记录改回 abandoned
// @Tags 系统维护
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/admin/maintenance/false-completions/correct [post]
func (c *MaintenanceController) CorrectFalseCompletions(ctx *gin.Context) {
	actor, ok := currentActor(ctx)
	if !ok {
		return
	}
	report, err := c.MaintenanceService.CorrectFalseCompletions(ctx.Request.Context(), actor)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// @Summary 重复报名检测
// @Tags 系统维护
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/admin/maintenance/duplicate-enrollments [get]
func (c *MaintenanceController) ListDuplicateEnrollments(ctx *gin.Context) {
	groups, err := c.MaintenanceService.DetectDuplicateEnrollments(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, groups)
}

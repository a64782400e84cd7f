package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"scripture_quiz_backend/internal/util"
	"scripture_quiz_backend/pkg/cache"
)

type HealthController struct {
	DB    *gorm.DB
	Cache cache.Client
}

func NewHealthController(db *gorm.DB, c cache.Client) *HealthController {
	return &HealthController{DB: db, Cache: c}
}

// @Summary 健康检查
// @Description 检查数据库与缓存
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := c.DB.DB()
	if err != nil {
		util.InternalServerError(ctx)
		return
	}
	if err := sqlDB.PingContext(pingCtx); err != nil {
		util.Error(ctx, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	cacheStatus := "up"
	if c.Cache != nil {
		if err := c.Cache.Ping(pingCtx); err != nil {
			// 缓存不可用时读取会退化为直接查库，服务仍可用
			cacheStatus = "down"
		}
	}

	util.Success(ctx, gin.H{
		"status": "ok",
		"components": gin.H{
			"database": "up",
			"cache":    cacheStatus,
		},
	})
}

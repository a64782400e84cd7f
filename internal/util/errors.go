package util

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"scripture_quiz_backend/pkg/apperr"
)

// HandleError 按错误类别写出响应，未归类的错误记录日志后返回 500
func HandleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrOptimisticLock):
		Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrUnavailable):
		// 时间窗口外或未发布：请求本身合法，但当前不可执行
		Error(c, http.StatusConflict, err.Error())
	default:
		LogInternalError(c, err)
	}
}

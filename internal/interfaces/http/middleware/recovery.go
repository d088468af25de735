package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"webforge-ai-api/internal/interfaces/http/dto"
	apperrors "webforge-ai-api/pkg/errors"
	"webforge-ai-api/pkg/logger"
)

// Recovery 捕获 panic。堆栈只写日志，响应体固定为内部错误；
// 客户端已断开（http.ErrAbortHandler）时不记录堆栈。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				c.Abort()
				return
			}

			logger.Error(c.Request.Context(), "panic recovered", fmt.Errorf("panic: %v", rec),
				"route", c.FullPath(),
				"method", c.Request.Method,
				"stack", string(debug.Stack()),
			)

			// SSE 已开始写出时无法再改状态码，只能断开
			if c.Writer.Written() {
				c.Abort()
				return
			}
			dto.Abort(c, apperrors.ErrInternalError)
		}()

		c.Next()
	}
}

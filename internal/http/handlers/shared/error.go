package shared

import (
	"github.com/course-referral/internal/http/response"
	"github.com/course-referral/internal/i18n"
	"github.com/course-referral/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 携带 request_id 与操作人（admin_id / user_id）的日志实例
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	fields := make([]interface{}, 0, 6)
	if id := RequestID(c); id != "" {
		fields = append(fields, "request_id", id)
	}
	fields = append(fields, actorLogFields(c)...)
	return logger.SW(fields...)
}

// RespondError 按错误键输出本地化错误；有原始错误时记日志
func RespondError(c *gin.Context, code int, key string, err error) {
	msg := i18n.T(i18n.ResolveLocale(c), key)
	respond(c, response.WrapError(code, key, msg, err))
}

// RespondErrorWithMsg 消息已格式化（带参数的校验错误），仍保留错误键
func RespondErrorWithMsg(c *gin.Context, code int, key, msg string, err error) {
	respond(c, response.WrapError(code, key, msg, err))
}

func respond(c *gin.Context, appErr *response.AppError) {
	if appErr.Err != nil {
		log := RequestLog(c)
		if c != nil && c.Request != nil {
			log = log.With("method", c.Request.Method, "path", c.FullPath())
		}
		log.Errorw("handler_error",
			"code", appErr.Code,
			"key", appErr.Key,
			"error", appErr.Err,
		)
	}
	response.Fail(c, appErr)
}

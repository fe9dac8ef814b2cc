package shared

import (
	"github.com/course-referral/internal/http/response"

	"github.com/gin-gonic/gin"
)

// 鉴权中间件写入的上下文键
const (
	ContextKeyAdminID   = "admin_id"
	ContextKeyUserID    = "user_id"
	ContextKeyRequestID = "request_id"
)

// AdminID 当前管理员 ID；缺失或非法时已写出错误响应
func AdminID(c *gin.Context) (uint, bool) {
	return requireContextID(c, ContextKeyAdminID, "error.admin_id_invalid")
}

// UserID 当前用户/代理 ID；缺失或非法时已写出错误响应
func UserID(c *gin.Context) (uint, bool) {
	return requireContextID(c, ContextKeyUserID, "error.user_id_invalid")
}

// RequestID 读取当前请求 ID
func RequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if value, ok := c.Get(ContextKeyRequestID); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}

func requireContextID(c *gin.Context, key, invalidKey string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return 0, false
	}
	id, typed := contextUint(value)
	if !typed {
		RespondError(c, response.CodeInternal, "error.context_type_invalid", nil)
		return 0, false
	}
	if id == 0 {
		RespondError(c, response.CodeUnauthorized, invalidKey, nil)
		return 0, false
	}
	return id, true
}

// contextUint JWT 解出的 ID 可能是 uint 或 float64
func contextUint(value interface{}) (uint, bool) {
	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			return 0, true
		}
		return uint(v), true
	case float64:
		if v < 0 {
			return 0, true
		}
		return uint(v), true
	default:
		return 0, false
	}
}

// actorLogFields 日志用操作人字段，不写响应
func actorLogFields(c *gin.Context) []interface{} {
	var fields []interface{}
	for _, key := range []string{ContextKeyAdminID, ContextKeyUserID} {
		value, ok := c.Get(key)
		if !ok {
			continue
		}
		if id, typed := contextUint(value); typed && id > 0 {
			fields = append(fields, key, id)
		}
	}
	return fields
}

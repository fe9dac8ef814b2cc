package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构，HTTP 状态码固定 200，业务结果看 status_code
type Response struct {
	StatusCode int         `json:"status_code"`
	Msg        string      `json:"msg"`
	Data       interface{} `json:"data"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	StatusCode int         `json:"status_code"`
	Msg        string      `json:"msg"`
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"page_size"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"total_page"`
}

// ErrorData 错误响应的 data 部分
// Error 为稳定的错误键（如 error.bank_details_not_verified），前端按键分支，msg 仅用于展示
type ErrorData struct {
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		StatusCode: CodeOK,
		Msg:        "success",
		Data:       data,
	})
}

// SuccessWithPage 分页成功响应
func SuccessWithPage(c *gin.Context, data interface{}, pagination Pagination) {
	c.JSON(http.StatusOK, PageResponse{
		StatusCode: CodeOK,
		Msg:        "success",
		Data:       data,
		Pagination: pagination,
	})
}

// Fail 输出业务错误，附带错误键与请求 ID
func Fail(c *gin.Context, appErr *AppError) {
	if appErr == nil {
		appErr = WrapError(CodeInternal, "error.internal", "internal error", nil)
	}
	c.JSON(http.StatusOK, Response{
		StatusCode: appErr.Code,
		Msg:        appErr.Message,
		Data:       ErrorData{Error: appErr.Key, RequestID: requestID(c)},
	})
}

// Unauthorized 401
func Unauthorized(c *gin.Context, key, msg string) {
	Fail(c, WrapError(CodeUnauthorized, key, msg, nil))
}

// Forbidden 403
func Forbidden(c *gin.Context, key, msg string) {
	Fail(c, WrapError(CodeForbidden, key, msg, nil))
}

func requestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if value, ok := c.Get("request_id"); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}

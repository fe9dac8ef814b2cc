package public

import "github.com/course-referral/internal/provider"

// Handler 代理端/公开接口处理器入口
// 说明：该处理器用于用户、代理与支付回调 API。
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

package admin

import (
	"time"

	"github.com/course-referral/internal/provider"
)

// Handler 管理端接口：佣金台账、提现审核、代理与银行信息管理
type Handler struct {
	*provider.Container
	// now 日期范围筛选的基准时间
	now func() time.Time
}

// New 创建管理端处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c, now: time.Now}
}

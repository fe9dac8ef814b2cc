package admin

import (
	handlershared "github.com/course-referral/internal/http/handlers/shared"
	"github.com/course-referral/internal/service"

	"github.com/gin-gonic/gin"
)

func getAdminID(c *gin.Context) (uint, bool) {
	return handlershared.AdminID(c)
}

// actorFromContext 构造审计操作人；未登录时由调用方拦截
func actorFromContext(c *gin.Context) (service.Actor, bool) {
	adminID, ok := getAdminID(c)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{AdminID: adminID, RequestID: handlershared.RequestID(c)}, true
}

func parsePathUint(c *gin.Context, name string) (uint, bool) {
	return handlershared.ParsePathUint(c, name)
}

package router

import (
	"net/http"
	"sort"
	"strings"

	"github.com/course-referral/internal/authz"
	"github.com/course-referral/internal/cache"
	"github.com/course-referral/internal/config"
	adminhandlers "github.com/course-referral/internal/http/handlers/admin"
	publichandlers "github.com/course-referral/internal/http/handlers/public"
	handlershared "github.com/course-referral/internal/http/handlers/shared"
	"github.com/course-referral/internal/http/response"
	"github.com/course-referral/internal/logger"
	"github.com/course-referral/internal/metrics"
	"github.com/course-referral/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	handlershared.RegisterValidators()
	r := gin.New()

	// 初始化 Handler（按代理端/管理端分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "cr"
	}
	redisClient := cache.Client()
	loginRule := RuleFromConfig(redisPrefix+":rate:login", cfg.Security.LoginRateLimit)
	adminLoginRule := RuleFromConfig(redisPrefix+":rate:admin_login", cfg.Security.LoginRateLimit)
	payoutRule := RuleFromConfig(redisPrefix+":rate:payout_request", cfg.Security.PayoutRateLimit)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	if cfg.Metrics.Enabled {
		r.Use(metrics.GinMiddleware())
	}
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		// 支付系统回调（签名校验在处理器内完成）
		apiV1.POST("/webhooks/payment-completed", publicHandler.PaymentCompletedWebhook)

		// 公开接口
		apiV1.GET("/referrals/validate/:code", publicHandler.ValidateReferralCode)

		// 用户认证接口
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", RateLimitMiddleware(redisClient, loginRule, KeyByIP), publicHandler.Register)
			auth.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("email")), publicHandler.Login)
		}

		// 用户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.UserJWT.SecretKey, c.UserRepo))
		{
			user.GET("/auth/me", publicHandler.GetMe)
			user.POST("/auth/apply-agent", publicHandler.ApplyAgent)
			user.GET("/auth/bank-details", publicHandler.GetBankDetails)
			user.PUT("/auth/bank-details", publicHandler.UpdateBankDetails)
		}

		// 代理接口
		agent := apiV1.Group("")
		agent.Use(UserJWTAuthMiddleware(cfg.UserJWT.SecretKey, c.UserRepo), AgentOnlyMiddleware())
		{
			requestPayout := RateLimitMiddleware(redisClient, payoutRule, KeyByUserID)
			agent.GET("/referrals/stats", publicHandler.GetReferralStats)
			agent.GET("/referrals/agent-dashboard", publicHandler.GetAgentDashboard)
			agent.GET("/referrals/my-referrals", publicHandler.GetMyReferrals)
			agent.GET("/referrals/commissions", publicHandler.GetMyCommissions)
			agent.GET("/referrals/code", publicHandler.GetReferralCode)
			agent.POST("/referrals/request-payout", requestPayout, publicHandler.RequestPayout)
			agent.POST("/payout-requests", requestPayout, publicHandler.RequestPayout)
			agent.GET("/payout-requests", publicHandler.GetMyPayoutRequests)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIP), adminHandler.AdminLogin)

			// 需要鉴权的接口
			authorized := admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo), AdminRBACMiddleware(c.AuthzService))
			{
				// 佣金管理
				authorized.GET("/commissions", adminHandler.GetAdminCommissions)
				authorized.GET("/commissions/export", adminHandler.ExportCommissions)
				authorized.GET("/commissions/manual-payouts", adminHandler.GetManualPayouts)
				authorized.GET("/commissions/:id", adminHandler.GetAdminCommission)
				authorized.PUT("/commissions/:id/status", adminHandler.UpdateCommissionStatus)
				authorized.POST("/commissions/:id/cancel", adminHandler.CancelCommission)
				authorized.POST("/commissions/bulk-payout", adminHandler.BulkPayout)
				authorized.POST("/commissions/payout", adminHandler.ManualPayout)
				authorized.POST("/commissions/bank-transfer", adminHandler.BankTransfer)

				// 提现申请
				authorized.GET("/payout-requests", adminHandler.GetAdminPayoutRequests)
				authorized.GET("/payout-requests/:id", adminHandler.GetAdminPayoutRequest)
				authorized.POST("/payout-requests", adminHandler.CreateAdminPayoutRequest)
				authorized.PUT("/payout-requests/:id/process", adminHandler.ProcessPayoutRequest)

				// 用户与代理
				authorized.GET("/users", adminHandler.GetAdminUsers)
				authorized.PUT("/users/:id/verify-bank-details", adminHandler.VerifyUserBankDetails)
				authorized.PUT("/users/:id/approve-agent", adminHandler.ApproveAgent)
				authorized.PUT("/users/:id/role", adminHandler.UpdateUserRole)

				// 统计与审计
				authorized.GET("/stats/overview", adminHandler.GetStatsOverview)
				authorized.GET("/referrals/top-agents", adminHandler.GetTopAgents)
				authorized.GET("/audit-logs", adminHandler.GetAuditLogs)

				// 权限管理
				authorized.GET("/authz/roles", adminHandler.GetAuthzRoles)
				authorized.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
				authorized.POST("/authz/roles/:role/policies", adminHandler.GrantAuthzRolePolicy)
				authorized.DELETE("/authz/roles/:role/policies", adminHandler.RevokeAuthzRolePolicy)
				authorized.GET("/authz/admins/:id/roles", adminHandler.GetAuthzAdminRoles)
				authorized.PUT("/authz/admins/:id/roles", adminHandler.SetAuthzAdminRoles)
				authorized.GET("/authz/admins/:id/policies", adminHandler.GetAuthzAdminPolicies)
				authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
					response.Success(ctx, buildAdminPermissionCatalog(r))
				})
			}
		}
	}

	// 指标（未配置独立监听地址时挂在主服务）
	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Addr) == "" {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

// buildAdminPermissionCatalog 列出可授权的管理端路由，供角色配置使用
func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == http.MethodOptions || method == http.MethodHead {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") || item.Path == "/api/v1/admin/login" {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 || segments[0] != "admin" {
		return segments[0]
	}
	return segments[1]
}

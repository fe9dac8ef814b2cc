package provider

import (
	"time"

	"github.com/course-referral/internal/authz"
	"github.com/course-referral/internal/cache"
	"github.com/course-referral/internal/config"
	"github.com/course-referral/internal/constants"
	"github.com/course-referral/internal/logger"
	"github.com/course-referral/internal/models"
	"github.com/course-referral/internal/payout"
	"github.com/course-referral/internal/payout/paypal"
	"github.com/course-referral/internal/payout/stripe"
	"github.com/course-referral/internal/queue"
	"github.com/course-referral/internal/repository"
	"github.com/course-referral/internal/service"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config         *config.Config
	DB             *gorm.DB
	QueueClient    *queue.Client
	PayoutGateways *payout.Registry

	// Repositories
	AdminRepo         repository.AdminRepository
	UserRepo          repository.UserRepository
	CommissionRepo    repository.CommissionRepository
	PaymentRepo       repository.PaymentRepository
	PayoutRequestRepo repository.PayoutRequestRepository
	ManualPayoutRepo  repository.ManualPayoutRepository
	AuditLogRepo      repository.AuditLogRepository

	// Services
	AuthzService         *authz.Service
	AuthService          *service.AuthService
	UserAuthService      *service.UserAuthService
	UserAdminService     *service.UserAdminService
	AuditService         *service.AuditService
	AggregatorService    *service.AggregatorService
	CommissionService    *service.CommissionService
	PayoutExecutor       *service.PayoutExecutorService
	PayoutRequestService *service.PayoutRequestService
	BankDetailService    *service.BankDetailService
	PaymentEventService  *service.PaymentEventService
	ExportService        *service.ExportService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil)
	}

	return NewContainerWith(cfg, models.DB, queueClient, buildPayoutRegistry(cfg.Payout))
}

// NewContainerWith 使用指定依赖组装容器（测试可注入内存库与假网关）
func NewContainerWith(cfg *config.Config, db *gorm.DB, queueClient *queue.Client, gateways *payout.Registry) *Container {
	if gateways == nil {
		gateways = payout.NewRegistry()
	}
	c := &Container{
		Config:         cfg,
		DB:             db,
		QueueClient:    queueClient,
		PayoutGateways: gateways,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	c.AdminRepo = repository.NewAdminRepository(c.DB)
	c.UserRepo = repository.NewUserRepository(c.DB)
	c.CommissionRepo = repository.NewCommissionRepository(c.DB)
	c.PaymentRepo = repository.NewPaymentRepository(c.DB)
	c.PayoutRequestRepo = repository.NewPayoutRequestRepository(c.DB)
	c.ManualPayoutRepo = repository.NewManualPayoutRepository(c.DB)
	c.AuditLogRepo = repository.NewAuditLogRepository(c.DB)
}

func (c *Container) initServices() {
	cfg := c.Config
	currency := cfg.Commission.Currency
	if currency == "" {
		currency = constants.CurrencyDefault
	}

	authzService, err := authz.NewService(c.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
	} else if err := authzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_authz_roles_failed", "error", err)
	}
	c.AuthzService = authzService

	c.AuthService = service.NewAuthService(cfg, c.AdminRepo)
	c.UserAuthService = service.NewUserAuthService(cfg, c.UserRepo)
	c.UserAdminService = service.NewUserAdminService(c.UserRepo, parseDefaultRate(cfg.Commission.DefaultRate))
	c.AuditService = service.NewAuditService(c.AuditLogRepo)
	c.AggregatorService = service.NewAggregatorService(
		c.CommissionRepo,
		c.PaymentRepo,
		c.UserRepo,
		time.Duration(cfg.Commission.SummaryCacheTTLSeconds)*time.Second,
	)
	c.CommissionService = service.NewCommissionService(c.CommissionRepo, c.UserRepo, c.AuditService, c.AggregatorService)
	c.PayoutExecutor = service.NewPayoutExecutorService(
		c.CommissionService,
		c.CommissionRepo,
		c.UserRepo,
		c.ManualPayoutRepo,
		c.AuditService,
		c.AggregatorService,
		c.QueueClient,
		c.PayoutGateways,
		currency,
	)
	c.PayoutRequestService = service.NewPayoutRequestService(
		c.PayoutRequestRepo,
		c.CommissionRepo,
		c.UserRepo,
		c.CommissionService,
		c.AuditService,
	)
	c.BankDetailService = service.NewBankDetailService(c.DB, c.UserRepo, c.AuditService)
	c.PaymentEventService = service.NewPaymentEventService(
		c.PaymentRepo,
		c.CommissionService,
		c.QueueClient,
		cfg.Payment.WebhookSecret,
		currency,
	)
	c.ExportService = service.NewExportService(c.CommissionRepo, cfg.Commission.ExportMaxRows)
}

func buildPayoutRegistry(cfg config.PayoutConfig) *payout.Registry {
	gateways := make([]payout.Gateway, 0, 2)
	if cfg.Stripe.Enabled {
		gw, err := stripe.New(stripe.Config{SecretKey: cfg.Stripe.SecretKey})
		if err != nil {
			logger.Errorw("provider_init_stripe_payout_failed", "error", err)
		} else {
			gateways = append(gateways, gw)
		}
	}
	if cfg.Paypal.Enabled {
		gw, err := paypal.New(paypal.Config{
			ClientID:     cfg.Paypal.ClientID,
			ClientSecret: cfg.Paypal.ClientSecret,
			BaseURL:      cfg.Paypal.BaseURL,
			Timeout:      time.Duration(cfg.Paypal.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			logger.Errorw("provider_init_paypal_payout_failed", "error", err)
		} else {
			gateways = append(gateways, gw)
		}
	}
	return payout.NewRegistry(gateways...)
}

func parseDefaultRate(raw string) decimal.Decimal {
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		logger.Warnw("provider_default_rate_invalid", "value", raw, "fallback", "0.10")
		return decimal.RequireFromString("0.10")
	}
	return rate
}

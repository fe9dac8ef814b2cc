package constants

// 佣金状态常量
const (
	CommissionStatusPending   = "pending"
	CommissionStatusPaid      = "paid"
	CommissionStatusCancelled = "cancelled"
)

// 结算方式常量
const (
	PayoutMethodBankTransfer = "bank_transfer"
	PayoutMethodStripe       = "stripe_payout"
	PayoutMethodPaypal       = "paypal"
	PayoutMethodManual       = "manual"
)

// PayoutMethods 支持的结算方式
var PayoutMethods = []string{
	PayoutMethodBankTransfer,
	PayoutMethodStripe,
	PayoutMethodPaypal,
	PayoutMethodManual,
}

// 提现申请状态常量
const (
	PayoutRequestStatusPending   = "pending"
	PayoutRequestStatusApproved  = "approved"
	PayoutRequestStatusCompleted = "completed"
	PayoutRequestStatusRejected  = "rejected"
)

// 外部打款状态常量
const (
	GatewayStatusNone      = "none"
	GatewayStatusQueued    = "queued"
	GatewayStatusSucceeded = "succeeded"
	GatewayStatusFailed    = "failed"
	GatewayStatusNotNeeded = "not_needed"
)

// 课程支付状态常量
const (
	CoursePaymentStatusCompleted = "completed"
)

// 用户角色常量
const (
	UserRoleUser  = "user"
	UserRoleAgent = "agent"
	UserRoleAdmin = "admin"
)

// 代理审核状态常量
const (
	AgentStatusNone     = "none"
	AgentStatusPending  = "pending"
	AgentStatusApproved = "approved"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 审计对象类型常量
const (
	AuditEntityCommission    = "commission"
	AuditEntityPayoutRequest = "payout_request"
	AuditEntityManualPayout  = "manual_payout"
	AuditEntityBankDetails   = "bank_details"
)

// 审计动作常量
const (
	AuditActionCommissionCreated   = "commission_created"
	AuditActionCommissionPaid      = "commission_paid"
	AuditActionCommissionCancelled = "commission_cancelled"
	AuditActionCommissionOverride  = "commission_manual_override"
	AuditActionPayoutRequested     = "payout_requested"
	AuditActionPayoutApproved      = "payout_approved"
	AuditActionPayoutCompleted     = "payout_completed"
	AuditActionPayoutRejected      = "payout_rejected"
	AuditActionManualPayout        = "manual_payout"
	AuditActionBulkPayout          = "bulk_payout"
	AuditActionBankTransfer        = "bank_transfer"
	AuditActionBankDetailsUpdated  = "bank_details_updated"
	AuditActionBankDetailsReset    = "bank_details_reset"
	AuditActionBankDetailsVerified = "bank_details_verified"
	AuditActionGatewayConfirmed    = "gateway_confirmed"
)

// 时间范围筛选常量
const (
	DateRangeAll        = "all"
	DateRangeLast7Days  = "last7days"
	DateRangeLast30Days = "last30days"
	DateRangeLast90Days = "last90days"
)

// 队列常量
const (
	QueueDefault          = "default"
	QueuePayout           = "payout"
	TaskCommissionCreate  = "commission:create"
	TaskPayoutDispatch    = "payout:dispatch"
	TaskSummaryInvalidate = "summary:invalidate"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "cr"
)

// 币种常量
const (
	CurrencyDefault = "GBP"
)

// 站点语言常量
const (
	LocaleZhCN = "zh-CN"
	LocaleEnUS = "en-US"
)

// 支持的站点语言顺序（含回退顺序）
var SupportedLocales = []string{LocaleEnUS, LocaleZhCN}

// 导出格式常量
const (
	ExportFormatXLSX = "xlsx"
)

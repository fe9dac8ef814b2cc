package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// CommissionListFilter 佣金列表过滤条件
type CommissionListFilter struct {
	Page        int
	PageSize    int
	AgentID     uint
	Status      string
	PaymentID   string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// PayoutRequestListFilter 提现申请列表过滤条件
type PayoutRequestListFilter struct {
	Page        int
	PageSize    int
	AgentID     uint
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// UserListFilter 用户列表过滤条件
type UserListFilter struct {
	Page     int
	PageSize int
	Role     string
	Keyword  string
}

// AuditLogListFilter 审计日志过滤条件
type AuditLogListFilter struct {
	Page            int
	PageSize        int
	EntityType      string
	EntityID        uint
	Action          string
	OperatorAdminID uint
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
}

// CommissionAggregate 佣金聚合结果（按状态拆分）
type CommissionAggregate struct {
	TotalCommission     decimal.Decimal
	PendingCommission   decimal.Decimal
	PaidCommission      decimal.Decimal
	CancelledCommission decimal.Decimal
	TotalCount          int64
	PendingCount        int64
	PaidCount           int64
}

// AgentCommissionAggregate 单个代理的佣金聚合
type AgentCommissionAggregate struct {
	AgentID uint
	CommissionAggregate
	ReferralCount int64
}

// PayoutRequestAggregate 提现申请金额汇总
type PayoutRequestAggregate struct {
	TotalAmount     decimal.Decimal
	PendingAmount   decimal.Decimal
	ApprovedAmount  decimal.Decimal
	CompletedAmount decimal.Decimal
	RejectedAmount  decimal.Decimal
}

// PaymentAggregate 课程支付汇总
type PaymentAggregate struct {
	TotalRevenue     decimal.Decimal
	TotalPayments    int64
	ReferralPayments int64
}

package models

import "time"

// CoursePayment 课程支付完成事件落库
type CoursePayment struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                         // 主键
	PaymentRef     string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"payment_ref"`    // 外部支付ID
	UserID         uint      `gorm:"not null;default:0;index" json:"user_id"`                      // 付款用户
	AgentID        *uint     `gorm:"index" json:"agent_id,omitempty"`                              // 推荐代理
	Amount         Money     `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`          // 支付金额
	Currency       string    `gorm:"type:varchar(10);not null" json:"currency"`                    // 币种
	CommissionRate Rate      `gorm:"type:decimal(10,4);not null;default:0" json:"commission_rate"` // 事件携带佣金比例
	Status         string    `gorm:"type:varchar(20);not null;index" json:"status"`                // 支付状态
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                                      // 落库时间

	CommissionSkippedAt  *time.Time `gorm:"index" json:"commission_skipped_at,omitempty"`                         // 补建佣金放弃时间
	CommissionSkipReason string     `gorm:"type:varchar(255);not null;default:''" json:"commission_skip_reason"` // 放弃原因
}

// TableName 指定表名
func (CoursePayment) TableName() string {
	return "course_payments"
}

package models

import (
	"time"
)

// CommissionRecord 推荐佣金台账记录（只增不删）
type CommissionRecord struct {
	ID              uint       `gorm:"primarykey" json:"id"`                                                      // 主键
	AgentID         uint       `gorm:"not null;index:idx_commission_agent_status" json:"agent_id"`                // 代理用户ID
	ReferralUserID  uint       `gorm:"not null;index" json:"referral_user_id"`                                    // 被推荐用户ID
	PaymentID       string     `gorm:"type:varchar(100);not null;uniqueIndex" json:"payment_id"`                  // 来源课程支付ID（一笔支付仅一条佣金）
	PaymentAmount   Money      `gorm:"type:decimal(20,2);not null;default:0" json:"payment_amount"`               // 支付金额
	Amount          Money      `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`                       // 佣金金额
	CommissionRate  Rate       `gorm:"type:decimal(10,4);not null;default:0" json:"commission_rate"`              // 佣金比例快照
	Status          string     `gorm:"type:varchar(20);not null;index:idx_commission_agent_status" json:"status"` // 佣金状态
	PayoutMethod    string     `gorm:"type:varchar(32);not null;default:''" json:"payout_method"`                 // 结算方式
	PayoutReference string     `gorm:"type:varchar(255);not null;default:'';index" json:"payout_reference"`       // 结算流水号
	Notes           string     `gorm:"type:text" json:"notes"`                                                    // 管理员备注
	CancelReason    string     `gorm:"type:varchar(255);not null;default:''" json:"cancel_reason"`                // 取消原因
	Version         uint       `gorm:"not null;default:1" json:"version"`                                         // 乐观锁版本
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`                                                   // 创建时间
	UpdatedAt       time.Time  `json:"updated_at"`                                                                // 更新时间
	PaidAt          *time.Time `gorm:"index" json:"paid_at"`                                                      // 结算时间

	Agent        *User `gorm:"foreignKey:AgentID" json:"agent,omitempty"`                // 代理
	ReferralUser *User `gorm:"foreignKey:ReferralUserID" json:"referral_user,omitempty"` // 被推荐用户
}

// TableName 指定表名
func (CommissionRecord) TableName() string {
	return "commission_records"
}

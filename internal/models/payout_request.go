package models

import (
	"time"
)

// PayoutRequest 代理提现申请
type PayoutRequest struct {
	ID              uint       `gorm:"primarykey" json:"id"`                                          // 主键
	AgentID         uint       `gorm:"not null;index" json:"agent_id"`                                // 代理用户ID
	Amount          Money      `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`           // 申请金额
	Status          string     `gorm:"type:varchar(20);not null;index" json:"status"`                 // 申请状态
	RequestDate     time.Time  `gorm:"not null;index" json:"request_date"`                            // 申请时间
	ProcessedDate   *time.Time `gorm:"index" json:"processed_date"`                                   // 首次处理时间
	ProcessedBy     *uint      `gorm:"index" json:"processed_by,omitempty"`                           // 处理管理员
	AdminNotes      string     `gorm:"type:text" json:"admin_notes"`                                  // 管理员备注
	PayoutReference string     `gorm:"type:varchar(255);not null;default:''" json:"payout_reference"` // 打款流水号
	RejectionReason string     `gorm:"type:varchar(255);not null;default:''" json:"rejection_reason"` // 拒绝原因
	Version         uint       `gorm:"not null;default:1" json:"version"`                             // 乐观锁版本
	UpdatedAt       time.Time  `json:"updated_at"`                                                    // 更新时间

	Agent         *User                     `gorm:"foreignKey:AgentID" json:"agent,omitempty"` // 代理
	CommissionIDs []uint                    `gorm:"-" json:"commission_ids"`                   // 关联佣金ID
	Items         []PayoutRequestCommission `gorm:"foreignKey:PayoutRequestID" json:"-"`       // 关联明细
}

// TableName 指定表名
func (PayoutRequest) TableName() string {
	return "payout_requests"
}

// FillCommissionIDs 从明细回填佣金 ID 列表
func (r *PayoutRequest) FillCommissionIDs() {
	if r == nil {
		return
	}
	ids := make([]uint, 0, len(r.Items))
	for _, item := range r.Items {
		ids = append(ids, item.CommissionID)
	}
	r.CommissionIDs = ids
}

// PayoutRequestCommission 提现申请与佣金关联
type PayoutRequestCommission struct {
	ID              uint      `gorm:"primarykey" json:"id"`                                                           // 主键
	PayoutRequestID uint      `gorm:"not null;index:idx_payout_request_commission,unique" json:"payout_request_id"`   // 提现申请ID
	CommissionID    uint      `gorm:"not null;index:idx_payout_request_commission,unique;index" json:"commission_id"` // 佣金ID
	CreatedAt       time.Time `json:"created_at"`                                                                     // 创建时间
}

// TableName 指定表名
func (PayoutRequestCommission) TableName() string {
	return "payout_request_commissions"
}

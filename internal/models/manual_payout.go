package models

import "time"

// ManualPayout 管理员手动打款记录（不绑定具体佣金）
type ManualPayout struct {
	ID               uint      `gorm:"primarykey" json:"id"`                                           // 主键
	AgentID          uint      `gorm:"not null;index" json:"agent_id"`                                 // 代理用户ID
	Amount           Money     `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`            // 打款金额
	PaymentMethod    string    `gorm:"type:varchar(32);not null" json:"payment_method"`                // 打款方式
	Notes            string    `gorm:"type:text" json:"notes"`                                         // 备注
	BankVerified     bool      `gorm:"not null;default:false" json:"bank_verified"`                    // 打款时银行信息是否已验证
	CreatedBy        uint      `gorm:"not null;index" json:"created_by"`                               // 操作管理员
	GatewayStatus    string    `gorm:"type:varchar(20);not null;default:'none'" json:"gateway_status"` // 外部打款状态
	GatewayReference string    `gorm:"type:varchar(255);not null;default:''" json:"gateway_reference"` // 外部打款流水
	GatewayError     string    `gorm:"type:varchar(500);not null;default:''" json:"gateway_error"`     // 外部打款错误
	CreatedAt        time.Time `gorm:"index" json:"created_at"`                                        // 创建时间
	UpdatedAt        time.Time `json:"updated_at"`                                                     // 更新时间
}

// TableName 指定表名
func (ManualPayout) TableName() string {
	return "manual_payouts"
}

package models

import "time"

// CommissionAuditLog 佣金与打款审计日志
// 说明：每次状态变更与打款动作都在同一事务内写入一条记录，人工回退单独标记。
type CommissionAuditLog struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	EntityType       string    `gorm:"type:varchar(32);index:idx_audit_entity;not null" json:"entity_type"`
	EntityID         uint      `gorm:"index:idx_audit_entity;not null" json:"entity_id"`
	Action           string    `gorm:"type:varchar(64);index;not null" json:"action"`
	FromStatus       string    `gorm:"type:varchar(20);not null;default:''" json:"from_status"`
	ToStatus         string    `gorm:"type:varchar(20);not null;default:''" json:"to_status"`
	IsManualOverride bool      `gorm:"not null;default:false;index" json:"is_manual_override"`
	OperatorAdminID  uint      `gorm:"index;not null;default:0" json:"operator_admin_id"`
	RequestID        string    `gorm:"type:varchar(64);index;not null;default:''" json:"request_id"`
	DetailJSON       JSON      `gorm:"type:json" json:"detail"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (CommissionAuditLog) TableName() string {
	return "commission_audit_logs"
}

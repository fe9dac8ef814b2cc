package models

import (
	"strings"
	"time"

	"github.com/course-referral/internal/constants"

	"gorm.io/gorm"
)

// User 用户表（含代理与银行信息）
type User struct {
	ID             uint           `gorm:"primarykey" json:"id"`                                           // 主键
	Email          string         `gorm:"uniqueIndex;not null" json:"email"`                              // 邮箱
	PasswordHash   string         `gorm:"not null" json:"-"`                                              // 密码哈希（不返回给前端）
	DisplayName    string         `gorm:"default:''" json:"display_name"`                                 // 昵称
	Role           string         `gorm:"type:varchar(20);not null;default:'user';index" json:"role"`     // 角色
	AgentStatus    string         `gorm:"type:varchar(20);not null;default:'none'" json:"agent_status"`   // 代理审核状态
	CommissionRate Rate           `gorm:"type:decimal(10,4);not null;default:0.1" json:"commission_rate"` // 当前佣金比例（仅影响新佣金）
	ReferralCode   *string        `gorm:"type:varchar(32);uniqueIndex" json:"referral_code,omitempty"`    // 推荐码
	ReferredBy     *uint          `gorm:"index" json:"referred_by,omitempty"`                             // 推荐人
	Status         string         `gorm:"default:'active'" json:"status"`                                 // 账号状态
	TokenVersion   uint64         `gorm:"not null;default:0" json:"-"`                                    // Token 版本（用于全量失效）
	BankDetails    BankDetails    `gorm:"embedded;embeddedPrefix:bank_" json:"bank_details"`              // 银行信息
	LastLoginAt    *time.Time     `json:"last_login_at"`                                                  // 最后登录时间
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                                        // 创建时间
	UpdatedAt      time.Time      `gorm:"index" json:"updated_at"`                                        // 更新时间
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                                                 // 软删除时间
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// IsAgent 是否为已审核代理
func (u *User) IsAgent() bool {
	return u != nil && u.Role == constants.UserRoleAgent
}

// BankDetails 代理收款银行信息
type BankDetails struct {
	BankName          string     `gorm:"type:varchar(120);not null;default:''" json:"bank_name"`           // 银行名称
	AccountHolderName string     `gorm:"type:varchar(120);not null;default:''" json:"account_holder_name"` // 开户人
	AccountNumber     string     `gorm:"type:varchar(64);not null;default:''" json:"account_number"`       // 账号
	RoutingNumber     string     `gorm:"type:varchar(64);not null;default:''" json:"routing_number"`       // 路由号 / Sort code
	SwiftCode         string     `gorm:"type:varchar(32);not null;default:''" json:"swift_code"`           // SWIFT
	IBAN              string     `gorm:"type:varchar(64);not null;default:''" json:"iban"`                 // IBAN
	StripeAccountID   string     `gorm:"type:varchar(64);not null;default:''" json:"stripe_account_id"`    // Stripe Connect 账号
	PaypalEmail       string     `gorm:"type:varchar(255);not null;default:''" json:"paypal_email"`        // PayPal 收款邮箱
	IsVerified        bool       `gorm:"not null;default:false" json:"isVerified"`                        // 是否已由管理员验证
	VerificationNotes string     `gorm:"type:varchar(500);not null;default:''" json:"verificationNotes"`  // 验证备注
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`                                            // 验证时间
	VerifiedBy        *uint      `json:"verified_by,omitempty"`                                            // 验证管理员
}

// IdentifiersEqual 判断收款标识是否一致（任一变化都需要重新验证）
func (b BankDetails) IdentifiersEqual(other BankDetails) bool {
	return normalizeIdentifier(b.BankName) == normalizeIdentifier(other.BankName) &&
		normalizeIdentifier(b.AccountNumber) == normalizeIdentifier(other.AccountNumber) &&
		normalizeIdentifier(b.RoutingNumber) == normalizeIdentifier(other.RoutingNumber) &&
		normalizeIdentifier(b.SwiftCode) == normalizeIdentifier(other.SwiftCode) &&
		normalizeIdentifier(b.IBAN) == normalizeIdentifier(other.IBAN) &&
		normalizeIdentifier(b.StripeAccountID) == normalizeIdentifier(other.StripeAccountID) &&
		normalizeIdentifier(b.PaypalEmail) == normalizeIdentifier(other.PaypalEmail)
}

// IsEmpty 是否尚未填写
func (b BankDetails) IsEmpty() bool {
	return strings.TrimSpace(b.AccountNumber) == "" && strings.TrimSpace(b.IBAN) == ""
}

func normalizeIdentifier(v string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(v), " ", ""))
}

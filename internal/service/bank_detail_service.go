package service

import (
	"context"
	"strings"
	"time"

	"github.com/course-referral/internal/cache"
	"github.com/course-referral/internal/constants"
	"github.com/course-referral/internal/logger"
	"github.com/course-referral/internal/models"
	"github.com/course-referral/internal/repository"

	"gorm.io/gorm"
)

// BankDetailService 代理收款信息与验证闸门
type BankDetailService struct {
	userRepo repository.UserRepository
	db       *gorm.DB
	audit    *AuditService
}

// NewBankDetailService 创建收款信息服务
func NewBankDetailService(db *gorm.DB, userRepo repository.UserRepository, audit *AuditService) *BankDetailService {
	return &BankDetailService{
		userRepo: userRepo,
		db:       db,
		audit:    audit,
	}
}

// BankDetailsInput 代理提交的收款信息
type BankDetailsInput struct {
	BankName          string
	AccountHolderName string
	AccountNumber     string
	RoutingNumber     string
	SwiftCode         string
	IBAN              string
	StripeAccountID   string
	PaypalEmail       string
}

// VerifyBankDetailsInput 管理员验证输入
type VerifyBankDetailsInput struct {
	IsVerified bool
	Notes      string
	Actor      Actor
}

// GetBankDetails 查询代理收款信息
func (s *BankDetailService) GetBankDetails(agentID uint) (*models.BankDetails, error) {
	user, err := s.userRepo.GetByID(agentID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrAgentNotFound
	}
	details := user.BankDetails
	return &details, nil
}

// SubmitBankDetails 代理提交/更新收款信息；任何收款标识变化都会清除验证状态
func (s *BankDetailService) SubmitBankDetails(agentID uint, input BankDetailsInput) (*models.BankDetails, error) {
	next := models.BankDetails{
		BankName:          strings.TrimSpace(input.BankName),
		AccountHolderName: strings.TrimSpace(input.AccountHolderName),
		AccountNumber:     strings.TrimSpace(input.AccountNumber),
		RoutingNumber:     strings.TrimSpace(input.RoutingNumber),
		SwiftCode:         strings.ToUpper(strings.TrimSpace(input.SwiftCode)),
		IBAN:              strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(input.IBAN), " ", "")),
		StripeAccountID:   strings.TrimSpace(input.StripeAccountID),
		PaypalEmail:       strings.ToLower(strings.TrimSpace(input.PaypalEmail)),
	}
	if next.BankName == "" || next.AccountHolderName == "" || (next.AccountNumber == "" && next.IBAN == "") {
		return nil, ErrBankDetailsIncomplete
	}

	var (
		result   models.BankDetails
		wasReset bool
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		userTx := s.userRepo.WithTx(tx)
		user, err := userTx.GetByIDForUpdate(agentID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrAgentNotFound
		}
		if !user.IsAgent() {
			return ErrNotAgent
		}

		current := user.BankDetails
		changed := !current.IdentifiersEqual(next)
		updates := map[string]interface{}{
			"bank_bank_name":           next.BankName,
			"bank_account_holder_name": next.AccountHolderName,
			"bank_account_number":      next.AccountNumber,
			"bank_routing_number":      next.RoutingNumber,
			"bank_swift_code":          next.SwiftCode,
			"bank_iban":                next.IBAN,
			"bank_stripe_account_id":   next.StripeAccountID,
			"bank_paypal_email":        next.PaypalEmail,
			"updated_at":               time.Now(),
		}
		next.IsVerified = current.IsVerified
		next.VerificationNotes = current.VerificationNotes
		next.VerifiedAt = current.VerifiedAt
		next.VerifiedBy = current.VerifiedBy
		if changed {
			updates["bank_is_verified"] = false
			updates["bank_verified_at"] = nil
			updates["bank_verified_by"] = nil
			next.IsVerified = false
			next.VerifiedAt = nil
			next.VerifiedBy = nil
		}
		if err := userTx.UpdateFields(agentID, updates); err != nil {
			return err
		}
		result = next

		if !changed && !current.IsEmpty() {
			return nil
		}
		action := constants.AuditActionBankDetailsUpdated
		if current.IsVerified && changed {
			action = constants.AuditActionBankDetailsReset
			wasReset = true
		}
		return s.audit.RecordTx(tx, AuditRecordInput{
			EntityType: constants.AuditEntityBankDetails,
			EntityID:   agentID,
			Action:     action,
			FromStatus: verifiedStatusLabel(current.IsVerified),
			ToStatus:   verifiedStatusLabel(next.IsVerified),
			Detail: models.JSON{
				"bank_name":       next.BankName,
				"account_suffix":  maskAccountSuffix(next.AccountNumber, next.IBAN),
				"identifiers_new": changed,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if wasReset {
		logger.Warnw("bank_details_verification_reset", "agent_id", agentID)
	}
	_ = cache.DelUserAuthState(context.Background(), agentID)
	return &result, nil
}

// Verify 管理员设置验证状态，仅影响之后的打款操作
func (s *BankDetailService) Verify(agentID uint, input VerifyBankDetailsInput) (*models.BankDetails, error) {
	var result models.BankDetails
	err := s.db.Transaction(func(tx *gorm.DB) error {
		userTx := s.userRepo.WithTx(tx)
		user, err := userTx.GetByIDForUpdate(agentID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrAgentNotFound
		}
		if input.IsVerified && user.BankDetails.IsEmpty() {
			return ErrBankDetailsIncomplete
		}
		now := time.Now()
		notes := strings.TrimSpace(input.Notes)
		updates := map[string]interface{}{
			"bank_is_verified":        input.IsVerified,
			"bank_verification_notes": notes,
			"updated_at":              now,
		}
		details := user.BankDetails
		details.IsVerified = input.IsVerified
		details.VerificationNotes = notes
		if input.IsVerified {
			adminID := input.Actor.AdminID
			updates["bank_verified_at"] = now
			updates["bank_verified_by"] = adminID
			details.VerifiedAt = &now
			details.VerifiedBy = &adminID
		} else {
			updates["bank_verified_at"] = nil
			updates["bank_verified_by"] = nil
			details.VerifiedAt = nil
			details.VerifiedBy = nil
		}
		if err := userTx.UpdateFields(agentID, updates); err != nil {
			return err
		}
		result = details
		return s.audit.RecordTx(tx, AuditRecordInput{
			EntityType: constants.AuditEntityBankDetails,
			EntityID:   agentID,
			Action:     constants.AuditActionBankDetailsVerified,
			FromStatus: verifiedStatusLabel(user.BankDetails.IsVerified),
			ToStatus:   verifiedStatusLabel(input.IsVerified),
			Actor:      input.Actor,
			Detail:     models.JSON{"notes": notes},
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("bank_details_verification_set",
		"agent_id", agentID,
		"is_verified", input.IsVerified,
		"operator_admin_id", input.Actor.AdminID,
	)
	return &result, nil
}

// IsVerified 每次从数据库读取验证状态（事务内调用时传入 tx）
func (s *BankDetailService) IsVerified(tx *gorm.DB, agentID uint) (bool, error) {
	repo := s.userRepo
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	user, err := repo.GetByID(agentID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, ErrAgentNotFound
	}
	return user.BankDetails.IsVerified, nil
}

func verifiedStatusLabel(verified bool) string {
	if verified {
		return "verified"
	}
	return "unverified"
}

func maskAccountSuffix(accountNumber, iban string) string {
	value := accountNumber
	if value == "" {
		value = iban
	}
	if len(value) <= 4 {
		return value
	}
	return value[len(value)-4:]
}

package service

import (
	"errors"
	"strings"
	"time"

	"github.com/course-referral/internal/constants"
	"github.com/course-referral/internal/logger"
	"github.com/course-referral/internal/metrics"
	"github.com/course-referral/internal/models"
	"github.com/course-referral/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionService 佣金台账状态机
type CommissionService struct {
	repo       repository.CommissionRepository
	userRepo   repository.UserRepository
	audit      *AuditService
	aggregator *AggregatorService
}

// NewCommissionService 创建佣金服务
func NewCommissionService(
	repo repository.CommissionRepository,
	userRepo repository.UserRepository,
	audit *AuditService,
	aggregator *AggregatorService,
) *CommissionService {
	return &CommissionService{
		repo:       repo,
		userRepo:   userRepo,
		audit:      audit,
		aggregator: aggregator,
	}
}

// CreateCommissionInput 创建佣金输入
type CreateCommissionInput struct {
	PaymentID      string
	AgentID        uint
	ReferralUserID uint
	PaymentAmount  decimal.Decimal
	// Rate 为空时使用代理当前佣金比例
	Rate  *decimal.Decimal
	Actor Actor
}

// MarkPaidInput 标记已结算输入
type MarkPaidInput struct {
	PayoutMethod    string
	PayoutReference string
	Notes           string
	Actor           Actor
}

// SetStatusInput 管理员单条改状态输入
type SetStatusInput struct {
	Status          string
	PayoutMethod    string
	PayoutReference string
	Notes           string
	Actor           Actor
}

// CreateCommission 由课程支付完成事件创建待结算佣金
func (s *CommissionService) CreateCommission(input CreateCommissionInput) (*models.CommissionRecord, error) {
	paymentID := strings.TrimSpace(input.PaymentID)
	if paymentID == "" {
		return nil, ErrPaymentIDRequired
	}
	paymentAmount, err := normalizeMoneyAmount(input.PaymentAmount)
	if err != nil {
		return nil, err
	}

	var created models.CommissionRecord
	err = s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		existing, err := repoTx.GetByPaymentID(paymentID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicatePayment
		}

		agent, err := s.userRepo.WithTx(tx).GetByID(input.AgentID)
		if err != nil {
			return err
		}
		if agent == nil {
			return ErrAgentNotFound
		}
		if !agent.IsAgent() {
			return ErrNotAgent
		}

		rate := agent.CommissionRate.Decimal
		if input.Rate != nil {
			rate = *input.Rate
		}
		rate, err = normalizeCommissionRate(rate)
		if err != nil {
			return err
		}

		now := time.Now()
		created = models.CommissionRecord{
			AgentID:        agent.ID,
			ReferralUserID: input.ReferralUserID,
			PaymentID:      paymentID,
			PaymentAmount:  models.NewMoneyFromDecimal(paymentAmount),
			Amount:         models.NewMoneyFromDecimal(paymentAmount.Mul(rate)),
			CommissionRate: models.NewRate(rate),
			Status:         constants.CommissionStatusPending,
			Version:        1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := repoTx.Create(&created); err != nil {
			if isUniqueConstraintError(err) {
				return ErrDuplicatePayment
			}
			return err
		}
		return s.audit.RecordTx(tx, AuditRecordInput{
			EntityType: constants.AuditEntityCommission,
			EntityID:   created.ID,
			Action:     constants.AuditActionCommissionCreated,
			ToStatus:   constants.CommissionStatusPending,
			Actor:      input.Actor,
			Detail: models.JSON{
				"payment_id":      paymentID,
				"agent_id":        agent.ID,
				"payment_amount":  created.PaymentAmount.String(),
				"amount":          created.Amount.String(),
				"commission_rate": created.CommissionRate.String(),
			},
		})
	})
	if err != nil {
		if errors.Is(err, ErrDuplicatePayment) {
			metrics.ObserveRejection("create_commission", "duplicate_payment")
		}
		return nil, err
	}

	metrics.ObserveCommissionCreated()
	s.aggregator.InvalidateAgents(created.AgentID)
	logger.Infow("commission_created",
		"commission_id", created.ID,
		"payment_id", created.PaymentID,
		"agent_id", created.AgentID,
		"amount", created.Amount.String(),
	)
	return &created, nil
}

// MarkPaid 标记单条佣金已结算
func (s *CommissionService) MarkPaid(id uint, input MarkPaidInput) (*models.CommissionRecord, error) {
	method, err := normalizePayoutMethod(input.PayoutMethod)
	if err != nil {
		return nil, err
	}
	return s.transit(id, "mark_paid", commissionChange{
		To:              constants.CommissionStatusPaid,
		PayoutMethod:    method,
		PayoutReference: strings.TrimSpace(input.PayoutReference),
		Notes:           strings.TrimSpace(input.Notes),
		Actor:           input.Actor,
	})
}

// MarkCancelled 取消待结算佣金，金额保留用于审计
func (s *CommissionService) MarkCancelled(id uint, reason string, actor Actor) (*models.CommissionRecord, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrCancelReasonRequired
	}
	return s.transit(id, "mark_cancelled", commissionChange{
		To:           constants.CommissionStatusCancelled,
		CancelReason: reason,
		Actor:        actor,
	})
}

// SetStatus 管理员单条改状态；paid -> pending 仅在此处允许并记为人工回退
func (s *CommissionService) SetStatus(id uint, input SetStatusInput) (*models.CommissionRecord, error) {
	status := strings.ToLower(strings.TrimSpace(input.Status))
	if !isCommissionStatus(status) {
		return nil, ErrInvalidStatus
	}
	change := commissionChange{
		To:            status,
		Notes:         strings.TrimSpace(input.Notes),
		AllowOverride: true,
		Actor:         input.Actor,
	}
	switch status {
	case constants.CommissionStatusPaid:
		method, err := normalizePayoutMethod(input.PayoutMethod)
		if err != nil {
			return nil, err
		}
		change.PayoutMethod = method
		change.PayoutReference = strings.TrimSpace(input.PayoutReference)
	case constants.CommissionStatusCancelled:
		if change.Notes == "" {
			return nil, ErrCancelReasonRequired
		}
		change.CancelReason = change.Notes
	}
	return s.transit(id, "set_status", change)
}

// normalizeCommissionRate 佣金比例保留 4 位小数，须在 [0,1] 区间
func normalizeCommissionRate(rate decimal.Decimal) (decimal.Decimal, error) {
	rate = rate.Round(4)
	if rate.LessThan(decimal.Zero) || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, ErrInvalidCommissionRate
	}
	return rate, nil
}

// GetByID 查询佣金详情
func (s *CommissionService) GetByID(id uint) (*models.CommissionRecord, error) {
	record, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}
	return record, nil
}

// List 佣金列表
func (s *CommissionService) List(filter repository.CommissionListFilter) ([]models.CommissionRecord, int64, error) {
	return s.repo.List(filter)
}

func (s *CommissionService) transit(id uint, operation string, change commissionChange) (*models.CommissionRecord, error) {
	if id == 0 {
		return nil, ErrNotFound
	}
	var (
		from    string
		agentID uint
		record  *models.CommissionRecord
	)
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		var err error
		record, err = s.repo.WithTx(tx).GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if record == nil {
			return ErrNotFound
		}
		from = record.Status
		agentID = record.AgentID
		return s.applyTransitionTx(tx, record, change)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			metrics.ObserveRejection(operation, "invalid_transition")
		}
		return nil, err
	}

	s.afterTransition(from, change.To, operation, 1, agentID)
	if from == constants.CommissionStatusPaid && change.To == constants.CommissionStatusPending {
		logger.Warnw("commission_manual_override",
			"commission_id", id,
			"agent_id", agentID,
			"from_status", from,
			"to_status", change.To,
			"operator_admin_id", change.Actor.AdminID,
		)
	} else {
		logger.Infow("commission_"+operationLogSuffix(change.To),
			"commission_id", id,
			"agent_id", agentID,
			"payout_method", change.PayoutMethod,
			"operator_admin_id", change.Actor.AdminID,
		)
	}
	return record, nil
}

// afterTransition 提交后刷新汇总缓存与指标
func (s *CommissionService) afterTransition(from, to, source string, count int, agentIDs ...uint) {
	metrics.ObserveTransition(from, to, source, count)
	s.aggregator.InvalidateAgents(agentIDs...)
}

func operationLogSuffix(to string) string {
	switch to {
	case constants.CommissionStatusPaid:
		return "marked_paid"
	case constants.CommissionStatusCancelled:
		return "cancelled"
	}
	return "status_changed"
}

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

// payoutRequestTransitions 提现申请合法流转
var payoutRequestTransitions = map[string][]string{
	constants.PayoutRequestStatusPending: {
		constants.PayoutRequestStatusApproved,
		constants.PayoutRequestStatusCompleted,
		constants.PayoutRequestStatusRejected,
	},
	constants.PayoutRequestStatusApproved: {
		constants.PayoutRequestStatusCompleted,
		constants.PayoutRequestStatusRejected,
	},
}

// PayoutRequestService 代理提现申请流程
type PayoutRequestService struct {
	repo           repository.PayoutRequestRepository
	commissionRepo repository.CommissionRepository
	userRepo       repository.UserRepository
	commissions    *CommissionService
	audit          *AuditService
}

// NewPayoutRequestService 创建提现申请服务
func NewPayoutRequestService(
	repo repository.PayoutRequestRepository,
	commissionRepo repository.CommissionRepository,
	userRepo repository.UserRepository,
	commissions *CommissionService,
	audit *AuditService,
) *PayoutRequestService {
	return &PayoutRequestService{
		repo:           repo,
		commissionRepo: commissionRepo,
		userRepo:       userRepo,
		commissions:    commissions,
		audit:          audit,
	}
}

// CreatePayoutRequestInput 提交提现申请输入
type CreatePayoutRequestInput struct {
	AgentID       uint
	Amount        decimal.Decimal
	CommissionIDs []uint
	Actor         Actor
}

// ProcessPayoutRequestInput 管理员处理提现申请输入
type ProcessPayoutRequestInput struct {
	Status          string
	AdminNotes      string
	PayoutReference string
	RejectionReason string
	Actor           Actor
}

// PayoutRequestSummary 提现申请列表汇总
type PayoutRequestSummary struct {
	TotalAmount     models.Money `json:"totalAmount"`
	PendingAmount   models.Money `json:"pendingAmount"`
	ApprovedAmount  models.Money `json:"approvedAmount"`
	CompletedAmount models.Money `json:"completedAmount"`
	RejectedAmount  models.Money `json:"rejectedAmount"`
}

// CreateRequest 代理发起提现；银行信息验证状态在事务内重新读取
func (s *PayoutRequestService) CreateRequest(input CreatePayoutRequestInput) (*models.PayoutRequest, error) {
	amount, err := normalizeMoneyAmount(input.Amount)
	if err != nil {
		return nil, err
	}
	ids := normalizeCommissionIDs(input.CommissionIDs)

	var created models.PayoutRequest
	err = s.repo.Transaction(func(tx *gorm.DB) error {
		agent, err := s.userRepo.WithTx(tx).GetByIDForUpdate(input.AgentID)
		if err != nil {
			return err
		}
		if agent == nil {
			return ErrAgentNotFound
		}
		if !agent.IsAgent() {
			return ErrNotAgent
		}
		if !agent.BankDetails.IsVerified {
			return ErrBankDetailsNotVerified
		}

		commissionRepo := s.commissionRepo.WithTx(tx)
		var available decimal.Decimal
		if len(ids) > 0 {
			rows, err := commissionRepo.ListByIDsForUpdate(ids)
			if err != nil {
				return err
			}
			if len(rows) != len(ids) {
				return ErrCommissionNotOwned
			}
			for _, row := range rows {
				if row.AgentID != agent.ID || row.Status != constants.CommissionStatusPending {
					return ErrCommissionNotOwned
				}
			}
			open, err := s.repo.WithTx(tx).ListOpenCommissionIDs(ids)
			if err != nil {
				return err
			}
			if len(open) > 0 {
				return ErrCommissionAlreadyRequested
			}
			available = sumCommissionAmounts(rows)
		} else {
			available, err = commissionRepo.SumPendingByAgent(agent.ID)
			if err != nil {
				return err
			}
		}
		if available.Round(2).LessThan(amount) {
			return ErrNoPendingCommission
		}

		now := time.Now()
		created = models.PayoutRequest{
			AgentID:     agent.ID,
			Amount:      models.NewMoneyFromDecimal(amount),
			Status:      constants.PayoutRequestStatusPending,
			RequestDate: now,
			Version:     1,
			UpdatedAt:   now,
		}
		if err := s.repo.WithTx(tx).Create(&created, ids); err != nil {
			return err
		}
		return s.audit.RecordTx(tx, AuditRecordInput{
			EntityType: constants.AuditEntityPayoutRequest,
			EntityID:   created.ID,
			Action:     constants.AuditActionPayoutRequested,
			ToStatus:   constants.PayoutRequestStatusPending,
			Actor:      input.Actor,
			Detail: models.JSON{
				"agent_id":       agent.ID,
				"amount":         created.Amount.String(),
				"commission_ids": ids,
			},
		})
	})
	if err != nil {
		if errors.Is(err, ErrBankDetailsNotVerified) || errors.Is(err, ErrNoPendingCommission) {
			metrics.ObserveRejection("create_payout_request", rejectionLabel(err))
		}
		return nil, err
	}

	metrics.ObservePayoutRequest(constants.PayoutRequestStatusPending)
	logger.Infow("payout_request_created",
		"payout_request_id", created.ID,
		"agent_id", created.AgentID,
		"amount", created.Amount.String(),
		"commission_count", len(ids),
	)
	return &created, nil
}

// ProcessRequest 管理员处理提现申请
func (s *PayoutRequestService) ProcessRequest(id uint, input ProcessPayoutRequestInput) (*models.PayoutRequest, error) {
	if id == 0 {
		return nil, ErrNotFound
	}
	target := strings.ToLower(strings.TrimSpace(input.Status))
	switch target {
	case constants.PayoutRequestStatusApproved, constants.PayoutRequestStatusCompleted, constants.PayoutRequestStatusRejected:
	default:
		return nil, ErrInvalidStatus
	}
	reference := strings.TrimSpace(input.PayoutReference)
	rejectionReason := strings.TrimSpace(input.RejectionReason)
	if target == constants.PayoutRequestStatusCompleted && reference == "" {
		return nil, ErrPayoutReferenceRequired
	}
	if target == constants.PayoutRequestStatusRejected && rejectionReason == "" {
		return nil, ErrRejectionReasonRequired
	}
	adminNotes := strings.TrimSpace(input.AdminNotes)

	var (
		agentID uint
		from    string
		settled []models.CommissionRecord
	)
	err := s.repo.Transaction(func(tx *gorm.DB) error {
		repoTx := s.repo.WithTx(tx)
		req, err := repoTx.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if req == nil {
			return ErrNotFound
		}
		from = req.Status
		agentID = req.AgentID
		if isPayoutRequestTerminal(req.Status) {
			return ErrAlreadyFinalized
		}
		if !canTransitPayoutRequest(req.Status, target) {
			return ErrInvalidTransition
		}

		now := time.Now()
		adminID := input.Actor.AdminID
		updates := map[string]interface{}{
			"status": target,
		}
		if adminNotes != "" {
			updates["admin_notes"] = adminNotes
		}
		if req.ProcessedDate == nil {
			updates["processed_date"] = now
		}
		if adminID != 0 {
			updates["processed_by"] = adminID
		}

		detail := models.JSON{
			"agent_id": req.AgentID,
			"amount":   req.Amount.String(),
		}
		switch target {
		case constants.PayoutRequestStatusCompleted:
			updates["payout_reference"] = reference
			detail["payout_reference"] = reference
			settled, err = s.settleRequestTx(tx, req, reference, adminNotes, input.Actor)
			if err != nil {
				return err
			}
			settledIDs := make([]uint, 0, len(settled))
			for _, row := range settled {
				settledIDs = append(settledIDs, row.ID)
			}
			detail["commission_ids"] = settledIDs
			detail["settled_amount"] = sumCommissionAmounts(settled).StringFixed(2)
		case constants.PayoutRequestStatusRejected:
			updates["rejection_reason"] = rejectionReason
			detail["rejection_reason"] = rejectionReason
		}

		ok, err := repoTx.UpdateGuarded(req.ID, req.Status, req.Version, updates)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		return s.audit.RecordTx(tx, AuditRecordInput{
			EntityType: constants.AuditEntityPayoutRequest,
			EntityID:   req.ID,
			Action:     payoutRequestAuditAction(target),
			FromStatus: req.Status,
			ToStatus:   target,
			Actor:      input.Actor,
			Detail:     detail,
		})
	})
	if err != nil {
		if errors.Is(err, ErrPartialSettlementConflict) {
			metrics.ObserveRejection("process_payout_request", rejectionLabel(err))
		}
		return nil, err
	}

	metrics.ObservePayoutRequest(target)
	if len(settled) > 0 {
		s.commissions.afterTransition(constants.CommissionStatusPending, constants.CommissionStatusPaid, "payout_request", len(settled), agentID)
		metrics.ObservePayout(constants.PayoutMethodBankTransfer, sumCommissionAmounts(settled))
	}
	logger.Infow("payout_request_processed",
		"payout_request_id", id,
		"agent_id", agentID,
		"from_status", from,
		"to_status", target,
		"settled_count", len(settled),
		"operator_admin_id", input.Actor.AdminID,
	)
	return s.repo.GetByID(id)
}

// settleRequestTx 完成申请时结算关联佣金；无关联佣金时按金额 FIFO 结算并回写关联
func (s *PayoutRequestService) settleRequestTx(tx *gorm.DB, req *models.PayoutRequest, reference, notes string, actor Actor) ([]models.CommissionRecord, error) {
	change := commissionChange{
		To:              constants.CommissionStatusPaid,
		PayoutMethod:    constants.PayoutMethodBankTransfer,
		PayoutReference: reference,
		Notes:           notes,
		Action:          constants.AuditActionPayoutCompleted,
		Actor:           actor,
		Detail:          models.JSON{"payout_request_id": req.ID},
	}
	if len(req.CommissionIDs) == 0 {
		rows, _, err := s.commissions.settleFIFOTx(tx, req.AgentID, req.Amount.Decimal, change)
		if err != nil {
			return nil, err
		}
		ids := make([]uint, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		if err := s.repo.WithTx(tx).AttachCommissions(req.ID, ids); err != nil {
			return nil, err
		}
		return rows, nil
	}

	rows, err := s.commissionRepo.WithTx(tx).ListByIDsForUpdate(req.CommissionIDs)
	if err != nil {
		return nil, err
	}
	if len(rows) != len(req.CommissionIDs) {
		return nil, ErrPartialSettlementConflict
	}
	for _, row := range rows {
		if row.Status != constants.CommissionStatusPending || row.AgentID != req.AgentID {
			return nil, ErrPartialSettlementConflict
		}
	}
	for i := range rows {
		if err := s.commissions.applyTransitionTx(tx, &rows[i], change); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				return nil, ErrPartialSettlementConflict
			}
			return nil, err
		}
	}
	return rows, nil
}

// GetByID 查询提现申请
func (s *PayoutRequestService) GetByID(id uint) (*models.PayoutRequest, error) {
	req, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrNotFound
	}
	return req, nil
}

// ListRequests 管理端提现申请列表与金额汇总
func (s *PayoutRequestService) ListRequests(filter repository.PayoutRequestListFilter) ([]models.PayoutRequest, int64, *PayoutRequestSummary, error) {
	rows, total, err := s.repo.List(filter)
	if err != nil {
		return nil, 0, nil, err
	}
	agg, err := s.repo.Aggregate(filter)
	if err != nil {
		return nil, 0, nil, err
	}
	return rows, total, &PayoutRequestSummary{
		TotalAmount:     models.NewMoneyFromDecimal(agg.TotalAmount),
		PendingAmount:   models.NewMoneyFromDecimal(agg.PendingAmount),
		ApprovedAmount:  models.NewMoneyFromDecimal(agg.ApprovedAmount),
		CompletedAmount: models.NewMoneyFromDecimal(agg.CompletedAmount),
		RejectedAmount:  models.NewMoneyFromDecimal(agg.RejectedAmount),
	}, nil
}

// ListAgentRequests 代理自己的提现申请
func (s *PayoutRequestService) ListAgentRequests(agentID uint, page, pageSize int) ([]models.PayoutRequest, int64, error) {
	if agentID == 0 {
		return []models.PayoutRequest{}, 0, nil
	}
	return s.repo.List(repository.PayoutRequestListFilter{
		Page:     page,
		PageSize: pageSize,
		AgentID:  agentID,
	})
}

func isPayoutRequestTerminal(status string) bool {
	return status == constants.PayoutRequestStatusCompleted || status == constants.PayoutRequestStatusRejected
}

func canTransitPayoutRequest(from, to string) bool {
	for _, next := range payoutRequestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func payoutRequestAuditAction(status string) string {
	switch status {
	case constants.PayoutRequestStatusApproved:
		return constants.AuditActionPayoutApproved
	case constants.PayoutRequestStatusCompleted:
		return constants.AuditActionPayoutCompleted
	default:
		return constants.AuditActionPayoutRejected
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/course-referral/internal/constants"
	"github.com/course-referral/internal/logger"
	"github.com/course-referral/internal/metrics"
	"github.com/course-referral/internal/models"
	"github.com/course-referral/internal/payout"
	"github.com/course-referral/internal/queue"
	"github.com/course-referral/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const gatewayDispatchTimeout = 30 * time.Second

// PayoutExecutorService 批量/手动/银行转账打款执行器
type PayoutExecutorService struct {
	commissions    *CommissionService
	commissionRepo repository.CommissionRepository
	userRepo       repository.UserRepository
	manualRepo     repository.ManualPayoutRepository
	audit          *AuditService
	aggregator     *AggregatorService
	queueClient    *queue.Client
	gateways       *payout.Registry
	currency       string
}

// NewPayoutExecutorService 创建打款执行器
func NewPayoutExecutorService(
	commissions *CommissionService,
	commissionRepo repository.CommissionRepository,
	userRepo repository.UserRepository,
	manualRepo repository.ManualPayoutRepository,
	audit *AuditService,
	aggregator *AggregatorService,
	queueClient *queue.Client,
	gateways *payout.Registry,
	currency string,
) *PayoutExecutorService {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = constants.CurrencyDefault
	}
	return &PayoutExecutorService{
		commissions:    commissions,
		commissionRepo: commissionRepo,
		userRepo:       userRepo,
		manualRepo:     manualRepo,
		audit:          audit,
		aggregator:     aggregator,
		queueClient:    queueClient,
		gateways:       gateways,
		currency:       currency,
	}
}

// ManualPayoutInput 手动打款输入
type ManualPayoutInput struct {
	AgentID       uint
	Amount        decimal.Decimal
	PaymentMethod string
	Notes         string
	Actor         Actor
}

// BulkMarkPaidInput 批量结算输入
type BulkMarkPaidInput struct {
	CommissionIDs   []uint
	PayoutMethod    string
	PayoutReference string
	Notes           string
	Actor           Actor
}

// BulkPayoutResult 批量结算结果
type BulkPayoutResult struct {
	Count           int                       `json:"count"`
	TotalAmount     models.Money              `json:"total_amount"`
	PayoutMethod    string                    `json:"payout_method"`
	PayoutReference string                    `json:"payout_reference"`
	Commissions     []models.CommissionRecord `json:"commissions"`
}

// BankTransferInput 银行转账输入
type BankTransferInput struct {
	AgentID           uint
	Amount            decimal.Decimal
	TransferReference string
	Notes             string
	Actor             Actor
}

// BankTransferResult 银行转账结果
type BankTransferResult struct {
	AgentID           uint         `json:"agent_id"`
	RequestedAmount   models.Money `json:"requested_amount"`
	SettledAmount     models.Money `json:"settled_amount"`
	UnallocatedAmount models.Money `json:"unallocated_amount"`
	CommissionIDs     []uint       `json:"commission_ids"`
	TransferReference string       `json:"transfer_reference"`
}

// DispatchConfirmation 外部打款结果确认
type DispatchConfirmation struct {
	Payload     queue.PayoutDispatchPayload
	ProviderRef string
	Err         error
}

// ManualPayout 记录不绑定具体佣金的手动打款，不校验银行信息但会告警
func (s *PayoutExecutorService) ManualPayout(input ManualPayoutInput) (*models.ManualPayout, error) {
	amount, err := normalizeMoneyAmount(input.Amount)
	if err != nil {
		return nil, err
	}
	method, err := normalizePayoutMethod(input.PaymentMethod)
	if err != nil {
		return nil, err
	}
	notes := strings.TrimSpace(input.Notes)

	var created models.ManualPayout
	err = s.commissionRepo.Transaction(func(tx *gorm.DB) error {
		agent, err := s.userRepo.WithTx(tx).GetByID(input.AgentID)
		if err != nil {
			return err
		}
		if agent == nil {
			return ErrAgentNotFound
		}
		gatewayStatus := constants.GatewayStatusNotNeeded
		if isExternalPayoutMethod(method) {
			gatewayStatus = constants.GatewayStatusQueued
		}
		created = models.ManualPayout{
			AgentID:       agent.ID,
			Amount:        models.NewMoneyFromDecimal(amount),
			PaymentMethod: method,
			Notes:         notes,
			BankVerified:  agent.BankDetails.IsVerified,
			CreatedBy:     input.Actor.AdminID,
			GatewayStatus: gatewayStatus,
		}
		if err := s.manualRepo.WithTx(tx).Create(&created); err != nil {
			return err
		}
		return s.audit.RecordTx(tx, AuditRecordInput{
			EntityType: constants.AuditEntityManualPayout,
			EntityID:   created.ID,
			Action:     constants.AuditActionManualPayout,
			ToStatus:   gatewayStatus,
			Actor:      input.Actor,
			Detail: models.JSON{
				"agent_id":       agent.ID,
				"amount":         created.Amount.String(),
				"payment_method": method,
				"bank_verified":  created.BankVerified,
				"notes":          notes,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if !created.BankVerified {
		logger.Warnw("manual_payout_bank_unverified",
			"manual_payout_id", created.ID,
			"agent_id", created.AgentID,
			"amount", created.Amount.String(),
			"operator_admin_id", input.Actor.AdminID,
		)
	}
	metrics.ObservePayout(method, amount)
	logger.Infow("manual_payout_recorded",
		"manual_payout_id", created.ID,
		"agent_id", created.AgentID,
		"payment_method", method,
	)
	if isExternalPayoutMethod(method) {
		s.dispatch(queue.PayoutDispatchPayload{
			Method:         method,
			AgentID:        created.AgentID,
			Amount:         created.Amount.String(),
			ManualPayoutID: created.ID,
			Reference:      fmt.Sprintf("manual-%d", created.ID),
			AdminID:        input.Actor.AdminID,
		})
	}
	return &created, nil
}

// BulkMarkPaid 批量结算，任一记录非待结算则整体失败
func (s *PayoutExecutorService) BulkMarkPaid(input BulkMarkPaidInput) (*BulkPayoutResult, error) {
	ids := normalizeCommissionIDs(input.CommissionIDs)
	if len(ids) == 0 {
		return nil, ErrCommissionIDsRequired
	}
	method, err := normalizePayoutMethod(input.PayoutMethod)
	if err != nil {
		return nil, err
	}
	reference := strings.TrimSpace(input.PayoutReference)
	if reference == "" {
		reference = "bulk-" + uuid.NewString()
	}
	change := commissionChange{
		To:              constants.CommissionStatusPaid,
		PayoutMethod:    method,
		PayoutReference: reference,
		Notes:           strings.TrimSpace(input.Notes),
		Action:          constants.AuditActionBulkPayout,
		Actor:           input.Actor,
		Detail:          models.JSON{"batch_size": len(ids)},
	}

	var records []models.CommissionRecord
	err = s.commissionRepo.Transaction(func(tx *gorm.DB) error {
		rows, err := s.commissionRepo.WithTx(tx).ListByIDsForUpdate(ids)
		if err != nil {
			return err
		}
		if len(rows) != len(ids) {
			return ErrBulkConflict
		}
		for _, row := range rows {
			if row.Status != constants.CommissionStatusPending {
				return ErrBulkConflict
			}
		}
		for i := range rows {
			if err := s.commissions.applyTransitionTx(tx, &rows[i], change); err != nil {
				if errors.Is(err, ErrInvalidTransition) {
					return ErrBulkConflict
				}
				return err
			}
		}
		records = rows
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrBulkConflict) {
			metrics.ObserveRejection("bulk_mark_paid", "bulk_conflict")
		}
		return nil, err
	}

	total := sumCommissionAmounts(records)
	agentTotals, agentIDs := groupAmountsByAgent(records)
	s.commissions.afterTransition(constants.CommissionStatusPending, constants.CommissionStatusPaid, "bulk_mark_paid", len(records), agentIDs...)
	metrics.ObservePayout(method, total)
	logger.Infow("commission_bulk_marked_paid",
		"count", len(records),
		"total_amount", total.StringFixed(2),
		"payout_method", method,
		"payout_reference", reference,
		"operator_admin_id", input.Actor.AdminID,
	)
	if isExternalPayoutMethod(method) {
		for _, agentID := range agentIDs {
			s.dispatch(queue.PayoutDispatchPayload{
				Method:        method,
				AgentID:       agentID,
				Amount:        agentTotals[agentID].StringFixed(2),
				CommissionIDs: commissionIDsOfAgent(records, agentID),
				Reference:     fmt.Sprintf("%s-%d", reference, agentID),
				AdminID:       input.Actor.AdminID,
			})
		}
	}
	return &BulkPayoutResult{
		Count:           len(records),
		TotalAmount:     models.NewMoneyFromDecimal(total),
		PayoutMethod:    method,
		PayoutReference: reference,
		Commissions:     records,
	}, nil
}

// BankTransfer 按 FIFO 结算代理最早的待结算佣金（整条结算，不拆分）
func (s *PayoutExecutorService) BankTransfer(input BankTransferInput) (*BankTransferResult, error) {
	amount, err := normalizeMoneyAmount(input.Amount)
	if err != nil {
		return nil, err
	}
	reference := strings.TrimSpace(input.TransferReference)
	if reference == "" {
		return nil, ErrPayoutReferenceRequired
	}

	var (
		settledRows []models.CommissionRecord
		settled     decimal.Decimal
	)
	err = s.commissionRepo.Transaction(func(tx *gorm.DB) error {
		agent, err := s.userRepo.WithTx(tx).GetByIDForUpdate(input.AgentID)
		if err != nil {
			return err
		}
		if agent == nil {
			return ErrAgentNotFound
		}
		if !agent.BankDetails.IsVerified {
			return ErrBankDetailsNotVerified
		}
		settledRows, settled, err = s.commissions.settleFIFOTx(tx, agent.ID, amount, commissionChange{
			PayoutMethod:    constants.PayoutMethodBankTransfer,
			PayoutReference: reference,
			Notes:           strings.TrimSpace(input.Notes),
			Action:          constants.AuditActionBankTransfer,
			Actor:           input.Actor,
			Detail: models.JSON{
				"requested_amount": amount.StringFixed(2),
			},
		})
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientPendingCommission) || errors.Is(err, ErrBankDetailsNotVerified) {
			metrics.ObserveRejection("bank_transfer", rejectionLabel(err))
		}
		return nil, err
	}

	unallocated := amount.Sub(settled)
	ids := make([]uint, 0, len(settledRows))
	for _, row := range settledRows {
		ids = append(ids, row.ID)
	}
	s.commissions.afterTransition(constants.CommissionStatusPending, constants.CommissionStatusPaid, "bank_transfer", len(settledRows), input.AgentID)
	metrics.ObservePayout(constants.PayoutMethodBankTransfer, settled)
	logger.Infow("commission_bank_transfer_settled",
		"agent_id", input.AgentID,
		"requested_amount", amount.StringFixed(2),
		"settled_amount", settled.StringFixed(2),
		"unallocated_amount", unallocated.StringFixed(2),
		"commission_ids", ids,
		"transfer_reference", reference,
	)
	return &BankTransferResult{
		AgentID:           input.AgentID,
		RequestedAmount:   models.NewMoneyFromDecimal(amount),
		SettledAmount:     models.NewMoneyFromDecimal(settled),
		UnallocatedAmount: models.NewMoneyFromDecimal(unallocated),
		CommissionIDs:     ids,
		TransferReference: reference,
	}, nil
}

// RunDispatch 调用外部网关并记录结果（由 worker 在事务提交后执行）
func (s *PayoutExecutorService) RunDispatch(ctx context.Context, payload queue.PayoutDispatchPayload) error {
	gateway, err := s.gateways.Get(payload.Method)
	if err != nil {
		return s.ConfirmDispatch(DispatchConfirmation{Payload: payload, Err: err})
	}
	agent, err := s.userRepo.GetByID(payload.AgentID)
	if err != nil {
		return err
	}
	if agent == nil {
		return s.ConfirmDispatch(DispatchConfirmation{Payload: payload, Err: ErrAgentNotFound})
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(payload.Amount))
	if err != nil {
		return s.ConfirmDispatch(DispatchConfirmation{Payload: payload, Err: payout.ErrAmountInvalid})
	}

	result, transferErr := gateway.Transfer(ctx, payout.TransferRequest{
		Reference: payload.Reference,
		AgentID:   agent.ID,
		Amount:    amount,
		Currency:  s.currency,
		Destination: payout.Destination{
			StripeAccountID: agent.BankDetails.StripeAccountID,
			PaypalEmail:     agent.BankDetails.PaypalEmail,
		},
		Note: "Referral commission payout " + payload.Reference,
	})
	confirmation := DispatchConfirmation{Payload: payload, Err: transferErr}
	if result != nil {
		confirmation.ProviderRef = result.ProviderRef
	}
	if err := s.ConfirmDispatch(confirmation); err != nil {
		return err
	}
	return transferErr
}

// ConfirmDispatch 记录外部打款结果，不改变佣金台账状态
func (s *PayoutExecutorService) ConfirmDispatch(input DispatchConfirmation) error {
	payload := input.Payload
	status := constants.GatewayStatusSucceeded
	errMsg := ""
	if input.Err != nil {
		status = constants.GatewayStatusFailed
		errMsg = truncateString(input.Err.Error(), 500)
	}
	metrics.ObserveGatewayDispatch(payload.Method, input.Err == nil)

	err := s.commissionRepo.Transaction(func(tx *gorm.DB) error {
		detail := models.JSON{
			"method":       payload.Method,
			"reference":    payload.Reference,
			"provider_ref": input.ProviderRef,
			"amount":       payload.Amount,
		}
		if errMsg != "" {
			detail["error"] = errMsg
		}
		if payload.ManualPayoutID != 0 {
			if err := s.manualRepo.WithTx(tx).UpdateFields(payload.ManualPayoutID, map[string]interface{}{
				"gateway_status":    status,
				"gateway_reference": input.ProviderRef,
				"gateway_error":     errMsg,
				"updated_at":        time.Now(),
			}); err != nil {
				return err
			}
			return s.audit.RecordTx(tx, AuditRecordInput{
				EntityType: constants.AuditEntityManualPayout,
				EntityID:   payload.ManualPayoutID,
				Action:     constants.AuditActionGatewayConfirmed,
				FromStatus: constants.GatewayStatusQueued,
				ToStatus:   status,
				Actor:      Actor{AdminID: payload.AdminID},
				Detail:     detail,
			})
		}
		inputs := make([]AuditRecordInput, 0, len(payload.CommissionIDs))
		for _, id := range payload.CommissionIDs {
			inputs = append(inputs, AuditRecordInput{
				EntityType: constants.AuditEntityCommission,
				EntityID:   id,
				Action:     constants.AuditActionGatewayConfirmed,
				FromStatus: constants.GatewayStatusQueued,
				ToStatus:   status,
				Actor:      Actor{AdminID: payload.AdminID},
				Detail:     detail,
			})
		}
		return s.audit.RecordBatchTx(tx, inputs)
	})
	if err != nil {
		return err
	}
	if input.Err != nil {
		logger.Errorw("payout_gateway_dispatch_failed",
			"method", payload.Method,
			"agent_id", payload.AgentID,
			"reference", payload.Reference,
			"error", input.Err,
		)
	} else {
		logger.Infow("payout_gateway_dispatch_succeeded",
			"method", payload.Method,
			"agent_id", payload.AgentID,
			"reference", payload.Reference,
			"provider_ref", input.ProviderRef,
		)
	}
	return nil
}

// ListManualPayouts 查询代理手动打款记录
func (s *PayoutExecutorService) ListManualPayouts(agentID uint, limit int) ([]models.ManualPayout, error) {
	return s.manualRepo.ListByAgent(agentID, limit)
}

// dispatch 队列可用时入队，否则在当前请求内（事务已提交）直接执行
func (s *PayoutExecutorService) dispatch(payload queue.PayoutDispatchPayload) {
	if s.queueClient.Enabled() {
		if err := s.queueClient.EnqueuePayoutDispatch(payload); err != nil {
			logger.Errorw("payout_dispatch_enqueue_failed",
				"method", payload.Method,
				"reference", payload.Reference,
				"error", err,
			)
			_ = s.ConfirmDispatch(DispatchConfirmation{Payload: payload, Err: err})
		}
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), gatewayDispatchTimeout)
	defer cancel()
	if err := s.RunDispatch(ctx, payload); err != nil {
		logger.Warnw("payout_dispatch_inline_failed", "reference", payload.Reference, "error", err)
	}
}

func groupAmountsByAgent(records []models.CommissionRecord) (map[uint]decimal.Decimal, []uint) {
	totals := make(map[uint]decimal.Decimal)
	order := make([]uint, 0)
	for _, record := range records {
		if _, ok := totals[record.AgentID]; !ok {
			order = append(order, record.AgentID)
			totals[record.AgentID] = decimal.Zero
		}
		totals[record.AgentID] = totals[record.AgentID].Add(record.Amount.Decimal)
	}
	return totals, order
}

func commissionIDsOfAgent(records []models.CommissionRecord, agentID uint) []uint {
	ids := make([]uint, 0)
	for _, record := range records {
		if record.AgentID == agentID {
			ids = append(ids, record.ID)
		}
	}
	return ids
}

func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientPendingCommission):
		return "insufficient_pending"
	case errors.Is(err, ErrBankDetailsNotVerified):
		return "bank_unverified"
	case errors.Is(err, ErrNoPendingCommission):
		return "no_pending"
	case errors.Is(err, ErrPartialSettlementConflict):
		return "partial_settlement_conflict"
	}
	return "other"
}

// truncateString 按字节上限截断，落在多字节字符中间时回退到字符边界
func truncateString(value string, max int) string {
	if len(value) <= max {
		return value
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}

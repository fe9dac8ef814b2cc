package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/course-referral/internal/constants"
	"github.com/course-referral/internal/logger"
	"github.com/course-referral/internal/models"
	"github.com/course-referral/internal/queue"
	"github.com/course-referral/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	reconcileGracePeriod = 5 * time.Minute
	reconcileBatchSize   = 100
)

// 支付事件错误
var (
	ErrWebhookSignatureInvalid = errors.New("webhook signature invalid")
)

// PaymentCompletedEvent 课程支付完成事件
type PaymentCompletedEvent struct {
	PaymentID      string
	UserID         uint
	AgentID        *uint
	ReferralUserID *uint
	Amount         decimal.Decimal
	CommissionRate *decimal.Decimal
	RequestID      string
}

// PaymentEventResult 事件处理结果
type PaymentEventResult struct {
	PaymentID         string `json:"payment_id"`
	CommissionQueued  bool   `json:"commission_queued"`
	CommissionCreated bool   `json:"commission_created"`
	CommissionID      uint   `json:"commission_id,omitempty"`
	Duplicate         bool   `json:"duplicate"`
}

// PaymentEventService 支付完成事件接入
type PaymentEventService struct {
	paymentRepo   repository.PaymentRepository
	commissions   *CommissionService
	queueClient   *queue.Client
	webhookSecret string
	currency      string
}

// NewPaymentEventService 创建支付事件服务
func NewPaymentEventService(
	paymentRepo repository.PaymentRepository,
	commissions *CommissionService,
	queueClient *queue.Client,
	webhookSecret string,
	currency string,
) *PaymentEventService {
	if strings.TrimSpace(currency) == "" {
		currency = constants.CurrencyDefault
	}
	return &PaymentEventService{
		paymentRepo:   paymentRepo,
		commissions:   commissions,
		queueClient:   queueClient,
		webhookSecret: strings.TrimSpace(webhookSecret),
		currency:      strings.ToUpper(strings.TrimSpace(currency)),
	}
}

// VerifySignature 校验 HMAC-SHA256 签名（hex）；未配置密钥时跳过
func (s *PaymentEventService) VerifySignature(body []byte, signature string) error {
	if s.webhookSecret == "" {
		logger.Warnw("payment_webhook_signature_skipped", "reason", "secret_not_configured")
		return nil
	}
	expected := SignPaymentWebhook(s.webhookSecret, body)
	provided := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(signature, "sha256=")))
	if provided == "" || !hmac.Equal([]byte(expected), []byte(provided)) {
		return ErrWebhookSignatureInvalid
	}
	return nil
}

// SignPaymentWebhook 计算签名
func SignPaymentWebhook(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HandlePaymentCompleted 记录课程支付，存在推荐代理时创建佣金（队列可用时异步）
func (s *PaymentEventService) HandlePaymentCompleted(event PaymentCompletedEvent) (*PaymentEventResult, error) {
	paymentID := strings.TrimSpace(event.PaymentID)
	if paymentID == "" {
		return nil, ErrPaymentIDRequired
	}
	amount, err := normalizeMoneyAmount(event.Amount)
	if err != nil {
		return nil, err
	}
	// 比例非法时整笔拒收，不落库支付
	if event.CommissionRate != nil {
		rate, err := normalizeCommissionRate(*event.CommissionRate)
		if err != nil {
			return nil, err
		}
		event.CommissionRate = &rate
	}
	result := &PaymentEventResult{PaymentID: paymentID}

	existing, err := s.paymentRepo.GetByRef(paymentID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		payment := &models.CoursePayment{
			PaymentRef: paymentID,
			UserID:     event.UserID,
			AgentID:    event.AgentID,
			Amount:     models.NewMoneyFromDecimal(amount),
			Currency:   s.currency,
			Status:     constants.CoursePaymentStatusCompleted,
		}
		if event.CommissionRate != nil {
			payment.CommissionRate = models.NewRate(*event.CommissionRate)
		}
		if err := s.paymentRepo.Create(payment); err != nil && !isUniqueConstraintError(err) {
			return nil, err
		}
	} else {
		result.Duplicate = true
	}

	if event.AgentID == nil || *event.AgentID == 0 {
		return result, nil
	}
	referralUserID := event.UserID
	if event.ReferralUserID != nil {
		referralUserID = *event.ReferralUserID
	}

	if s.queueClient.Enabled() {
		payload := queue.CommissionCreatePayload{
			PaymentID:      paymentID,
			AgentID:        *event.AgentID,
			ReferralUserID: referralUserID,
			Amount:         amount.StringFixed(2),
			RequestID:      event.RequestID,
		}
		if event.CommissionRate != nil {
			payload.CommissionRate = event.CommissionRate.String()
		}
		if err := s.queueClient.EnqueueCommissionCreate(payload); err != nil {
			return nil, err
		}
		result.CommissionQueued = true
		return result, nil
	}

	record, err := s.commissions.CreateCommission(CreateCommissionInput{
		PaymentID:      paymentID,
		AgentID:        *event.AgentID,
		ReferralUserID: referralUserID,
		PaymentAmount:  amount,
		Rate:           event.CommissionRate,
		Actor:          Actor{RequestID: event.RequestID},
	})
	if errors.Is(err, ErrDuplicatePayment) {
		result.Duplicate = true
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.CommissionCreated = true
	result.CommissionID = record.ID
	return result, nil
}

// ProcessCommissionTask worker 执行佣金创建任务，重复支付视为成功
func (s *PaymentEventService) ProcessCommissionTask(payload queue.CommissionCreatePayload) error {
	amount, err := decimal.NewFromString(strings.TrimSpace(payload.Amount))
	if err != nil {
		return err
	}
	input := CreateCommissionInput{
		PaymentID:      payload.PaymentID,
		AgentID:        payload.AgentID,
		ReferralUserID: payload.ReferralUserID,
		PaymentAmount:  amount,
		Actor:          Actor{RequestID: payload.RequestID},
	}
	if raw := strings.TrimSpace(payload.CommissionRate); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil {
			return err
		}
		input.Rate = &rate
	}
	_, err = s.commissions.CreateCommission(input)
	if errors.Is(err, ErrDuplicatePayment) {
		logger.Infow("commission_task_duplicate_payment", "payment_id", payload.PaymentID)
		return nil
	}
	return err
}

// isUnreconcilable 重试也无法成功的补建错误
func isUnreconcilable(err error) bool {
	return errors.Is(err, ErrNotAgent) ||
		errors.Is(err, ErrAgentNotFound) ||
		errors.Is(err, ErrZeroAmount) ||
		errors.Is(err, ErrInvalidCommissionRate)
}

// ReconcileMissingCommissions 为超过宽限期仍无佣金的推荐支付补建佣金，返回补建数量
func (s *PaymentEventService) ReconcileMissingCommissions(now time.Time) (int, error) {
	payments, err := s.paymentRepo.ListMissingCommission(now.Add(-reconcileGracePeriod), reconcileBatchSize)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, payment := range payments {
		if payment.AgentID == nil {
			continue
		}
		input := CreateCommissionInput{
			PaymentID:      payment.PaymentRef,
			AgentID:        *payment.AgentID,
			ReferralUserID: payment.UserID,
			PaymentAmount:  payment.Amount.Decimal,
			Actor:          Actor{RequestID: "reconcile"},
		}
		// 事件未携带比例时落库为 0，沿用代理当前比例
		if !payment.CommissionRate.Decimal.IsZero() {
			rate := payment.CommissionRate.Decimal
			input.Rate = &rate
		}
		_, err := s.commissions.CreateCommission(input)
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrDuplicatePayment):
		case isUnreconcilable(err):
			logger.Warnw("commission_reconcile_skipped", "payment_id", payment.PaymentRef, "error", err)
			if markErr := s.paymentRepo.MarkCommissionSkipped(payment.ID, err.Error(), now); markErr != nil {
				return created, markErr
			}
		default:
			return created, err
		}
	}
	if created > 0 {
		logger.Infow("commission_reconcile_created", "count", created)
	}
	return created, nil
}

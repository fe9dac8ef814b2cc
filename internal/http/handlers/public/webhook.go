package public

import (
	"bytes"
	"encoding/json"
	"io"

	handlershared "github.com/course-referral/internal/http/handlers/shared"
	"github.com/course-referral/internal/http/response"
	"github.com/course-referral/internal/logger"
	"github.com/course-referral/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	webhookSignatureHeader = "X-Signature"
	maxWebhookBodyBytes    = 1 << 20
)

// PaymentCompletedWebhookRequest 支付完成回调
type PaymentCompletedWebhookRequest struct {
	PaymentID      string           `json:"paymentId"`
	UserID         uint             `json:"userId"`
	AgentID        *uint            `json:"agentId"`
	ReferralUserID *uint            `json:"referralUserId"`
	Amount         decimal.Decimal  `json:"amount"`
	CommissionRate *decimal.Decimal `json:"commissionRate"`
}

// PaymentCompletedWebhook 支付完成回调：验签后入库并触发佣金创建
func (h *Handler) PaymentCompletedWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.PaymentEventService.VerifySignature(body, c.GetHeader(webhookSignatureHeader)); err != nil {
		logger.Warnw("payment_webhook_rejected",
			"client_ip", c.ClientIP(),
			"request_id", handlershared.RequestID(c),
		)
		respondMappedError(c, err)
		return
	}

	var req PaymentCompletedWebhookRequest
	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	result, err := h.PaymentEventService.HandlePaymentCompleted(service.PaymentCompletedEvent{
		PaymentID:      req.PaymentID,
		UserID:         req.UserID,
		AgentID:        req.AgentID,
		ReferralUserID: req.ReferralUserID,
		Amount:         req.Amount,
		CommissionRate: req.CommissionRate,
		RequestID:      handlershared.RequestID(c),
	})
	if err != nil {
		respondMappedError(c, err)
		return
	}
	response.Success(c, result)
}

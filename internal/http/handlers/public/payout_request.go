package public

import (
	handlershared "github.com/course-referral/internal/http/handlers/shared"
	"github.com/course-referral/internal/http/response"
	"github.com/course-referral/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// RequestPayoutRequest 代理提现申请
type RequestPayoutRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	CommissionIDs []uint          `json:"commissionIds"`
}

// RequestPayout 代理提交提现申请；需银行信息已验证
func (h *Handler) RequestPayout(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req RequestPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	created, err := h.PayoutRequestService.CreateRequest(service.CreatePayoutRequestInput{
		AgentID:       userID,
		Amount:        req.Amount,
		CommissionIDs: req.CommissionIDs,
		Actor:         service.Actor{RequestID: handlershared.RequestID(c)},
	})
	if err != nil {
		respondMappedError(c, err)
		return
	}
	response.Success(c, created)
}

// GetMyPayoutRequests 代理提现申请记录
func (h *Handler) GetMyPayoutRequests(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	rows, total, err := h.PayoutRequestService.ListAgentRequests(userID, page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

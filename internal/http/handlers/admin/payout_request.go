package admin

import (
	"strings"

	"github.com/course-referral/internal/constants"
	handlershared "github.com/course-referral/internal/http/handlers/shared"
	"github.com/course-referral/internal/http/response"
	"github.com/course-referral/internal/repository"
	"github.com/course-referral/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

var payoutRequestNotFoundRules = []handlershared.ErrorRule{
	{Target: service.ErrNotFound, Code: response.CodeNotFound, Key: "error.payout_request_not_found"},
}

// CreatePayoutRequestRequest 管理端代提现申请
type CreatePayoutRequestRequest struct {
	AgentID       uint            `json:"agentId" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	CommissionIDs []uint          `json:"commissionIds"`
}

// ProcessPayoutRequestRequest 审批提现申请
type ProcessPayoutRequestRequest struct {
	Status          string `json:"status" binding:"required,oneof=approved completed rejected"`
	AdminNotes      string `json:"adminNotes" binding:"max=1000"`
	PayoutReference string `json:"payoutReference" binding:"max=128"`
	RejectionReason string `json:"rejectionReason" binding:"max=1000"`
}

// GetAdminPayoutRequests 提现申请列表（含金额汇总）
func (h *Handler) GetAdminPayoutRequests(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	agentID, ok := handlershared.ParseQueryUint(c, "agentId", "agent_id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	status := strings.TrimSpace(c.Query("status"))
	switch status {
	case "", constants.PayoutRequestStatusPending, constants.PayoutRequestStatusApproved,
		constants.PayoutRequestStatusCompleted, constants.PayoutRequestStatusRejected:
	case "all":
		status = ""
	default:
		respondError(c, response.CodeBadRequest, "error.invalid_status", nil)
		return
	}
	from, ok := handlershared.ParseDateRange(c.Query("dateRange"), h.now())
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}

	rows, total, summary, err := h.PayoutRequestService.ListRequests(repository.PayoutRequestListFilter{
		Page:        page,
		PageSize:    pageSize,
		AgentID:     agentID,
		Status:      status,
		CreatedFrom: from,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, gin.H{
		"requests":   rows,
		"summary":    summary,
		"pagination": response.BuildPagination(page, pageSize, total),
	})
}

// GetAdminPayoutRequest 提现申请详情
func (h *Handler) GetAdminPayoutRequest(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	req, err := h.PayoutRequestService.GetByID(id)
	if err != nil {
		handlershared.RespondMappedError(c, err, payoutRequestNotFoundRules, handlershared.LedgerErrorRules)
		return
	}
	response.Success(c, req)
}

// CreateAdminPayoutRequest 管理端代代理提交提现申请
func (h *Handler) CreateAdminPayoutRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req CreatePayoutRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	created, err := h.PayoutRequestService.CreateRequest(service.CreatePayoutRequestInput{
		AgentID:       req.AgentID,
		Amount:        req.Amount,
		CommissionIDs: req.CommissionIDs,
		Actor:         actor,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	response.Success(c, created)
}

// ProcessPayoutRequest 审批提现申请；completed 时在同一事务内结算佣金
func (h *Handler) ProcessPayoutRequest(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req ProcessPayoutRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	updated, err := h.PayoutRequestService.ProcessRequest(id, service.ProcessPayoutRequestInput{
		Status:          req.Status,
		AdminNotes:      req.AdminNotes,
		PayoutReference: req.PayoutReference,
		RejectionReason: req.RejectionReason,
		Actor:           actor,
	})
	if err != nil {
		handlershared.RespondMappedError(c, err, payoutRequestNotFoundRules, handlershared.LedgerErrorRules)
		return
	}
	response.Success(c, updated)
}

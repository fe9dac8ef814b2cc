package public

import (
	"strings"

	handlershared "github.com/course-referral/internal/http/handlers/shared"
	"github.com/course-referral/internal/http/response"
	"github.com/course-referral/internal/repository"

	"github.com/gin-gonic/gin"
)

const dashboardRecentLimit = 10

// GetReferralStats 代理佣金汇总
func (h *Handler) GetReferralStats(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	summary, err := h.AggregatorService.AgentSummary(userID)
	if err != nil {
		respondMappedError(c, err)
		return
	}
	response.Success(c, summary)
}

// GetAgentDashboard 代理看板：汇总、最近佣金、提现申请与收款信息状态
func (h *Handler) GetAgentDashboard(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	summary, err := h.AggregatorService.AgentSummary(userID)
	if err != nil {
		respondMappedError(c, err)
		return
	}
	commissions, _, err := h.CommissionService.List(repository.CommissionListFilter{
		Page:     1,
		PageSize: dashboardRecentLimit,
		AgentID:  userID,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	requests, _, err := h.PayoutRequestService.ListAgentRequests(userID, 1, dashboardRecentLimit)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	bank, err := h.BankDetailService.GetBankDetails(userID)
	if err != nil {
		respondMappedError(c, err)
		return
	}
	response.Success(c, gin.H{
		"summary":         summary,
		"commissions":     commissions,
		"payout_requests": requests,
		"bank_details": gin.H{
			"is_complete": !bank.IsEmpty(),
			"isVerified":  bank.IsVerified,
			"notes":       bank.VerificationNotes,
		},
	})
}

// GetMyCommissions 代理佣金明细
func (h *Handler) GetMyCommissions(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	rows, total, err := h.CommissionService.List(repository.CommissionListFilter{
		Page:     page,
		PageSize: pageSize,
		AgentID:  userID,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetMyReferrals 代理推荐的用户
func (h *Handler) GetMyReferrals(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	rows, total, err := h.UserAdminService.ListReferrals(userID, page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetReferralCode 代理推荐码
func (h *Handler) GetReferralCode(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	code, err := h.UserAdminService.GetReferralCode(userID)
	if err != nil {
		respondMappedError(c, err)
		return
	}
	response.Success(c, gin.H{"referral_code": code})
}

// ValidateReferralCode 公开校验推荐码
func (h *Handler) ValidateReferralCode(c *gin.Context) {
	info, err := h.UserAdminService.ValidateReferralCode(c.Param("code"))
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, info)
}

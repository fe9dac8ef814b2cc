package admin

import (
	"strings"

	handlershared "github.com/course-referral/internal/http/handlers/shared"
	"github.com/course-referral/internal/http/response"
	"github.com/course-referral/internal/repository"
	"github.com/course-referral/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

var userNotFoundRules = []handlershared.ErrorRule{
	{Target: service.ErrNotFound, Code: response.CodeNotFound, Key: "error.user_not_found"},
}

// VerifyBankDetailsRequest 银行信息验证请求
type VerifyBankDetailsRequest struct {
	IsVerified        *bool  `json:"isVerified" binding:"required"`
	VerificationNotes string `json:"verificationNotes" binding:"max=500"`
}

// UpdateUserRoleRequest 角色与佣金比例调整请求
type UpdateUserRoleRequest struct {
	Role           string           `json:"role" binding:"required"`
	CommissionRate *decimal.Decimal `json:"commissionRate"`
}

// GetAdminUsers 用户列表
func (h *Handler) GetAdminUsers(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	role := strings.TrimSpace(c.Query("role"))
	if role == "all" {
		role = ""
	}
	rows, total, err := h.UserAdminService.ListUsers(repository.UserListFilter{
		Page:     page,
		PageSize: pageSize,
		Role:     role,
		Keyword:  strings.TrimSpace(c.Query("keyword")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// VerifyUserBankDetails 设置代理银行信息验证状态
func (h *Handler) VerifyUserBankDetails(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	userID, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.user_id_invalid", nil)
		return
	}
	var req VerifyBankDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	details, err := h.BankDetailService.Verify(userID, service.VerifyBankDetailsInput{
		IsVerified: *req.IsVerified,
		Notes:      req.VerificationNotes,
		Actor:      actor,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	response.Success(c, details)
}

// ApproveAgent 审核通过代理申请
func (h *Handler) ApproveAgent(c *gin.Context) {
	userID, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.user_id_invalid", nil)
		return
	}
	user, err := h.UserAdminService.ApproveAgent(userID)
	if err != nil {
		handlershared.RespondMappedError(c, err, userNotFoundRules, handlershared.AccountErrorRules)
		return
	}
	response.Success(c, user)
}

// UpdateUserRole 调整用户角色与佣金比例（仅影响之后创建的佣金）
func (h *Handler) UpdateUserRole(c *gin.Context) {
	userID, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.user_id_invalid", nil)
		return
	}
	var req UpdateUserRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	user, err := h.UserAdminService.UpdateRole(userID, service.UpdateRoleInput{
		Role:           req.Role,
		CommissionRate: req.CommissionRate,
	})
	if err != nil {
		handlershared.RespondMappedError(c, err, userNotFoundRules, handlershared.AccountErrorRules, handlershared.LedgerErrorRules)
		return
	}
	if adminID, ok := getAdminID(c); ok {
		requestLog(c).Infow("user_role_updated", "user_id", userID, "role", user.Role, "operator_admin_id", adminID)
	}
	response.Success(c, user)
}

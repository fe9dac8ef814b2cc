package admin

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/course-referral/internal/constants"
	handlershared "github.com/course-referral/internal/http/handlers/shared"
	"github.com/course-referral/internal/http/response"
	"github.com/course-referral/internal/repository"
	"github.com/course-referral/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// UpdateCommissionStatusRequest 修改佣金状态请求
type UpdateCommissionStatusRequest struct {
	Status          string `json:"status" binding:"required,commission_status"`
	PayoutMethod    string `json:"payoutMethod" binding:"omitempty,payout_method"`
	PayoutNotes     string `json:"payoutNotes" binding:"max=1000"`
	PayoutReference string `json:"payoutReference" binding:"max=128"`
}

// CancelCommissionRequest 取消佣金请求
type CancelCommissionRequest struct {
	Reason string `json:"reason"`
}

// BulkPayoutRequest 批量结算请求
type BulkPayoutRequest struct {
	CommissionIDs   []uint `json:"commissionIds"`
	PayoutMethod    string `json:"payoutMethod" binding:"omitempty,payout_method"`
	PayoutReference string `json:"payoutReference" binding:"max=128"`
	PayoutNotes     string `json:"payoutNotes" binding:"max=1000"`
}

// ManualPayoutRequest 手动打款请求
type ManualPayoutRequest struct {
	AgentID       uint            `json:"agentId" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod" binding:"omitempty,payout_method"`
	Notes         string          `json:"notes" binding:"max=1000"`
}

// BankTransferRequest 银行转账结算请求
type BankTransferRequest struct {
	AgentID           uint            `json:"agentId" binding:"required"`
	Amount            decimal.Decimal `json:"amount"`
	TransferReference string          `json:"transferReference" binding:"max=128"`
	Notes             string          `json:"notes" binding:"max=1000"`
}

// parseCommissionFilter 解析佣金列表筛选条件
func (h *Handler) parseCommissionFilter(c *gin.Context) (repository.CommissionListFilter, bool) {
	page, pageSize := handlershared.QueryPagination(c)
	agentID, ok := handlershared.ParseQueryUint(c, "agentId", "agent_id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return repository.CommissionListFilter{}, false
	}
	status := strings.TrimSpace(c.Query("status"))
	if status == "all" {
		status = ""
	}
	switch status {
	case "", constants.CommissionStatusPending, constants.CommissionStatusPaid, constants.CommissionStatusCancelled:
	default:
		respondError(c, response.CodeBadRequest, "error.invalid_status", nil)
		return repository.CommissionListFilter{}, false
	}
	from, ok := handlershared.ParseDateRange(c.Query("dateRange"), h.now())
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return repository.CommissionListFilter{}, false
	}
	return repository.CommissionListFilter{
		Page:        page,
		PageSize:    pageSize,
		AgentID:     agentID,
		Status:      status,
		PaymentID:   strings.TrimSpace(c.Query("paymentId")),
		CreatedFrom: from,
	}, true
}

// GetAdminCommissions 佣金列表（含汇总与按代理汇总）
func (h *Handler) GetAdminCommissions(c *gin.Context) {
	filter, ok := h.parseCommissionFilter(c)
	if !ok {
		return
	}
	rows, total, err := h.CommissionService.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	summary, err := h.AggregatorService.CommissionListSummary(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	agentSummary, err := h.AggregatorService.AgentSummaries(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, gin.H{
		"commissions":  rows,
		"summary":      summary,
		"agentSummary": agentSummary,
		"pagination":   response.BuildPagination(filter.Page, filter.PageSize, total),
	})
}

// GetAdminCommission 佣金详情
func (h *Handler) GetAdminCommission(c *gin.Context) {
	id, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	record, err := h.CommissionService.GetByID(id)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	response.Success(c, record)
}

// UpdateCommissionStatus 修改佣金状态（paid 回退 pending 视为人工纠正）
func (h *Handler) UpdateCommissionStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req UpdateCommissionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	record, err := h.CommissionService.SetStatus(id, service.SetStatusInput{
		Status:          req.Status,
		PayoutMethod:    req.PayoutMethod,
		PayoutReference: req.PayoutReference,
		Notes:           req.PayoutNotes,
		Actor:           actor,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	response.Success(c, record)
}

// CancelCommission 取消佣金
func (h *Handler) CancelCommission(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	id, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req CancelCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	record, err := h.CommissionService.MarkCancelled(id, req.Reason, actor)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	response.Success(c, record)
}

// BulkPayout 批量标记已结算（全部成功或全部失败）
func (h *Handler) BulkPayout(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req BulkPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	result, err := h.PayoutExecutor.BulkMarkPaid(service.BulkMarkPaidInput{
		CommissionIDs:   req.CommissionIDs,
		PayoutMethod:    req.PayoutMethod,
		PayoutReference: req.PayoutReference,
		Notes:           req.PayoutNotes,
		Actor:           actor,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	response.Success(c, result)
}

// ManualPayout 手动打款记录（不改变佣金状态）
func (h *Handler) ManualPayout(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req ManualPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	record, err := h.PayoutExecutor.ManualPayout(service.ManualPayoutInput{
		AgentID:       req.AgentID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		Actor:         actor,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	response.Success(c, record)
}

// BankTransfer 按 FIFO 结算代理最早的待结算佣金
func (h *Handler) BankTransfer(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req BankTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	result, err := h.PayoutExecutor.BankTransfer(service.BankTransferInput{
		AgentID:           req.AgentID,
		Amount:            req.Amount,
		TransferReference: req.TransferReference,
		Notes:             req.Notes,
		Actor:             actor,
	})
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	response.Success(c, result)
}

// GetManualPayouts 手动打款记录
func (h *Handler) GetManualPayouts(c *gin.Context) {
	agentID, ok := handlershared.ParseQueryUint(c, "agentId", "agent_id")
	if !ok || agentID == 0 {
		respondError(c, response.CodeBadRequest, "error.user_id_invalid", nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := h.PayoutExecutor.ListManualPayouts(agentID, limit)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, rows)
}

// ExportCommissions 导出佣金 XLSX
func (h *Handler) ExportCommissions(c *gin.Context) {
	filter, ok := h.parseCommissionFilter(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	count, err := h.ExportService.ExportCommissions(filter, &buf)
	if err != nil {
		respondError(c, response.CodeInternal, "error.export_failed", err)
		return
	}
	requestLog(c).Infow("commission_export_generated", "rows", count, "agent_id", filter.AgentID, "status", filter.Status)
	filename := service.CommissionExportFilename(filter.AgentID, filter.Status)
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Data(200, xlsxContentType, buf.Bytes())
}

package admin

import (
	"strconv"
	"strings"

	handlershared "github.com/course-referral/internal/http/handlers/shared"
	"github.com/course-referral/internal/http/response"
	"github.com/course-referral/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetStatsOverview 系统汇总
func (h *Handler) GetStatsOverview(c *gin.Context) {
	summary, err := h.AggregatorService.SystemSummary()
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, summary)
}

// GetTopAgents 佣金排行
func (h *Handler) GetTopAgents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	rows, err := h.AggregatorService.TopAgents(limit)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, rows)
}

// GetAuditLogs 审计日志
func (h *Handler) GetAuditLogs(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	entityID, ok := handlershared.ParseQueryUint(c, "entityId", "entity_id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	operatorID, ok := handlershared.ParseQueryUint(c, "operatorAdminId", "operator_admin_id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	from, ok := handlershared.ParseDateRange(c.Query("dateRange"), h.now())
	if !ok {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	rows, total, err := h.AuditService.ListForAdmin(repository.AuditLogListFilter{
		Page:            page,
		PageSize:        pageSize,
		EntityType:      strings.TrimSpace(c.Query("entityType")),
		EntityID:        entityID,
		Action:          strings.TrimSpace(c.Query("action")),
		OperatorAdminID: operatorID,
		CreatedFrom:     from,
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

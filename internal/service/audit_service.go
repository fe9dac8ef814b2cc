package service

import (
	"strings"
	"time"

	"github.com/course-referral/internal/models"
	"github.com/course-referral/internal/repository"

	"gorm.io/gorm"
)

// Actor 操作者信息（写入审计日志）
type Actor struct {
	AdminID   uint
	RequestID string
}

// AuditRecordInput 审计记录输入
type AuditRecordInput struct {
	EntityType       string
	EntityID         uint
	Action           string
	FromStatus       string
	ToStatus         string
	IsManualOverride bool
	Actor            Actor
	Detail           models.JSON
}

// AuditService 佣金审计服务
type AuditService struct {
	repo repository.AuditLogRepository
}

// NewAuditService 创建审计服务
func NewAuditService(repo repository.AuditLogRepository) *AuditService {
	return &AuditService{repo: repo}
}

// RecordTx 在事务内写入审计日志（与状态变更同生共死）
func (s *AuditService) RecordTx(tx *gorm.DB, input AuditRecordInput) error {
	if s == nil || s.repo == nil {
		return nil
	}
	if strings.TrimSpace(input.Action) == "" {
		return nil
	}
	return s.repo.WithTx(tx).Create(buildAuditLog(input, time.Now()))
}

// RecordBatchTx 在事务内批量写入审计日志
func (s *AuditService) RecordBatchTx(tx *gorm.DB, inputs []AuditRecordInput) error {
	if s == nil || s.repo == nil || len(inputs) == 0 {
		return nil
	}
	now := time.Now()
	logs := make([]models.CommissionAuditLog, 0, len(inputs))
	for _, input := range inputs {
		logs = append(logs, *buildAuditLog(input, now))
	}
	return s.repo.WithTx(tx).CreateBatch(logs)
}

// ListForAdmin 管理端查询审计日志
func (s *AuditService) ListForAdmin(filter repository.AuditLogListFilter) ([]models.CommissionAuditLog, int64, error) {
	if s == nil || s.repo == nil {
		return []models.CommissionAuditLog{}, 0, nil
	}
	return s.repo.List(filter)
}

func buildAuditLog(input AuditRecordInput, now time.Time) *models.CommissionAuditLog {
	return &models.CommissionAuditLog{
		EntityType:       strings.TrimSpace(input.EntityType),
		EntityID:         input.EntityID,
		Action:           strings.TrimSpace(input.Action),
		FromStatus:       input.FromStatus,
		ToStatus:         input.ToStatus,
		IsManualOverride: input.IsManualOverride,
		OperatorAdminID:  input.Actor.AdminID,
		RequestID:        strings.TrimSpace(input.Actor.RequestID),
		DetailJSON:       input.Detail,
		CreatedAt:        now,
	}
}

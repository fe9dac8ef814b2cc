package repository

import (
	"strings"

	"github.com/course-referral/internal/models"

	"gorm.io/gorm"
)

// AuditLogRepository 佣金审计日志数据访问接口
type AuditLogRepository interface {
	WithTx(tx *gorm.DB) AuditLogRepository
	Create(log *models.CommissionAuditLog) error
	CreateBatch(logs []models.CommissionAuditLog) error
	List(filter AuditLogListFilter) ([]models.CommissionAuditLog, int64, error)
}

// GormAuditLogRepository GORM 实现
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository 创建审计日志仓储
func NewAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAuditLogRepository) WithTx(tx *gorm.DB) AuditLogRepository {
	if tx == nil {
		return r
	}
	return &GormAuditLogRepository{db: tx}
}

// Create 写入审计日志
func (r *GormAuditLogRepository) Create(log *models.CommissionAuditLog) error {
	if log == nil {
		return nil
	}
	return r.db.Create(log).Error
}

// CreateBatch 批量写入审计日志
func (r *GormAuditLogRepository) CreateBatch(logs []models.CommissionAuditLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.Create(&logs).Error
}

// List 查询审计日志
func (r *GormAuditLogRepository) List(filter AuditLogListFilter) ([]models.CommissionAuditLog, int64, error) {
	query := r.db.Model(&models.CommissionAuditLog{})
	if entityType := strings.TrimSpace(filter.EntityType); entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	if filter.EntityID != 0 {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if action := strings.TrimSpace(filter.Action); action != "" {
		query = query.Where("action = ?", action)
	}
	if filter.OperatorAdminID != 0 {
		query = query.Where("operator_admin_id = ?", filter.OperatorAdminID)
	}
	query = applyCreatedRange(query, "created_at", filter.CreatedFrom, filter.CreatedTo)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	logs := make([]models.CommissionAuditLog, 0)
	if err := query.Order("id DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

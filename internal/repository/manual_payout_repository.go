package repository

import (
	"errors"

	"github.com/course-referral/internal/models"

	"gorm.io/gorm"
)

// ManualPayoutRepository 手动打款数据访问接口
type ManualPayoutRepository interface {
	WithTx(tx *gorm.DB) ManualPayoutRepository
	Create(payout *models.ManualPayout) error
	GetByID(id uint) (*models.ManualPayout, error)
	UpdateFields(id uint, updates map[string]interface{}) error
	ListByAgent(agentID uint, limit int) ([]models.ManualPayout, error)
}

// GormManualPayoutRepository GORM 实现
type GormManualPayoutRepository struct {
	db *gorm.DB
}

// NewManualPayoutRepository 创建手动打款仓储
func NewManualPayoutRepository(db *gorm.DB) *GormManualPayoutRepository {
	return &GormManualPayoutRepository{db: db}
}

// WithTx 绑定事务
func (r *GormManualPayoutRepository) WithTx(tx *gorm.DB) ManualPayoutRepository {
	if tx == nil {
		return r
	}
	return &GormManualPayoutRepository{db: tx}
}

// Create 写入手动打款
func (r *GormManualPayoutRepository) Create(payout *models.ManualPayout) error {
	return r.db.Create(payout).Error
}

// GetByID 按ID查询
func (r *GormManualPayoutRepository) GetByID(id uint) (*models.ManualPayout, error) {
	if id == 0 {
		return nil, nil
	}
	var row models.ManualPayout
	if err := r.db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// UpdateFields 按字段更新
func (r *GormManualPayoutRepository) UpdateFields(id uint, updates map[string]interface{}) error {
	if id == 0 || len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.ManualPayout{}).Where("id = ?", id).Updates(updates).Error
}

// ListByAgent 查询代理最近的手动打款
func (r *GormManualPayoutRepository) ListByAgent(agentID uint, limit int) ([]models.ManualPayout, error) {
	if agentID == 0 {
		return []models.ManualPayout{}, nil
	}
	query := r.db.Where("agent_id = ?", agentID).Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.ManualPayout
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

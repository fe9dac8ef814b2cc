package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/course-referral/internal/constants"
	"github.com/course-referral/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PayoutRequestRepository 提现申请数据访问接口
type PayoutRequestRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) PayoutRequestRepository

	Create(req *models.PayoutRequest, commissionIDs []uint) error
	AttachCommissions(requestID uint, commissionIDs []uint) error
	GetByID(id uint) (*models.PayoutRequest, error)
	GetByIDForUpdate(id uint) (*models.PayoutRequest, error)
	UpdateGuarded(id uint, fromStatus string, version uint, updates map[string]interface{}) (bool, error)
	List(filter PayoutRequestListFilter) ([]models.PayoutRequest, int64, error)
	Aggregate(filter PayoutRequestListFilter) (PayoutRequestAggregate, error)
	ListOpenCommissionIDs(commissionIDs []uint) ([]uint, error)
}

// GormPayoutRequestRepository GORM 提现申请仓储
type GormPayoutRequestRepository struct {
	db *gorm.DB
}

// NewPayoutRequestRepository 创建提现申请仓储
func NewPayoutRequestRepository(db *gorm.DB) *GormPayoutRequestRepository {
	return &GormPayoutRequestRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPayoutRequestRepository) WithTx(tx *gorm.DB) PayoutRequestRepository {
	if tx == nil {
		return r
	}
	return &GormPayoutRequestRepository{db: tx}
}

// Transaction 执行事务
func (r *GormPayoutRequestRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建提现申请及佣金关联
func (r *GormPayoutRequestRepository) Create(req *models.PayoutRequest, commissionIDs []uint) error {
	if req == nil {
		return nil
	}
	if err := r.db.Omit("Items", "Agent").Create(req).Error; err != nil {
		return err
	}
	if err := r.AttachCommissions(req.ID, commissionIDs); err != nil {
		return err
	}
	req.CommissionIDs = append([]uint{}, commissionIDs...)
	return nil
}

// AttachCommissions 追加佣金关联
func (r *GormPayoutRequestRepository) AttachCommissions(requestID uint, commissionIDs []uint) error {
	if requestID == 0 || len(commissionIDs) == 0 {
		return nil
	}
	now := time.Now()
	items := make([]models.PayoutRequestCommission, 0, len(commissionIDs))
	for _, id := range commissionIDs {
		items = append(items, models.PayoutRequestCommission{
			PayoutRequestID: requestID,
			CommissionID:    id,
			CreatedAt:       now,
		})
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&items).Error
}

// GetByID 按ID查询提现申请
func (r *GormPayoutRequestRepository) GetByID(id uint) (*models.PayoutRequest, error) {
	if id == 0 {
		return nil, nil
	}
	var row models.PayoutRequest
	if err := r.db.Preload("Agent").Preload("Items").First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	row.FillCommissionIDs()
	return &row, nil
}

// GetByIDForUpdate 按ID锁定查询提现申请
func (r *GormPayoutRequestRepository) GetByIDForUpdate(id uint) (*models.PayoutRequest, error) {
	if id == 0 {
		return nil, nil
	}
	var row models.PayoutRequest
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var items []models.PayoutRequestCommission
	if err := r.db.Where("payout_request_id = ?", id).Order("commission_id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	row.Items = items
	row.FillCommissionIDs()
	return &row, nil
}

// UpdateGuarded 条件更新提现申请
func (r *GormPayoutRequestRepository) UpdateGuarded(id uint, fromStatus string, version uint, updates map[string]interface{}) (bool, error) {
	if id == 0 {
		return false, nil
	}
	values := make(map[string]interface{}, len(updates)+2)
	for k, v := range updates {
		values[k] = v
	}
	values["version"] = gorm.Expr("version + 1")
	values["updated_at"] = time.Now()
	result := r.db.Model(&models.PayoutRequest{}).
		Where("id = ? AND status = ? AND version = ?", id, fromStatus, version).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *GormPayoutRequestRepository) filtered(filter PayoutRequestListFilter) *gorm.DB {
	query := r.db.Model(&models.PayoutRequest{})
	if filter.AgentID != 0 {
		query = query.Where("payout_requests.agent_id = ?", filter.AgentID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("payout_requests.status = ?", status)
	}
	return applyCreatedRange(query, "payout_requests.request_date", filter.CreatedFrom, filter.CreatedTo)
}

// List 查询提现申请列表
func (r *GormPayoutRequestRepository) List(filter PayoutRequestListFilter) ([]models.PayoutRequest, int64, error) {
	query := r.filtered(filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.PayoutRequest
	if err := query.Preload("Agent").Preload("Items").
		Order("payout_requests.request_date desc, payout_requests.id desc").
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	for i := range rows {
		rows[i].FillCommissionIDs()
	}
	return rows, total, nil
}

// Aggregate 按状态汇总申请金额（忽略分页）
func (r *GormPayoutRequestRepository) Aggregate(filter PayoutRequestListFilter) (PayoutRequestAggregate, error) {
	var row struct {
		TotalAmount     decimal.Decimal `gorm:"column:total_amount"`
		PendingAmount   decimal.Decimal `gorm:"column:pending_amount"`
		ApprovedAmount  decimal.Decimal `gorm:"column:approved_amount"`
		CompletedAmount decimal.Decimal `gorm:"column:completed_amount"`
		RejectedAmount  decimal.Decimal `gorm:"column:rejected_amount"`
	}
	err := r.filtered(filter).Select(
		"COALESCE(SUM(amount), 0) AS total_amount, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS pending_amount, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS approved_amount, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS completed_amount, "+
			"COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS rejected_amount",
		constants.PayoutRequestStatusPending,
		constants.PayoutRequestStatusApproved,
		constants.PayoutRequestStatusCompleted,
		constants.PayoutRequestStatusRejected,
	).Scan(&row).Error
	if err != nil {
		return PayoutRequestAggregate{}, err
	}
	return PayoutRequestAggregate{
		TotalAmount:     row.TotalAmount.Round(2),
		PendingAmount:   row.PendingAmount.Round(2),
		ApprovedAmount:  row.ApprovedAmount.Round(2),
		CompletedAmount: row.CompletedAmount.Round(2),
		RejectedAmount:  row.RejectedAmount.Round(2),
	}, nil
}

// ListOpenCommissionIDs 返回已被未结束申请占用的佣金ID
func (r *GormPayoutRequestRepository) ListOpenCommissionIDs(commissionIDs []uint) ([]uint, error) {
	if len(commissionIDs) == 0 {
		return []uint{}, nil
	}
	var ids []uint
	err := r.db.Model(&models.PayoutRequestCommission{}).
		Joins("JOIN payout_requests pr ON pr.id = payout_request_commissions.payout_request_id").
		Where("payout_request_commissions.commission_id IN ? AND pr.status IN ?",
			commissionIDs,
			[]string{constants.PayoutRequestStatusPending, constants.PayoutRequestStatusApproved},
		).
		Distinct().
		Pluck("payout_request_commissions.commission_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

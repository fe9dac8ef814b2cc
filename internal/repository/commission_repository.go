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

// CommissionRepository 佣金台账数据访问接口
type CommissionRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) CommissionRepository

	Create(record *models.CommissionRecord) error
	GetByID(id uint) (*models.CommissionRecord, error)
	GetByIDForUpdate(id uint) (*models.CommissionRecord, error)
	GetByPaymentID(paymentID string) (*models.CommissionRecord, error)
	ListByIDsForUpdate(ids []uint) ([]models.CommissionRecord, error)
	ListPendingByAgentForUpdate(agentID uint) ([]models.CommissionRecord, error)
	ListByIDs(ids []uint) ([]models.CommissionRecord, error)
	UpdateGuarded(id uint, fromStatus string, version uint, updates map[string]interface{}) (bool, error)
	List(filter CommissionListFilter) ([]models.CommissionRecord, int64, error)
	ListForExport(filter CommissionListFilter, limit int) ([]models.CommissionRecord, error)

	Aggregate(filter CommissionListFilter) (CommissionAggregate, error)
	AggregateByAgent(agentID uint) (AgentCommissionAggregate, error)
	AggregateByAgents(filter CommissionListFilter) ([]AgentCommissionAggregate, error)
	TopAgents(limit int) ([]AgentCommissionAggregate, error)
	SumPendingByAgent(agentID uint) (decimal.Decimal, error)
}

// GormCommissionRepository GORM 佣金台账仓储
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金台账仓储
func NewCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionRepository) WithTx(tx *gorm.DB) CommissionRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionRepository{db: tx}
}

// Transaction 执行事务
func (r *GormCommissionRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建佣金记录
func (r *GormCommissionRepository) Create(record *models.CommissionRecord) error {
	return r.db.Create(record).Error
}

// GetByID 按ID查询佣金
func (r *GormCommissionRepository) GetByID(id uint) (*models.CommissionRecord, error) {
	if id == 0 {
		return nil, nil
	}
	var row models.CommissionRecord
	if err := r.db.Preload("Agent").Preload("ReferralUser").First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetByIDForUpdate 按ID锁定查询佣金
func (r *GormCommissionRepository) GetByIDForUpdate(id uint) (*models.CommissionRecord, error) {
	if id == 0 {
		return nil, nil
	}
	var row models.CommissionRecord
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetByPaymentID 按来源支付查询佣金
func (r *GormCommissionRepository) GetByPaymentID(paymentID string) (*models.CommissionRecord, error) {
	key := strings.TrimSpace(paymentID)
	if key == "" {
		return nil, nil
	}
	var row models.CommissionRecord
	if err := r.db.Where("payment_id = ?", key).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListByIDsForUpdate 按ID集合锁定查询（按 id 升序加锁，避免死锁）
func (r *GormCommissionRepository) ListByIDsForUpdate(ids []uint) ([]models.CommissionRecord, error) {
	if len(ids) == 0 {
		return []models.CommissionRecord{}, nil
	}
	var rows []models.CommissionRecord
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByIDs 按ID集合查询
func (r *GormCommissionRepository) ListByIDs(ids []uint) ([]models.CommissionRecord, error) {
	if len(ids) == 0 {
		return []models.CommissionRecord{}, nil
	}
	var rows []models.CommissionRecord
	if err := r.db.Where("id IN ?", ids).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListPendingByAgentForUpdate 锁定代理全部待结算佣金（按创建时间先进先出）
func (r *GormCommissionRepository) ListPendingByAgentForUpdate(agentID uint) ([]models.CommissionRecord, error) {
	if agentID == 0 {
		return []models.CommissionRecord{}, nil
	}
	var rows []models.CommissionRecord
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("agent_id = ? AND status = ?", agentID, constants.CommissionStatusPending).
		Order("created_at asc, id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateGuarded 基于状态与版本号的条件更新，返回是否命中
func (r *GormCommissionRepository) UpdateGuarded(id uint, fromStatus string, version uint, updates map[string]interface{}) (bool, error) {
	if id == 0 {
		return false, nil
	}
	values := make(map[string]interface{}, len(updates)+2)
	for k, v := range updates {
		values[k] = v
	}
	values["version"] = gorm.Expr("version + 1")
	if _, ok := values["updated_at"]; !ok {
		values["updated_at"] = time.Now()
	}
	result := r.db.Model(&models.CommissionRecord{}).
		Where("id = ? AND status = ? AND version = ?", id, fromStatus, version).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *GormCommissionRepository) filtered(filter CommissionListFilter) *gorm.DB {
	query := r.db.Model(&models.CommissionRecord{})
	if filter.AgentID != 0 {
		query = query.Where("commission_records.agent_id = ?", filter.AgentID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("commission_records.status = ?", status)
	}
	if paymentID := strings.TrimSpace(filter.PaymentID); paymentID != "" {
		query = query.Where("commission_records.payment_id = ?", paymentID)
	}
	return applyCreatedRange(query, "commission_records.created_at", filter.CreatedFrom, filter.CreatedTo)
}

// List 查询佣金列表
func (r *GormCommissionRepository) List(filter CommissionListFilter) ([]models.CommissionRecord, int64, error) {
	query := r.filtered(filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.CommissionRecord
	if err := query.Preload("Agent").Preload("ReferralUser").
		Order("commission_records.created_at desc, commission_records.id desc").
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListForExport 导出查询（不分页，受 limit 保护）
func (r *GormCommissionRepository) ListForExport(filter CommissionListFilter, limit int) ([]models.CommissionRecord, error) {
	query := r.filtered(filter).Preload("Agent").Preload("ReferralUser")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.CommissionRecord
	if err := query.Order("commission_records.id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type commissionAggregateRow struct {
	AgentID             uint            `gorm:"column:agent_id"`
	PendingCommission   decimal.Decimal `gorm:"column:pending_commission"`
	PaidCommission      decimal.Decimal `gorm:"column:paid_commission"`
	CancelledCommission decimal.Decimal `gorm:"column:cancelled_commission"`
	TotalCount          int64           `gorm:"column:total_count"`
	PendingCount        int64           `gorm:"column:pending_count"`
	PaidCount           int64           `gorm:"column:paid_count"`
	ReferralCount       int64           `gorm:"column:referral_count"`
}

func (row commissionAggregateRow) toAggregate() AgentCommissionAggregate {
	pending := row.PendingCommission.Round(2)
	paid := row.PaidCommission.Round(2)
	return AgentCommissionAggregate{
		AgentID: row.AgentID,
		CommissionAggregate: CommissionAggregate{
			TotalCommission:     pending.Add(paid),
			PendingCommission:   pending,
			PaidCommission:      paid,
			CancelledCommission: row.CancelledCommission.Round(2),
			TotalCount:          row.TotalCount,
			PendingCount:        row.PendingCount,
			PaidCount:           row.PaidCount,
		},
		ReferralCount: row.ReferralCount,
	}
}

const aggregateSelect = "COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS pending_commission, " +
	"COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS paid_commission, " +
	"COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS cancelled_commission, " +
	"COUNT(*) AS total_count, " +
	"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending_count, " +
	"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS paid_count, " +
	"COUNT(DISTINCT CASE WHEN status <> ? THEN referral_user_id END) AS referral_count"

func aggregateArgs() []interface{} {
	return []interface{}{
		constants.CommissionStatusPending,
		constants.CommissionStatusPaid,
		constants.CommissionStatusCancelled,
		constants.CommissionStatusPending,
		constants.CommissionStatusPaid,
		constants.CommissionStatusCancelled,
	}
}

// Aggregate 按过滤条件汇总佣金（忽略分页）
func (r *GormCommissionRepository) Aggregate(filter CommissionListFilter) (CommissionAggregate, error) {
	var row commissionAggregateRow
	if err := r.filtered(filter).Select(aggregateSelect, aggregateArgs()...).Scan(&row).Error; err != nil {
		return CommissionAggregate{}, err
	}
	return row.toAggregate().CommissionAggregate, nil
}

// AggregateByAgent 汇总单个代理佣金
func (r *GormCommissionRepository) AggregateByAgent(agentID uint) (AgentCommissionAggregate, error) {
	if agentID == 0 {
		return AgentCommissionAggregate{}, nil
	}
	var row commissionAggregateRow
	if err := r.db.Model(&models.CommissionRecord{}).
		Where("agent_id = ?", agentID).
		Select(aggregateSelect, aggregateArgs()...).
		Scan(&row).Error; err != nil {
		return AgentCommissionAggregate{}, err
	}
	out := row.toAggregate()
	out.AgentID = agentID
	return out, nil
}

// AggregateByAgents 按代理分组汇总（忽略分页）
func (r *GormCommissionRepository) AggregateByAgents(filter CommissionListFilter) ([]AgentCommissionAggregate, error) {
	var rows []commissionAggregateRow
	if err := r.filtered(filter).
		Select("agent_id, "+aggregateSelect, aggregateArgs()...).
		Group("agent_id").
		Order("agent_id asc").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]AgentCommissionAggregate, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toAggregate())
	}
	return result, nil
}

// TopAgents 按已结算+待结算佣金排行
func (r *GormCommissionRepository) TopAgents(limit int) ([]AgentCommissionAggregate, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []commissionAggregateRow
	if err := r.db.Model(&models.CommissionRecord{}).
		Where("status <> ?", constants.CommissionStatusCancelled).
		Select("agent_id, "+aggregateSelect, aggregateArgs()...).
		Group("agent_id").
		Order("SUM(amount) desc, agent_id asc").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]AgentCommissionAggregate, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toAggregate())
	}
	return result, nil
}

// SumPendingByAgent 汇总代理待结算金额
func (r *GormCommissionRepository) SumPendingByAgent(agentID uint) (decimal.Decimal, error) {
	if agentID == 0 {
		return decimal.Zero, nil
	}
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := r.db.Model(&models.CommissionRecord{}).
		Where("agent_id = ? AND status = ?", agentID, constants.CommissionStatusPending).
		Select("COALESCE(SUM(amount), 0) AS total").
		Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}

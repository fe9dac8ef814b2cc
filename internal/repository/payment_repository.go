package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/course-referral/internal/constants"
	"github.com/course-referral/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentRepository 课程支付数据访问接口
type PaymentRepository interface {
	WithTx(tx *gorm.DB) PaymentRepository
	GetByRef(ref string) (*models.CoursePayment, error)
	Create(payment *models.CoursePayment) error
	Aggregate() (PaymentAggregate, error)
	ListMissingCommission(before time.Time, limit int) ([]models.CoursePayment, error)
	MarkCommissionSkipped(id uint, reason string, at time.Time) error
}

// GormPaymentRepository GORM 课程支付仓储
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建课程支付仓储
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) PaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// GetByRef 按外部支付ID查询
func (r *GormPaymentRepository) GetByRef(ref string) (*models.CoursePayment, error) {
	key := strings.TrimSpace(ref)
	if key == "" {
		return nil, nil
	}
	var payment models.CoursePayment
	if err := r.db.Where("payment_ref = ?", key).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// Create 写入支付
func (r *GormPaymentRepository) Create(payment *models.CoursePayment) error {
	return r.db.Create(payment).Error
}

// Aggregate 汇总已完成支付
func (r *GormPaymentRepository) Aggregate() (PaymentAggregate, error) {
	var row struct {
		TotalRevenue     decimal.Decimal `gorm:"column:total_revenue"`
		TotalPayments    int64           `gorm:"column:total_payments"`
		ReferralPayments int64           `gorm:"column:referral_payments"`
	}
	err := r.db.Model(&models.CoursePayment{}).
		Where("status = ?", constants.CoursePaymentStatusCompleted).
		Select("COALESCE(SUM(amount), 0) AS total_revenue, COUNT(*) AS total_payments, " +
			"COALESCE(SUM(CASE WHEN agent_id IS NOT NULL THEN 1 ELSE 0 END), 0) AS referral_payments").
		Scan(&row).Error
	if err != nil {
		return PaymentAggregate{}, err
	}
	return PaymentAggregate{
		TotalRevenue:     row.TotalRevenue.Round(2),
		TotalPayments:    row.TotalPayments,
		ReferralPayments: row.ReferralPayments,
	}, nil
}

// ListMissingCommission 查询带推荐代理但尚未生成佣金的支付（队列任务丢失时补偿）
func (r *GormPaymentRepository) ListMissingCommission(before time.Time, limit int) ([]models.CoursePayment, error) {
	if limit <= 0 {
		limit = 100
	}
	var payments []models.CoursePayment
	err := r.db.Model(&models.CoursePayment{}).
		Where("status = ? AND agent_id IS NOT NULL AND agent_id > 0 AND created_at < ?", constants.CoursePaymentStatusCompleted, before).
		Where("commission_skipped_at IS NULL").
		Where("NOT EXISTS (SELECT 1 FROM commission_records cr WHERE cr.payment_id = course_payments.payment_ref)").
		Order("id ASC").
		Limit(limit).
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// MarkCommissionSkipped 标记无法补建佣金的支付，补偿扫描不再返回
func (r *GormPaymentRepository) MarkCommissionSkipped(id uint, reason string, at time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.CoursePayment{}).
		Where("id = ? AND commission_skipped_at IS NULL", id).
		Updates(map[string]interface{}{
			"commission_skipped_at":  at,
			"commission_skip_reason": reason,
		}).Error
}

package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/course-referral/internal/constants"
	"github.com/course-referral/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupPaymentRepositoryTest(t *testing.T) (*GormPaymentRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:payment_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.CoursePayment{}, &models.CommissionRecord{}, &models.User{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewPaymentRepository(db), db
}

func createCoursePayment(t *testing.T, repo *GormPaymentRepository, ref string, agentID *uint, amount string, createdAt time.Time) {
	t.Helper()
	payment := &models.CoursePayment{
		PaymentRef: ref,
		UserID:     1,
		AgentID:    agentID,
		Amount:     models.NewMoneyFromDecimal(decimal.RequireFromString(amount)),
		Currency:   "USD",
		Status:     constants.CoursePaymentStatusCompleted,
		CreatedAt:  createdAt,
	}
	if err := repo.Create(payment); err != nil {
		t.Fatalf("create payment %s failed: %v", ref, err)
	}
}

func TestPaymentRepositoryGetByRef(t *testing.T) {
	repo, _ := setupPaymentRepositoryTest(t)
	createCoursePayment(t, repo, "pay_1", nil, "10.00", time.Now())

	got, err := repo.GetByRef(" pay_1 ")
	if err != nil {
		t.Fatalf("get by ref failed: %v", err)
	}
	if got == nil || got.PaymentRef != "pay_1" {
		t.Fatalf("unexpected payment: %+v", got)
	}

	missing, err := repo.GetByRef("pay_missing")
	if err != nil || missing != nil {
		t.Fatalf("missing ref should return nil,nil got %+v %v", missing, err)
	}
	empty, err := repo.GetByRef("  ")
	if err != nil || empty != nil {
		t.Fatalf("blank ref should return nil,nil got %+v %v", empty, err)
	}
}

func TestPaymentRepositoryAggregate(t *testing.T) {
	repo, _ := setupPaymentRepositoryTest(t)
	agentID := uint(9)
	now := time.Now()
	createCoursePayment(t, repo, "pay_a", &agentID, "100.00", now)
	createCoursePayment(t, repo, "pay_b", nil, "49.50", now)
	createCoursePayment(t, repo, "pay_c", &agentID, "0.50", now)

	agg, err := repo.Aggregate()
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if !agg.TotalRevenue.Equal(decimal.RequireFromString("150.00")) {
		t.Fatalf("unexpected revenue %s", agg.TotalRevenue)
	}
	if agg.TotalPayments != 3 || agg.ReferralPayments != 2 {
		t.Fatalf("unexpected counts: %+v", agg)
	}
}

func TestPaymentRepositoryListMissingCommission(t *testing.T) {
	repo, db := setupPaymentRepositoryTest(t)
	agentID := uint(9)
	now := time.Now()
	old := now.Add(-time.Hour)
	createCoursePayment(t, repo, "pay_lost", &agentID, "20.00", old)
	createCoursePayment(t, repo, "pay_done", &agentID, "20.00", old)
	createCoursePayment(t, repo, "pay_direct", nil, "20.00", old)
	createCoursePayment(t, repo, "pay_recent", &agentID, "20.00", now)

	done := models.CommissionRecord{
		AgentID:        agentID,
		ReferralUserID: 1,
		PaymentID:      "pay_done",
		PaymentAmount:  models.NewMoneyFromDecimal(decimal.RequireFromString("20.00")),
		Amount:         models.NewMoneyFromDecimal(decimal.RequireFromString("2.00")),
		Status:         constants.CommissionStatusPending,
	}
	if err := db.Create(&done).Error; err != nil {
		t.Fatalf("create commission failed: %v", err)
	}

	rows, err := repo.ListMissingCommission(now.Add(-time.Minute), 10)
	if err != nil {
		t.Fatalf("list missing failed: %v", err)
	}
	if len(rows) != 1 || rows[0].PaymentRef != "pay_lost" {
		t.Fatalf("expected only pay_lost, got %+v", rows)
	}
}

func TestPaymentRepositoryMarkCommissionSkipped(t *testing.T) {
	repo, _ := setupPaymentRepositoryTest(t)
	agentID := uint(11)
	now := time.Now()
	old := now.Add(-time.Hour)
	createCoursePayment(t, repo, "pay_orphan", &agentID, "20.00", old)
	createCoursePayment(t, repo, "pay_next", &agentID, "20.00", old)

	orphan, err := repo.GetByRef("pay_orphan")
	if err != nil || orphan == nil {
		t.Fatalf("get payment failed: %v", err)
	}
	if err := repo.MarkCommissionSkipped(orphan.ID, "agent not found", now); err != nil {
		t.Fatalf("mark skipped failed: %v", err)
	}

	rows, err := repo.ListMissingCommission(now.Add(-time.Minute), 1)
	if err != nil {
		t.Fatalf("list missing failed: %v", err)
	}
	if len(rows) != 1 || rows[0].PaymentRef != "pay_next" {
		t.Fatalf("skipped payment should be excluded, got %+v", rows)
	}

	reloaded, _ := repo.GetByRef("pay_orphan")
	if reloaded.CommissionSkippedAt == nil || reloaded.CommissionSkipReason != "agent not found" {
		t.Fatalf("skip marker not stored: %+v", reloaded)
	}
}

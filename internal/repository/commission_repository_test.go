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

func setupCommissionRepositoryTest(t *testing.T) (*GormCommissionRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:commission_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{DisableForeignKeyConstraintWhenMigrating: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewCommissionRepository(db), db
}

func createRepoTestCommission(t *testing.T, db *gorm.DB, agentID, referralID uint, paymentID, amount, status string, createdAt time.Time) models.CommissionRecord {
	t.Helper()
	row := models.CommissionRecord{
		AgentID:        agentID,
		ReferralUserID: referralID,
		PaymentID:      paymentID,
		PaymentAmount:  models.NewMoneyFromDecimal(decimal.RequireFromString(amount).Mul(decimal.NewFromInt(10))),
		Amount:         models.NewMoneyFromDecimal(decimal.RequireFromString(amount)),
		CommissionRate: models.NewRate(decimal.RequireFromString("0.1")),
		Status:         status,
		Version:        1,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	if status == constants.CommissionStatusPaid {
		paidAt := createdAt.Add(time.Hour)
		row.PaidAt = &paidAt
		row.PayoutMethod = constants.PayoutMethodManual
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("create commission failed: %v", err)
	}
	return row
}

func TestCommissionRepositoryUpdateGuardedRejectsStaleVersion(t *testing.T) {
	repo, db := setupCommissionRepositoryTest(t)
	now := time.Now().UTC().Truncate(time.Second)
	row := createRepoTestCommission(t, db, 1, 2, "pay-guard-1", "10.00", constants.CommissionStatusPending, now)

	ok, err := repo.UpdateGuarded(row.ID, constants.CommissionStatusPending, row.Version, map[string]interface{}{
		"status":  constants.CommissionStatusPaid,
		"paid_at": now,
	})
	if err != nil {
		t.Fatalf("first update failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected first guarded update to apply")
	}

	ok, err = repo.UpdateGuarded(row.ID, constants.CommissionStatusPending, row.Version, map[string]interface{}{
		"status":  constants.CommissionStatusPaid,
		"paid_at": now,
	})
	if err != nil {
		t.Fatalf("second update failed: %v", err)
	}
	if ok {
		t.Fatalf("expected stale update to miss")
	}

	reloaded, err := repo.GetByID(row.ID)
	if err != nil || reloaded == nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Version != row.Version+1 {
		t.Fatalf("expected version %d, got %d", row.Version+1, reloaded.Version)
	}
}

func TestCommissionRepositoryListPendingByAgentForUpdateIsFIFO(t *testing.T) {
	repo, db := setupCommissionRepositoryTest(t)
	now := time.Now().UTC().Truncate(time.Second)
	newer := createRepoTestCommission(t, db, 7, 20, "pay-fifo-new", "30.00", constants.CommissionStatusPending, now)
	older := createRepoTestCommission(t, db, 7, 21, "pay-fifo-old", "50.00", constants.CommissionStatusPending, now.Add(-48*time.Hour))
	createRepoTestCommission(t, db, 7, 22, "pay-fifo-paid", "70.00", constants.CommissionStatusPaid, now.Add(-72*time.Hour))
	createRepoTestCommission(t, db, 8, 23, "pay-fifo-other", "90.00", constants.CommissionStatusPending, now.Add(-96*time.Hour))

	rows, err := repo.ListPendingByAgentForUpdate(7)
	if err != nil {
		t.Fatalf("list pending failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 pending rows, got %d", len(rows))
	}
	if rows[0].ID != older.ID || rows[1].ID != newer.ID {
		t.Fatalf("expected FIFO order [%d %d], got [%d %d]", older.ID, newer.ID, rows[0].ID, rows[1].ID)
	}
}

func TestCommissionRepositoryAggregateByAgent(t *testing.T) {
	repo, db := setupCommissionRepositoryTest(t)
	now := time.Now().UTC().Truncate(time.Second)
	createRepoTestCommission(t, db, 3, 30, "pay-agg-1", "50.00", constants.CommissionStatusPending, now)
	createRepoTestCommission(t, db, 3, 31, "pay-agg-2", "30.00", constants.CommissionStatusPaid, now)
	createRepoTestCommission(t, db, 3, 31, "pay-agg-3", "12.50", constants.CommissionStatusCancelled, now)
	createRepoTestCommission(t, db, 4, 32, "pay-agg-4", "99.00", constants.CommissionStatusPending, now)

	agg, err := repo.AggregateByAgent(3)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if !agg.PendingCommission.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("unexpected pending: %s", agg.PendingCommission)
	}
	if !agg.PaidCommission.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("unexpected paid: %s", agg.PaidCommission)
	}
	if !agg.TotalCommission.Equal(decimal.RequireFromString("80.00")) {
		t.Fatalf("unexpected total: %s", agg.TotalCommission)
	}
	if !agg.CancelledCommission.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("unexpected cancelled: %s", agg.CancelledCommission)
	}
	if agg.TotalCount != 3 || agg.PendingCount != 1 || agg.PaidCount != 1 {
		t.Fatalf("unexpected counts: %+v", agg.CommissionAggregate)
	}
	if agg.ReferralCount != 2 {
		t.Fatalf("expected 2 referrals, got %d", agg.ReferralCount)
	}

	byAgent, err := repo.AggregateByAgents(CommissionListFilter{})
	if err != nil {
		t.Fatalf("aggregate by agents failed: %v", err)
	}
	if len(byAgent) != 2 || byAgent[0].AgentID != 3 || byAgent[1].AgentID != 4 {
		t.Fatalf("unexpected agent aggregates: %+v", byAgent)
	}
}

func TestCommissionRepositoryListFiltersByStatusAndRange(t *testing.T) {
	repo, db := setupCommissionRepositoryTest(t)
	now := time.Now().UTC().Truncate(time.Second)
	createRepoTestCommission(t, db, 5, 40, "pay-list-1", "10.00", constants.CommissionStatusPending, now.Add(-2*time.Hour))
	createRepoTestCommission(t, db, 5, 41, "pay-list-2", "20.00", constants.CommissionStatusPending, now.Add(-40*24*time.Hour))
	createRepoTestCommission(t, db, 5, 42, "pay-list-3", "30.00", constants.CommissionStatusPaid, now.Add(-time.Hour))

	from := now.Add(-30 * 24 * time.Hour)
	rows, total, err := repo.List(CommissionListFilter{
		Page:        1,
		PageSize:    10,
		Status:      constants.CommissionStatusPending,
		CreatedFrom: &from,
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].PaymentID != "pay-list-1" {
		t.Fatalf("unexpected list result total=%d rows=%+v", total, rows)
	}
}

func TestPayoutRequestRepositoryAggregateAndOpenCommissions(t *testing.T) {
	_, db := setupCommissionRepositoryTest(t)
	repo := NewPayoutRequestRepository(db)
	now := time.Now().UTC().Truncate(time.Second)

	open := models.PayoutRequest{
		AgentID:     9,
		Amount:      models.NewMoneyFromDecimal(decimal.RequireFromString("40.00")),
		Status:      constants.PayoutRequestStatusPending,
		RequestDate: now,
		Version:     1,
	}
	if err := repo.Create(&open, []uint{101, 102}); err != nil {
		t.Fatalf("create open request failed: %v", err)
	}
	closed := models.PayoutRequest{
		AgentID:     9,
		Amount:      models.NewMoneyFromDecimal(decimal.RequireFromString("15.00")),
		Status:      constants.PayoutRequestStatusRejected,
		RequestDate: now,
		Version:     1,
	}
	if err := repo.Create(&closed, []uint{103}); err != nil {
		t.Fatalf("create closed request failed: %v", err)
	}

	ids, err := repo.ListOpenCommissionIDs([]uint{101, 103, 104})
	if err != nil {
		t.Fatalf("list open ids failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != 101 {
		t.Fatalf("unexpected open ids: %v", ids)
	}

	agg, err := repo.Aggregate(PayoutRequestListFilter{AgentID: 9})
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if !agg.TotalAmount.Equal(decimal.RequireFromString("55.00")) || !agg.PendingAmount.Equal(decimal.RequireFromString("40.00")) {
		t.Fatalf("unexpected aggregate: %+v", agg)
	}

	loaded, err := repo.GetByID(open.ID)
	if err != nil || loaded == nil {
		t.Fatalf("get request failed: %v", err)
	}
	if len(loaded.CommissionIDs) != 2 {
		t.Fatalf("expected 2 commission ids, got %v", loaded.CommissionIDs)
	}
}

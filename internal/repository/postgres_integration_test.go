//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/course-referral/internal/constants"
	"github.com/course-referral/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{DisableForeignKeyConstraintWhenMigrating: true})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := models.AllModels()
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := db.AutoMigrate(cleanupModels...); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestPostgresCommissionAggregate(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewCommissionRepository(db)
	now := time.Now().UTC().Truncate(time.Second)

	createRepoTestCommission(t, db, 1, 10, "pg-pay-1", "12.50", constants.CommissionStatusPending, now)
	createRepoTestCommission(t, db, 1, 11, "pg-pay-2", "7.50", constants.CommissionStatusPaid, now)
	createRepoTestCommission(t, db, 1, 12, "pg-pay-3", "3.00", constants.CommissionStatusCancelled, now)

	agg, err := repo.AggregateByAgent(1)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	if !agg.PendingCommission.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("pending want 12.50 got %s", agg.PendingCommission)
	}
	if !agg.TotalCommission.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("total want 20.00 got %s", agg.TotalCommission)
	}
	if agg.ReferralCount != 2 {
		t.Fatalf("referral count want 2 got %d", agg.ReferralCount)
	}
}

func TestPostgresListByIDsForUpdateInsideTransaction(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewCommissionRepository(db)
	now := time.Now().UTC().Truncate(time.Second)
	first := createRepoTestCommission(t, db, 2, 20, "pg-lock-1", "5.00", constants.CommissionStatusPending, now)
	second := createRepoTestCommission(t, db, 2, 21, "pg-lock-2", "6.00", constants.CommissionStatusPending, now)

	err := repo.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.WithTx(tx).ListByIDsForUpdate([]uint{second.ID, first.ID})
		if err != nil {
			return err
		}
		if len(rows) != 2 || rows[0].ID != first.ID {
			t.Fatalf("locked rows should be ordered by id, got %+v", rows)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

func TestPostgresUserKeywordIsCaseInsensitive(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	repo := NewUserRepository(db)
	user := &models.User{
		Email:        "Mentor@Example.com",
		PasswordHash: "x",
		DisplayName:  "Course Mentor",
		Role:         constants.UserRoleAgent,
		AgentStatus:  constants.AgentStatusApproved,
		Status:       constants.UserStatusActive,
	}
	if err := repo.Create(user); err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	rows, total, err := repo.List(UserListFilter{Page: 1, PageSize: 10, Keyword: "mentor"})
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].ID != user.ID {
		t.Fatalf("keyword search want 1 user got total=%d rows=%d", total, len(rows))
	}
}

package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/course-referral/internal/cache"
	"github.com/course-referral/internal/config"
	"github.com/course-referral/internal/constants"
	"github.com/course-referral/internal/models"
	"github.com/course-referral/internal/payout"
	"github.com/course-referral/internal/provider"
	"github.com/course-referral/internal/queue"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fakeGateway struct {
	method string
	calls  []payout.TransferRequest
}

func (g *fakeGateway) Method() string { return g.method }

func (g *fakeGateway) Transfer(_ context.Context, req payout.TransferRequest) (*payout.TransferResult, error) {
	g.calls = append(g.calls, req)
	return &payout.TransferResult{ProviderRef: "tr_" + req.Reference, Status: "paid"}, nil
}

func setupConsumerTest(t *testing.T, gateways ...payout.Gateway) (*Consumer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("new disabled queue failed: %v", err)
	}
	cfg := &config.Config{Commission: config.CommissionConfig{DefaultRate: "0.10", Currency: "USD"}}
	container := provider.NewContainerWith(cfg, db, queueClient, payout.NewRegistry(gateways...))
	return NewConsumer(container), db
}

func createWorkerAgent(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	agent := &models.User{
		Email:          fmt.Sprintf("agent_%d@example.com", time.Now().UnixNano()),
		PasswordHash:   "hash",
		Role:           constants.UserRoleAgent,
		AgentStatus:    constants.AgentStatusApproved,
		Status:         constants.UserStatusActive,
		CommissionRate: models.NewRate(decimal.RequireFromString("0.15")),
		BankDetails:    models.BankDetails{StripeAccountID: "acct_worker", IsVerified: true},
	}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("create agent failed: %v", err)
	}
	return agent
}

func TestHandleCommissionCreateIsIdempotent(t *testing.T) {
	consumer, db := setupConsumerTest(t)
	agent := createWorkerAgent(t, db)

	task, err := queue.NewCommissionCreateTask(queue.CommissionCreatePayload{
		PaymentID:      "pay_worker_1",
		AgentID:        agent.ID,
		ReferralUserID: 3,
		Amount:         "200.00",
	})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := consumer.handleCommissionCreate(context.Background(), task); err != nil {
			t.Fatalf("attempt %d failed: %v", i+1, err)
		}
	}

	var records []models.CommissionRecord
	if err := db.Find(&records).Error; err != nil {
		t.Fatalf("list commissions failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one commission, got %d", len(records))
	}
	if !records[0].Amount.Decimal.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("unexpected amount %s", records[0].Amount.String())
	}
}

func TestHandleCommissionCreateSkipsInvalidPayloads(t *testing.T) {
	consumer, db := setupConsumerTest(t)
	plain := &models.User{Email: "plain@example.com", PasswordHash: "hash", Role: constants.UserRoleUser}
	if err := db.Create(plain).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	empty, _ := queue.NewCommissionCreateTask(queue.CommissionCreatePayload{})
	if err := consumer.handleCommissionCreate(context.Background(), empty); err != nil {
		t.Fatalf("empty payload should be skipped, got %v", err)
	}
	notAgent, _ := queue.NewCommissionCreateTask(queue.CommissionCreatePayload{
		PaymentID: "pay_not_agent",
		AgentID:   plain.ID,
		Amount:    "10.00",
	})
	if err := consumer.handleCommissionCreate(context.Background(), notAgent); err != nil {
		t.Fatalf("non-agent payload should be dropped, got %v", err)
	}
	broken := asynq.NewTask(queue.TaskCommissionCreate, []byte("{"))
	if err := consumer.handleCommissionCreate(context.Background(), broken); err == nil {
		t.Fatalf("malformed payload should return error for retry")
	}
}

func TestHandlePayoutDispatchCallsGateway(t *testing.T) {
	gateway := &fakeGateway{method: constants.PayoutMethodStripe}
	consumer, db := setupConsumerTest(t, gateway)
	agent := createWorkerAgent(t, db)

	task, err := queue.NewPayoutDispatchTask(queue.PayoutDispatchPayload{
		Method:        constants.PayoutMethodStripe,
		AgentID:       agent.ID,
		Amount:        "45.00",
		CommissionIDs: []uint{11, 12},
		Reference:     "bulk-ref-1",
		AdminID:       1,
	})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handlePayoutDispatch(context.Background(), task); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if len(gateway.calls) != 1 {
		t.Fatalf("expected one gateway call, got %d", len(gateway.calls))
	}
	call := gateway.calls[0]
	if call.Destination.StripeAccountID != "acct_worker" || !call.Amount.Equal(decimal.RequireFromString("45")) {
		t.Fatalf("unexpected transfer request: %+v", call)
	}

	var confirmed int64
	db.Model(&models.CommissionAuditLog{}).
		Where("action = ? AND to_status = ?", constants.AuditActionGatewayConfirmed, constants.GatewayStatusSucceeded).
		Count(&confirmed)
	if confirmed != 2 {
		t.Fatalf("expected 2 gateway confirmations, got %d", confirmed)
	}
}

func TestHandleSummaryInvalidateBumpsGeneration(t *testing.T) {
	consumer, _ := setupConsumerTest(t)
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis failed: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.UseClient(client, "cr")
	defer cache.UseClient(nil, "")

	ctx := context.Background()
	before, err := cache.ResolveSummaryKey(ctx, cache.AgentSummaryKey(5))
	if err != nil {
		t.Fatalf("resolve key failed: %v", err)
	}
	if err := cache.SetSummary(ctx, before, map[string]string{"total": "1"}, time.Minute); err != nil {
		t.Fatalf("seed agent summary failed: %v", err)
	}

	task, _ := queue.NewSummaryInvalidateTask(queue.SummaryInvalidatePayload{AgentIDs: []uint{5}})
	if err := consumer.handleSummaryInvalidate(ctx, task); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	after, err := cache.ResolveSummaryKey(ctx, cache.AgentSummaryKey(5))
	if err != nil {
		t.Fatalf("resolve key failed: %v", err)
	}
	if after == before {
		t.Fatalf("summary generation should change, still %s", after)
	}
	var got map[string]string
	if hit, _ := cache.GetSummary(ctx, after, &got); hit {
		t.Fatalf("invalidated summary should miss, keys=%v", mr.Keys())
	}
}

func TestRegisterHandlesLedgerTasks(t *testing.T) {
	consumer, _ := setupConsumerTest(t)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	for _, taskType := range []string{queue.TaskCommissionCreate, queue.TaskPayoutDispatch, queue.TaskSummaryInvalidate} {
		handler, pattern := mux.Handler(asynq.NewTask(taskType, nil))
		if handler == nil || pattern != taskType {
			t.Fatalf("task %s not registered, pattern=%q", taskType, pattern)
		}
	}
}

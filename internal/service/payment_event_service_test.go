package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/course-referral/internal/constants"
	"github.com/course-referral/internal/models"
	"github.com/course-referral/internal/queue"

	"github.com/shopspring/decimal"
)

func TestPaymentEventSignature(t *testing.T) {
	env := setupLedgerServiceTest(t)
	body := []byte(`{"payment_id":"pay_sig"}`)
	signature := SignPaymentWebhook("whsec_test", body)

	if err := env.payments.VerifySignature(body, signature); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
	if err := env.payments.VerifySignature(body, "sha256="+signature); err != nil {
		t.Fatalf("expected prefixed signature accepted, got %v", err)
	}
	if err := env.payments.VerifySignature(body, "deadbeef"); !errors.Is(err, ErrWebhookSignatureInvalid) {
		t.Fatalf("expected ErrWebhookSignatureInvalid, got %v", err)
	}
	if err := env.payments.VerifySignature(body, ""); !errors.Is(err, ErrWebhookSignatureInvalid) {
		t.Fatalf("expected ErrWebhookSignatureInvalid for empty header, got %v", err)
	}
}

func TestHandlePaymentCompletedCreatesCommissionOnce(t *testing.T) {
	env := setupLedgerServiceTest(t)
	agent := createLedgerAgent(t, env.db, "event_agent@example.com", false)
	agentID := agent.ID

	event := PaymentCompletedEvent{
		PaymentID: "pay_evt_1",
		UserID:    501,
		AgentID:   &agentID,
		Amount:    decimal.RequireFromString("199.00"),
	}
	first, err := env.payments.HandlePaymentCompleted(event)
	if err != nil {
		t.Fatalf("handle payment failed: %v", err)
	}
	if !first.CommissionCreated || first.CommissionID == 0 {
		t.Fatalf("expected commission created, got %+v", first)
	}
	record, err := env.commissions.GetByID(first.CommissionID)
	if err != nil {
		t.Fatalf("get commission failed: %v", err)
	}
	if record.ReferralUserID != 501 || !record.Amount.Decimal.Equal(decimal.RequireFromString("19.90")) {
		t.Fatalf("unexpected commission: %+v", record)
	}

	second, err := env.payments.HandlePaymentCompleted(event)
	if err != nil {
		t.Fatalf("replayed payment failed: %v", err)
	}
	if !second.Duplicate || second.CommissionCreated {
		t.Fatalf("expected duplicate replay, got %+v", second)
	}
	var count int64
	env.db.Model(&models.CommissionRecord{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one commission, got %d", count)
	}
}

func TestHandlePaymentCompletedWithoutAgentOnlyRecordsPayment(t *testing.T) {
	env := setupLedgerServiceTest(t)

	result, err := env.payments.HandlePaymentCompleted(PaymentCompletedEvent{
		PaymentID: "pay_evt_direct",
		UserID:    9,
		Amount:    decimal.RequireFromString("49.99"),
	})
	if err != nil {
		t.Fatalf("handle payment failed: %v", err)
	}
	if result.CommissionCreated || result.CommissionQueued {
		t.Fatalf("expected no commission, got %+v", result)
	}
	summary, err := env.aggregator.SystemSummary()
	if err != nil {
		t.Fatalf("system summary failed: %v", err)
	}
	if summary.TotalPayments != 1 || summary.ReferralPayments != 0 || summary.TotalCommissions != 0 {
		t.Fatalf("unexpected system summary: %+v", summary)
	}
	if !summary.TotalRevenue.Decimal.Equal(decimal.RequireFromString("49.99")) {
		t.Fatalf("expected revenue 49.99, got %s", summary.TotalRevenue.String())
	}

	if _, err := env.payments.HandlePaymentCompleted(PaymentCompletedEvent{Amount: decimal.NewFromInt(1)}); !errors.Is(err, ErrPaymentIDRequired) {
		t.Fatalf("expected ErrPaymentIDRequired, got %v", err)
	}
}

func TestProcessCommissionTaskIsIdempotent(t *testing.T) {
	env := setupLedgerServiceTest(t)
	agent := createLedgerAgent(t, env.db, "task_agent@example.com", false)
	payload := queue.CommissionCreatePayload{
		PaymentID:      "pay_task_1",
		AgentID:        agent.ID,
		ReferralUserID: 88,
		Amount:         "60.00",
		CommissionRate: "0.25",
	}
	if err := env.payments.ProcessCommissionTask(payload); err != nil {
		t.Fatalf("process task failed: %v", err)
	}
	if err := env.payments.ProcessCommissionTask(payload); err != nil {
		t.Fatalf("replayed task should be ignored, got %v", err)
	}
	var rows []models.CommissionRecord
	env.db.Where("payment_id = ?", "pay_task_1").Find(&rows)
	if len(rows) != 1 || !rows[0].Amount.Decimal.Equal(decimal.RequireFromString("15.00")) {
		t.Fatalf("unexpected commission rows: %+v", rows)
	}

	payload.PaymentID = "pay_task_bad"
	payload.Amount = "abc"
	if err := env.payments.ProcessCommissionTask(payload); err == nil {
		t.Fatalf("expected amount parse error")
	}
}

func TestReconcileMissingCommissions(t *testing.T) {
	env := setupLedgerServiceTest(t)
	agent := createLedgerAgent(t, env.db, "reconcile_agent@example.com", false)
	agentID := agent.ID
	now := time.Now()

	stale := &models.CoursePayment{
		PaymentRef: "pay_lost_task",
		UserID:     77,
		AgentID:    &agentID,
		Amount:     models.NewMoneyFromDecimal(decimal.RequireFromString("80.00")),
		Currency:   "USD",
		Status:     constants.CoursePaymentStatusCompleted,
		CreatedAt:  now.Add(-time.Hour),
	}
	fresh := &models.CoursePayment{
		PaymentRef: "pay_in_flight",
		UserID:     78,
		AgentID:    &agentID,
		Amount:     models.NewMoneyFromDecimal(decimal.RequireFromString("80.00")),
		Currency:   "USD",
		Status:     constants.CoursePaymentStatusCompleted,
		CreatedAt:  now,
	}
	for _, p := range []*models.CoursePayment{stale, fresh} {
		if err := env.db.Create(p).Error; err != nil {
			t.Fatalf("create payment failed: %v", err)
		}
	}

	created, err := env.payments.ReconcileMissingCommissions(now)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 commission reconciled, got %d", created)
	}
	var record models.CommissionRecord
	if err := env.db.Where("payment_id = ?", "pay_lost_task").First(&record).Error; err != nil {
		t.Fatalf("reconciled commission missing: %v", err)
	}
	if !record.Amount.Decimal.Equal(decimal.RequireFromString("8.00")) {
		t.Fatalf("unexpected reconciled amount %s", record.Amount.String())
	}

	created, err = env.payments.ReconcileMissingCommissions(now)
	if err != nil || created != 0 {
		t.Fatalf("second reconcile should be a no-op, got %d %v", created, err)
	}
}

func TestHandlePaymentCompletedRejectsInvalidRateWithoutPersisting(t *testing.T) {
	env := setupLedgerServiceTest(t)
	agent := createLedgerAgent(t, env.db, "bad_rate_agent@example.com", false)
	agentID := agent.ID
	rate := decimal.RequireFromString("1.5")

	_, err := env.payments.HandlePaymentCompleted(PaymentCompletedEvent{
		PaymentID:      "pay_bad_rate",
		UserID:         90,
		AgentID:        &agentID,
		Amount:         decimal.RequireFromString("50.00"),
		CommissionRate: &rate,
	})
	if !errors.Is(err, ErrInvalidCommissionRate) {
		t.Fatalf("expected ErrInvalidCommissionRate, got %v", err)
	}
	var payments int64
	env.db.Model(&models.CoursePayment{}).Count(&payments)
	if payments != 0 {
		t.Fatalf("rejected event must not persist a payment, got %d rows", payments)
	}
}

func createStalePayment(t *testing.T, env *ledgerTestEnv, ref string, agentID uint, rate string, createdAt time.Time) *models.CoursePayment {
	t.Helper()
	payment := &models.CoursePayment{
		PaymentRef:     ref,
		UserID:         77,
		AgentID:        &agentID,
		Amount:         models.NewMoneyFromDecimal(decimal.RequireFromString("40.00")),
		Currency:       "GBP",
		CommissionRate: models.NewRate(decimal.RequireFromString(rate)),
		Status:         constants.CoursePaymentStatusCompleted,
		CreatedAt:      createdAt,
	}
	if err := env.db.Create(payment).Error; err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	return payment
}

func TestReconcileSkipsInvalidRateAndContinues(t *testing.T) {
	env := setupLedgerServiceTest(t)
	agent := createLedgerAgent(t, env.db, "reconcile_rate_agent@example.com", false)
	now := time.Now()

	bad := createStalePayment(t, env, "pay_rate_150", agent.ID, "1.5", now.Add(-time.Hour))
	createStalePayment(t, env, "pay_rate_ok", agent.ID, "0", now.Add(-time.Hour))

	created, err := env.payments.ReconcileMissingCommissions(now)
	if err != nil {
		t.Fatalf("reconcile should skip invalid rate, got %v", err)
	}
	if created != 1 {
		t.Fatalf("expected the valid payment reconciled, got %d", created)
	}

	var reloaded models.CoursePayment
	if err := env.db.First(&reloaded, bad.ID).Error; err != nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if reloaded.CommissionSkippedAt == nil || reloaded.CommissionSkipReason == "" {
		t.Fatalf("invalid payment should be marked skipped, got %+v", reloaded)
	}

	created, err = env.payments.ReconcileMissingCommissions(now)
	if err != nil || created != 0 {
		t.Fatalf("second reconcile should be a no-op, got %d %v", created, err)
	}
}

func TestReconcileReachesPaymentsBehindSkippedBatch(t *testing.T) {
	env := setupLedgerServiceTest(t)
	agent := createLedgerAgent(t, env.db, "reconcile_batch_agent@example.com", false)
	now := time.Now()
	missingAgentID := agent.ID + 10000

	for i := 0; i < reconcileBatchSize+1; i++ {
		createStalePayment(t, env, fmt.Sprintf("pay_orphan_%03d", i), missingAgentID, "0", now.Add(-2*time.Hour))
	}
	createStalePayment(t, env, "pay_behind_batch", agent.ID, "0", now.Add(-time.Hour))

	total := 0
	for run := 0; run < 3; run++ {
		created, err := env.payments.ReconcileMissingCommissions(now)
		if err != nil {
			t.Fatalf("reconcile run %d failed: %v", run, err)
		}
		total += created
	}
	if total != 1 {
		t.Fatalf("expected the payment behind the skipped batch reconciled, got %d", total)
	}
	var skipped int64
	env.db.Model(&models.CoursePayment{}).Where("commission_skipped_at IS NOT NULL").Count(&skipped)
	if skipped != int64(reconcileBatchSize+1) {
		t.Fatalf("expected %d skipped payments, got %d", reconcileBatchSize+1, skipped)
	}
}

package service

import (
	"errors"
	"testing"
	"time"

	"github.com/course-referral/internal/constants"
	"github.com/course-referral/internal/models"
	"github.com/course-referral/internal/repository"

	"github.com/shopspring/decimal"
)

func TestCreateRequestRequiresVerifiedBankDetails(t *testing.T) {
	env := setupLedgerServiceTest(t)
	agent := createLedgerAgent(t, env.db, "req_unverified@example.com", false)
	row := createLedgerCommission(t, env.db, agent.ID, "pay-req-u", "40.00", time.Now())

	_, err := env.requests.CreateRequest(CreatePayoutRequestInput{
		AgentID:       agent.ID,
		Amount:        decimal.RequireFromString("40"),
		CommissionIDs: []uint{row.ID},
	})
	if !errors.Is(err, ErrBankDetailsNotVerified) {
		t.Fatalf("expected ErrBankDetailsNotVerified, got %v", err)
	}
	var count int64
	env.db.Model(&models.PayoutRequest{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no payout request, got %d", count)
	}
}

func TestCreateRequestValidatesCommissions(t *testing.T) {
	env := setupLedgerServiceTest(t)
	agent := createLedgerAgent(t, env.db, "req_owner@example.com", true)
	other := createLedgerAgent(t, env.db, "req_other@example.com", true)
	now := time.Now()
	mine := createLedgerCommission(t, env.db, agent.ID, "pay-own-1", "20.00", now)
	theirs := createLedgerCommission(t, env.db, other.ID, "pay-own-2", "20.00", now)

	if _, err := env.requests.CreateRequest(CreatePayoutRequestInput{
		AgentID:       agent.ID,
		Amount:        decimal.NewFromInt(20),
		CommissionIDs: []uint{theirs.ID},
	}); !errors.Is(err, ErrCommissionNotOwned) {
		t.Fatalf("expected ErrCommissionNotOwned, got %v", err)
	}
	if _, err := env.requests.CreateRequest(CreatePayoutRequestInput{
		AgentID:       agent.ID,
		Amount:        decimal.NewFromInt(25),
		CommissionIDs: []uint{mine.ID},
	}); !errors.Is(err, ErrNoPendingCommission) {
		t.Fatalf("expected ErrNoPendingCommission, got %v", err)
	}
	if _, err := env.requests.CreateRequest(CreatePayoutRequestInput{
		AgentID:       agent.ID,
		Amount:        decimal.NewFromInt(20),
		CommissionIDs: []uint{mine.ID},
	}); err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	if _, err := env.requests.CreateRequest(CreatePayoutRequestInput{
		AgentID:       agent.ID,
		Amount:        decimal.NewFromInt(20),
		CommissionIDs: []uint{mine.ID},
	}); !errors.Is(err, ErrCommissionAlreadyRequested) {
		t.Fatalf("expected ErrCommissionAlreadyRequested, got %v", err)
	}
}

func TestCompletedRequestSettlesReferencedCommissions(t *testing.T) {
	env := setupLedgerServiceTest(t)
	agent := createLedgerAgent(t, env.db, "req_complete@example.com", true)
	base := time.Now().Add(-time.Hour)
	c1 := createLedgerCommission(t, env.db, agent.ID, "pay-rc-1", "50.00", base)
	c2 := createLedgerCommission(t, env.db, agent.ID, "pay-rc-2", "30.00", base.Add(time.Minute))

	req, err := env.requests.CreateRequest(CreatePayoutRequestInput{
		AgentID:       agent.ID,
		Amount:        decimal.RequireFromString("80"),
		CommissionIDs: []uint{c2.ID, c1.ID},
	})
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	if req.Status != constants.PayoutRequestStatusPending {
		t.Fatalf("expected pending request, got %s", req.Status)
	}

	before, err := env.aggregator.AgentSummary(agent.ID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if !before.PendingCommission.Decimal.Equal(decimal.RequireFromString("80")) {
		t.Fatalf("expected pending 80 before completion, got %s", before.PendingCommission.String())
	}

	if _, err := env.requests.ProcessRequest(req.ID, ProcessPayoutRequestInput{Status: constants.PayoutRequestStatusApproved, Actor: Actor{AdminID: 1}}); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	done, err := env.requests.ProcessRequest(req.ID, ProcessPayoutRequestInput{
		Status:          constants.PayoutRequestStatusCompleted,
		PayoutReference: "PR-REF-1",
		AdminNotes:      "sent",
		Actor:           Actor{AdminID: 1},
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if done.Status != constants.PayoutRequestStatusCompleted || done.PayoutReference != "PR-REF-1" || done.ProcessedDate == nil {
		t.Fatalf("unexpected completed request: %+v", done)
	}
	for _, id := range []uint{c1.ID, c2.ID} {
		row := loadLedgerCommission(t, env.db, id)
		if row.Status != constants.CommissionStatusPaid || row.PayoutReference != "PR-REF-1" {
			t.Fatalf("expected commission %d paid via request, got %+v", id, row)
		}
	}

	after, err := env.aggregator.AgentSummary(agent.ID)
	if err != nil {
		t.Fatalf("summary failed: %v", err)
	}
	if !after.PendingCommission.Decimal.IsZero() || !after.PaidCommission.Decimal.Equal(decimal.RequireFromString("80")) {
		t.Fatalf("expected pending 0 / paid 80, got %s / %s", after.PendingCommission.String(), after.PaidCommission.String())
	}
	if got := countLedgerAudit(t, env.db, constants.AuditEntityPayoutRequest, req.ID, constants.AuditActionPayoutCompleted); got != 1 {
		t.Fatalf("expected completion audit row, got %d", got)
	}
}

func TestCompletedRequestWithoutCommissionIDsUsesFIFO(t *testing.T) {
	env := setupLedgerServiceTest(t)
	agent := createLedgerAgent(t, env.db, "req_fifo@example.com", true)
	base := time.Now().Add(-time.Hour)
	c1 := createLedgerCommission(t, env.db, agent.ID, "pay-rf-1", "25.00", base)
	c2 := createLedgerCommission(t, env.db, agent.ID, "pay-rf-2", "25.00", base.Add(time.Minute))

	req, err := env.requests.CreateRequest(CreatePayoutRequestInput{AgentID: agent.ID, Amount: decimal.NewFromInt(25)})
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	done, err := env.requests.ProcessRequest(req.ID, ProcessPayoutRequestInput{
		Status:          constants.PayoutRequestStatusCompleted,
		PayoutReference: "PR-FIFO",
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if len(done.CommissionIDs) != 1 || done.CommissionIDs[0] != c1.ID {
		t.Fatalf("expected oldest commission attached, got %v", done.CommissionIDs)
	}
	if row := loadLedgerCommission(t, env.db, c2.ID); row.Status != constants.CommissionStatusPending {
		t.Fatalf("expected newer commission pending, got %s", row.Status)
	}
}

func TestCompletedRequestRollsBackOnPartialSettlementConflict(t *testing.T) {
	env := setupLedgerServiceTest(t)
	agent := createLedgerAgent(t, env.db, "req_conflict@example.com", true)
	now := time.Now()
	c1 := createLedgerCommission(t, env.db, agent.ID, "pay-pc-1", "10.00", now)
	c2 := createLedgerCommission(t, env.db, agent.ID, "pay-pc-2", "10.00", now)

	req, err := env.requests.CreateRequest(CreatePayoutRequestInput{
		AgentID:       agent.ID,
		Amount:        decimal.NewFromInt(20),
		CommissionIDs: []uint{c1.ID, c2.ID},
	})
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	if _, err := env.commissions.MarkPaid(c2.ID, MarkPaidInput{PayoutMethod: constants.PayoutMethodManual}); err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}

	_, err = env.requests.ProcessRequest(req.ID, ProcessPayoutRequestInput{
		Status:          constants.PayoutRequestStatusCompleted,
		PayoutReference: "PR-CONFLICT",
	})
	if !errors.Is(err, ErrPartialSettlementConflict) {
		t.Fatalf("expected ErrPartialSettlementConflict, got %v", err)
	}
	if row := loadLedgerCommission(t, env.db, c1.ID); row.Status != constants.CommissionStatusPending {
		t.Fatalf("expected c1 rolled back to pending, got %s", row.Status)
	}
	stored, err := env.requests.GetByID(req.ID)
	if err != nil {
		t.Fatalf("get request failed: %v", err)
	}
	if stored.Status != constants.PayoutRequestStatusPending {
		t.Fatalf("expected request still pending, got %s", stored.Status)
	}
}

func TestProcessRequestRejectsFinalizedAndInvalidInput(t *testing.T) {
	env := setupLedgerServiceTest(t)
	agent := createLedgerAgent(t, env.db, "req_final@example.com", true)
	row := createLedgerCommission(t, env.db, agent.ID, "pay-fin-1", "10.00", time.Now())

	req, err := env.requests.CreateRequest(CreatePayoutRequestInput{
		AgentID:       agent.ID,
		Amount:        decimal.NewFromInt(10),
		CommissionIDs: []uint{row.ID},
	})
	if err != nil {
		t.Fatalf("create request failed: %v", err)
	}
	if _, err := env.requests.ProcessRequest(req.ID, ProcessPayoutRequestInput{Status: constants.PayoutRequestStatusCompleted}); !errors.Is(err, ErrPayoutReferenceRequired) {
		t.Fatalf("expected ErrPayoutReferenceRequired, got %v", err)
	}
	if _, err := env.requests.ProcessRequest(req.ID, ProcessPayoutRequestInput{Status: constants.PayoutRequestStatusRejected}); !errors.Is(err, ErrRejectionReasonRequired) {
		t.Fatalf("expected ErrRejectionReasonRequired, got %v", err)
	}
	if _, err := env.requests.ProcessRequest(req.ID, ProcessPayoutRequestInput{Status: "paid"}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	rejected, err := env.requests.ProcessRequest(req.ID, ProcessPayoutRequestInput{
		Status:          constants.PayoutRequestStatusRejected,
		RejectionReason: "bank mismatch",
	})
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.RejectionReason != "bank mismatch" {
		t.Fatalf("expected rejection reason stored, got %q", rejected.RejectionReason)
	}
	if _, err := env.requests.ProcessRequest(req.ID, ProcessPayoutRequestInput{Status: constants.PayoutRequestStatusApproved}); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
	if stored := loadLedgerCommission(t, env.db, row.ID); stored.Status != constants.CommissionStatusPending {
		t.Fatalf("expected commission pending after rejection, got %s", stored.Status)
	}

	// 被拒绝的申请释放佣金，可以重新申请
	if _, err := env.requests.CreateRequest(CreatePayoutRequestInput{
		AgentID:       agent.ID,
		Amount:        decimal.NewFromInt(10),
		CommissionIDs: []uint{row.ID},
	}); err != nil {
		t.Fatalf("re-request after rejection failed: %v", err)
	}

	list, total, summary, err := env.requests.ListRequests(repository.PayoutRequestListFilter{AgentID: agent.ID})
	if err != nil {
		t.Fatalf("list requests failed: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Fatalf("expected 2 requests, got %d/%d", total, len(list))
	}
	if !summary.RejectedAmount.Decimal.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected rejected amount 10, got %s", summary.RejectedAmount.String())
	}
}

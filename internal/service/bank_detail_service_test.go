package service

import (
	"errors"
	"testing"
	"time"

	"github.com/course-referral/internal/constants"

	"github.com/shopspring/decimal"
)

func TestBankDetailsEditResetsVerification(t *testing.T) {
	env := setupLedgerServiceTest(t)
	agent := createLedgerAgent(t, env.db, "bank_edit@example.com", false)
	row := createLedgerCommission(t, env.db, agent.ID, "pay-bank-edit", "30.00", time.Now())

	input := BankDetailsInput{
		BankName:          "Barclays",
		AccountHolderName: "Jane Agent",
		AccountNumber:     "11112222",
		RoutingNumber:     "20-00-00",
		IBAN:              "gb29 nwbk 6016 1331 9268 19",
	}
	details, err := env.bank.SubmitBankDetails(agent.ID, input)
	if err != nil {
		t.Fatalf("submit bank details failed: %v", err)
	}
	if details.IBAN != "GB29NWBK60161331926819" {
		t.Fatalf("expected normalized iban, got %s", details.IBAN)
	}

	verified, err := env.bank.Verify(agent.ID, VerifyBankDetailsInput{IsVerified: true, Notes: "checked", Actor: Actor{AdminID: 4}})
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !verified.IsVerified || verified.VerifiedBy == nil || *verified.VerifiedBy != 4 {
		t.Fatalf("unexpected verified details: %+v", verified)
	}

	// 仅修改开户人姓名不影响验证状态
	input.AccountHolderName = "Jane Q Agent"
	same, err := env.bank.SubmitBankDetails(agent.ID, input)
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if !same.IsVerified {
		t.Fatalf("expected verification kept when identifiers unchanged")
	}

	input.AccountNumber = "99998888"
	reset, err := env.bank.SubmitBankDetails(agent.ID, input)
	if err != nil {
		t.Fatalf("edit account number failed: %v", err)
	}
	if reset.IsVerified || reset.VerifiedAt != nil {
		t.Fatalf("expected verification reset, got %+v", reset)
	}
	ok, err := env.bank.IsVerified(nil, agent.ID)
	if err != nil || ok {
		t.Fatalf("expected stored verification false, got %v (%v)", ok, err)
	}
	if got := countLedgerAudit(t, env.db, constants.AuditEntityBankDetails, agent.ID, constants.AuditActionBankDetailsReset); got != 1 {
		t.Fatalf("expected one reset audit row, got %d", got)
	}

	_, err = env.requests.CreateRequest(CreatePayoutRequestInput{
		AgentID:       agent.ID,
		Amount:        decimal.NewFromInt(30),
		CommissionIDs: []uint{row.ID},
	})
	if !errors.Is(err, ErrBankDetailsNotVerified) {
		t.Fatalf("expected ErrBankDetailsNotVerified after reset, got %v", err)
	}
}

func TestBankDetailsValidation(t *testing.T) {
	env := setupLedgerServiceTest(t)
	agent := createLedgerAgent(t, env.db, "bank_invalid@example.com", false)

	if _, err := env.bank.SubmitBankDetails(agent.ID, BankDetailsInput{BankName: "Only name"}); !errors.Is(err, ErrBankDetailsIncomplete) {
		t.Fatalf("expected ErrBankDetailsIncomplete, got %v", err)
	}
	if _, err := env.bank.SubmitBankDetails(9999, BankDetailsInput{
		BankName:          "Bank",
		AccountHolderName: "Nobody",
		AccountNumber:     "1",
	}); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
	if _, err := env.bank.GetBankDetails(9999); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
	details, err := env.bank.GetBankDetails(agent.ID)
	if err != nil {
		t.Fatalf("get bank details failed: %v", err)
	}
	if details.BankName != "Test Bank" {
		t.Fatalf("unexpected bank details: %+v", details)
	}
}

func TestMaskAccountSuffix(t *testing.T) {
	if got := maskAccountSuffix("12345678", ""); got != "5678" {
		t.Fatalf("expected 5678, got %s", got)
	}
	if got := maskAccountSuffix("", "GB29"); got != "GB29" {
		t.Fatalf("expected GB29, got %s", got)
	}
}

package payout

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

type fakeGateway struct{ method string }

func (f fakeGateway) Method() string { return f.method }

func (f fakeGateway) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	return &TransferResult{ProviderRef: "ok"}, nil
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry(fakeGateway{method: "paypal"}, nil)
	if _, err := registry.Get("paypal"); err != nil {
		t.Fatalf("expected paypal gateway: %v", err)
	}
	if _, err := registry.Get("stripe_payout"); !errors.Is(err, ErrGatewayNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
	var empty *Registry
	if _, err := empty.Get("paypal"); !errors.Is(err, ErrGatewayNotConfigured) {
		t.Fatalf("nil registry should report not configured, got %v", err)
	}
}

func TestTransferRequestValidate(t *testing.T) {
	if err := (TransferRequest{Reference: "r", Amount: decimal.Zero}).Validate(); !errors.Is(err, ErrAmountInvalid) {
		t.Fatalf("expected amount invalid, got %v", err)
	}
	if err := (TransferRequest{Amount: decimal.NewFromInt(1)}).Validate(); err == nil {
		t.Fatalf("expected reference required")
	}
}

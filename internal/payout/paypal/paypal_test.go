package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/course-referral/internal/payout"

	"github.com/shopspring/decimal"
)

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{ClientID: "cid"}); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected config invalid, got %v", err)
	}
	gw, err := New(Config{ClientID: " cid ", ClientSecret: "secret", BaseURL: "https://api-m.sandbox.paypal.com/"})
	if err != nil {
		t.Fatalf("new gateway failed: %v", err)
	}
	if gw.cfg.BaseURL != "https://api-m.sandbox.paypal.com" || gw.cfg.ClientID != "cid" {
		t.Fatalf("config not normalized: %+v", gw.cfg)
	}
}

func TestTransferCreatesPayoutBatch(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			if user, pass, ok := r.BasicAuth(); !ok || user != "cid" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"token-1"}`))
		case "/v1/payments/payouts":
			if r.Header.Get("Authorization") != "Bearer token-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewDecoder(r.Body).Decode(&captured)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"batch_header":{"payout_batch_id":"BATCH-1","batch_status":"PENDING"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	gw, err := New(Config{ClientID: "cid", ClientSecret: "secret", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new gateway failed: %v", err)
	}
	result, err := gw.Transfer(context.Background(), payout.TransferRequest{
		Reference:   "mp-9",
		AgentID:     4,
		Amount:      decimal.RequireFromString("25.5"),
		Currency:    "gbp",
		Destination: payout.Destination{PaypalEmail: "agent@example.com"},
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if result.ProviderRef != "BATCH-1" || result.Status != "pending" {
		t.Fatalf("unexpected result: %+v", result)
	}
	header, _ := captured["sender_batch_header"].(map[string]interface{})
	if header["sender_batch_id"] != "mp-9" {
		t.Fatalf("sender_batch_id should carry reference, got %v", header)
	}
	items, _ := captured["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("expected one payout item, got %d", len(items))
	}
	amount := items[0].(map[string]interface{})["amount"].(map[string]interface{})
	if amount["value"] != "25.50" || amount["currency"] != "GBP" {
		t.Fatalf("unexpected amount: %v", amount)
	}
}

func TestTransferRequiresReceiver(t *testing.T) {
	gw, err := New(Config{ClientID: "cid", ClientSecret: "secret"})
	if err != nil {
		t.Fatalf("new gateway failed: %v", err)
	}
	_, err = gw.Transfer(context.Background(), payout.TransferRequest{Reference: "r", Amount: decimal.NewFromInt(1), Currency: "GBP"})
	if !errors.Is(err, payout.ErrDestinationMissing) {
		t.Fatalf("expected destination missing, got %v", err)
	}
}

package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/course-referral/internal/payout"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresSecretKey(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfigInvalid))
}

func TestToMinorAmount(t *testing.T) {
	minor, err := toMinorAmount(decimal.RequireFromString("80.50"), "GBP")
	require.NoError(t, err)
	assert.Equal(t, int64(8050), minor)

	minor, err = toMinorAmount(decimal.RequireFromString("1200"), "jpy")
	require.NoError(t, err)
	assert.Equal(t, int64(1200), minor)

	_, err = toMinorAmount(decimal.Zero, "GBP")
	assert.ErrorIs(t, err, payout.ErrAmountInvalid)
}

func TestTransferPostsToStripe(t *testing.T) {
	var gotPath, gotIdempotency, gotDestination, gotAmount string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotIdempotency = r.Header.Get("Idempotency-Key")
		_ = r.ParseForm()
		gotDestination = r.PostForm.Get("destination")
		gotAmount = r.PostForm.Get("amount")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"tr_123","object":"transfer","amount":8000,"currency":"gbp","destination":"acct_1"}`))
	}))
	defer server.Close()

	gw, err := New(Config{SecretKey: "sk_test_123", BackendURL: server.URL})
	require.NoError(t, err)

	result, err := gw.Transfer(context.Background(), payout.TransferRequest{
		Reference:   "bulk-ref-1",
		AgentID:     3,
		Amount:      decimal.RequireFromString("80"),
		Currency:    "GBP",
		Destination: payout.Destination{StripeAccountID: "acct_1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "tr_123", result.ProviderRef)
	assert.Equal(t, "/v1/transfers", gotPath)
	assert.Equal(t, "bulk-ref-1", gotIdempotency)
	assert.Equal(t, "acct_1", gotDestination)
	assert.Equal(t, "8000", gotAmount)
}

func TestTransferRequiresConnectedAccount(t *testing.T) {
	gw, err := New(Config{SecretKey: "sk_test_123"})
	require.NoError(t, err)
	_, err = gw.Transfer(context.Background(), payout.TransferRequest{
		Reference: "r",
		Amount:    decimal.NewFromInt(10),
		Currency:  "GBP",
	})
	assert.ErrorIs(t, err, payout.ErrDestinationMissing)
}

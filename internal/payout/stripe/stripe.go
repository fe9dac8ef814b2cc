package stripe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/course-referral/internal/payout"

	"github.com/shopspring/decimal"
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/transfer"
)

const method = "stripe_payout"

var ErrConfigInvalid = errors.New("stripe payout config invalid")

// Config Stripe Connect 转账配置
type Config struct {
	SecretKey string
	// BackendURL 仅测试时覆盖 API 地址
	BackendURL string
}

// Gateway 通过 Stripe Connect Transfer 打款到代理的关联账户
type Gateway struct {
	client transfer.Client
}

// New 创建网关
func New(cfg Config) (*Gateway, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" {
		return nil, fmt.Errorf("%w: secret_key is required", ErrConfigInvalid)
	}
	backendCfg := &stripeapi.BackendConfig{}
	if url := strings.TrimSpace(cfg.BackendURL); url != "" {
		backendCfg.URL = stripeapi.String(url)
	}
	return &Gateway{
		client: transfer.Client{
			B:   stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendCfg),
			Key: key,
		},
	}, nil
}

// Method 结算方式
func (g *Gateway) Method() string {
	return method
}

// Transfer 发起转账，Reference 作为幂等键
func (g *Gateway) Transfer(ctx context.Context, req payout.TransferRequest) (*payout.TransferResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	account := strings.TrimSpace(req.Destination.StripeAccountID)
	if account == "" {
		return nil, payout.ErrDestinationMissing
	}
	minor, err := toMinorAmount(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	params := &stripeapi.TransferParams{
		Amount:        stripeapi.Int64(minor),
		Currency:      stripeapi.String(strings.ToLower(strings.TrimSpace(req.Currency))),
		Destination:   stripeapi.String(account),
		TransferGroup: stripeapi.String(req.Reference),
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		params.Description = stripeapi.String(note)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.Reference)
	params.AddMetadata("agent_id", strconv.FormatUint(uint64(req.AgentID), 10))
	params.AddMetadata("reference", req.Reference)

	tr, err := g.client.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe transfer failed: %w", err)
	}
	return &payout.TransferResult{
		ProviderRef: tr.ID,
		Status:      "succeeded",
		Raw: map[string]interface{}{
			"id":          tr.ID,
			"amount":      tr.Amount,
			"destination": account,
		},
	}, nil
}

func toMinorAmount(amount decimal.Decimal, currency string) (int64, error) {
	scale := currencyScale(currency)
	minor := amount.Shift(int32(scale)).Round(0)
	if minor.LessThanOrEqual(decimal.Zero) {
		return 0, payout.ErrAmountInvalid
	}
	return minor.IntPart(), nil
}

func currencyScale(currency string) int {
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case "JPY", "KRW", "VND":
		return 0
	default:
		return 2
	}
}

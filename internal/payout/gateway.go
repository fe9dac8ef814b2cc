package payout

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrGatewayNotConfigured = errors.New("payout gateway not configured")
	ErrDestinationMissing   = errors.New("payout destination missing")
	ErrAmountInvalid        = errors.New("payout amount invalid")
)

// Destination 收款目标（按渠道取对应字段）
type Destination struct {
	StripeAccountID string
	PaypalEmail     string
}

// TransferRequest 外部打款请求
type TransferRequest struct {
	// Reference 幂等键，同一笔台账打款重试时保持不变
	Reference   string
	AgentID     uint
	Amount      decimal.Decimal
	Currency    string
	Destination Destination
	Note        string
}

// TransferResult 外部打款结果
type TransferResult struct {
	ProviderRef string
	Status      string
	Raw         map[string]interface{}
}

// Gateway 外部打款网关
type Gateway interface {
	Method() string
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

// Registry 按结算方式索引的网关集合
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry 创建网关集合，nil 网关会被忽略
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, gw := range gateways {
		if gw == nil {
			continue
		}
		r.gateways[strings.TrimSpace(gw.Method())] = gw
	}
	return r
}

// Get 获取网关
func (r *Registry) Get(method string) (Gateway, error) {
	if r == nil {
		return nil, ErrGatewayNotConfigured
	}
	gw, ok := r.gateways[strings.TrimSpace(method)]
	if !ok {
		return nil, ErrGatewayNotConfigured
	}
	return gw, nil
}

// Validate 校验请求通用字段
func (req TransferRequest) Validate() error {
	if req.Amount.Round(2).LessThanOrEqual(decimal.Zero) {
		return ErrAmountInvalid
	}
	if strings.TrimSpace(req.Reference) == "" {
		return errors.New("payout reference required")
	}
	return nil
}

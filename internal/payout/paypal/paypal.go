package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/course-referral/internal/payout"
)

var (
	ErrConfigInvalid   = errors.New("paypal payout config invalid")
	ErrAuthFailed      = errors.New("paypal auth failed")
	ErrRequestFailed   = errors.New("paypal request failed")
	ErrResponseInvalid = errors.New("paypal response invalid")
)

const (
	method                = "paypal"
	defaultSandboxBaseURL = "https://api-m.sandbox.paypal.com"
	defaultTimeout        = 15 * time.Second
)

// Config PayPal Payouts 配置
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	Timeout      time.Duration
}

// Gateway PayPal Payouts 网关
type Gateway struct {
	cfg        Config
	httpClient *http.Client
}

// New 创建网关
func New(cfg Config) (*Gateway, error) {
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSandboxBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_id and client_secret are required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: base_url is invalid", ErrConfigInvalid)
	}
	return &Gateway{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}, nil
}

// Method 结算方式
func (g *Gateway) Method() string {
	return method
}

// Transfer 创建单笔 Payouts 批次，sender_batch_id 使用 Reference 保证幂等
func (g *Gateway) Transfer(ctx context.Context, req payout.TransferRequest) (*payout.TransferResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	receiver := strings.TrimSpace(req.Destination.PaypalEmail)
	if receiver == "" {
		return nil, payout.ErrDestinationMissing
	}

	token, err := g.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	note := strings.TrimSpace(req.Note)
	if note == "" {
		note = "Referral commission payout"
	}
	payload := map[string]interface{}{
		"sender_batch_header": map[string]string{
			"sender_batch_id": req.Reference,
			"email_subject":   "You have a payout",
		},
		"items": []map[string]interface{}{
			{
				"recipient_type": "EMAIL",
				"receiver":       receiver,
				"note":           note,
				"sender_item_id": req.Reference + "-" + strconv.FormatUint(uint64(req.AgentID), 10),
				"amount": map[string]string{
					"currency": strings.ToUpper(strings.TrimSpace(req.Currency)),
					"value":    req.Amount.Round(2).StringFixed(2),
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request failed", ErrRequestFailed)
	}

	respBody, statusCode, err := g.doJSONRequest(ctx, http.MethodPost, "/v1/payments/payouts", token, body)
	if err != nil {
		return nil, err
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, fmt.Errorf("%w: create payout status %d", ErrResponseInvalid, statusCode)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	batchID := strings.TrimSpace(readString(raw, "batch_header", "payout_batch_id"))
	if batchID == "" {
		return nil, fmt.Errorf("%w: missing payout_batch_id", ErrResponseInvalid)
	}
	return &payout.TransferResult{
		ProviderRef: batchID,
		Status:      strings.ToLower(readString(raw, "batch_header", "batch_status")),
		Raw:         raw,
	}, nil
}

func (g *Gateway) getAccessToken(ctx context.Context) (string, error) {
	values := url.Values{}
	values.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/oauth2/token", strings.NewReader(values.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: build token request failed", ErrAuthFailed)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(g.cfg.ClientID, g.cfg.ClientSecret)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: request token failed", ErrAuthFailed)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read token response failed", ErrAuthFailed)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: token status %d", ErrAuthFailed, resp.StatusCode)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode token response failed", ErrAuthFailed)
	}
	token := strings.TrimSpace(readString(parsed, "access_token"))
	if token == "" {
		return "", fmt.Errorf("%w: access_token is empty", ErrAuthFailed)
	}
	return token, nil
}

func (g *Gateway) doJSONRequest(ctx context.Context, method, endpoint, token string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: http request failed", ErrRequestFailed)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response failed", ErrRequestFailed)
	}
	return respBody, resp.StatusCode, nil
}

func readString(raw map[string]interface{}, path ...string) string {
	var current interface{} = raw
	for _, seg := range path {
		next, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current = next[seg]
	}
	switch v := current.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

package queue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/course-referral/internal/config"
	"github.com/course-referral/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault
	// PayoutQueue 外部打款队列
	PayoutQueue = constants.QueuePayout

	defaultMaxRetry = 8
)

// Client 队列客户端封装
type Client struct {
	client   *asynq.Client
	enabled  bool
	maxRetry int
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{enabled: false}, nil
	}
	maxRetry := cfg.MaxRetry
	if maxRetry <= 0 {
		maxRetry = defaultMaxRetry
	}
	return &Client{
		client:   asynq.NewClient(buildRedisOpt(cfg)),
		enabled:  true,
		maxRetry: maxRetry,
	}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueCommissionCreate 推送佣金创建任务；以支付ID去重
func (c *Client) EnqueueCommissionCreate(payload CommissionCreatePayload) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewCommissionCreateTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.Enqueue(task,
		asynq.Queue(DefaultQueue),
		asynq.MaxRetry(c.maxRetry),
		asynq.TaskID("commission:"+strings.TrimSpace(payload.PaymentID)),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// EnqueuePayoutDispatch 推送外部打款任务（台账事务提交后调用）
func (c *Client) EnqueuePayoutDispatch(payload PayoutDispatchPayload) error {
	if !c.Enabled() {
		return nil
	}
	task, err := NewPayoutDispatchTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.Enqueue(task,
		asynq.Queue(PayoutQueue),
		asynq.MaxRetry(c.maxRetry),
		asynq.TaskID("payout:"+strings.TrimSpace(payload.Reference)),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// EnqueueSummaryInvalidate 推送汇总缓存清理任务
func (c *Client) EnqueueSummaryInvalidate(payload SummaryInvalidatePayload) error {
	if !c.Enabled() || len(payload.AgentIDs) == 0 {
		return nil
	}
	task, err := NewSummaryInvalidateTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.Enqueue(task, asynq.Queue(DefaultQueue), asynq.MaxRetry(3))
	return err
}

// BuildServerConfig 生成队列服务配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	opt := buildRedisOpt(cfg)
	concurrency := 10
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	queues := map[string]int{DefaultQueue: 2, PayoutQueue: 1}
	if cfg != nil && len(cfg.Queues) > 0 {
		queues = cfg.Queues
	}
	return opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	host := "127.0.0.1"
	port := 6379
	password := ""
	db := 0
	if cfg != nil {
		if strings.TrimSpace(cfg.Host) != "" {
			host = strings.TrimSpace(cfg.Host)
		}
		if cfg.Port > 0 {
			port = cfg.Port
		}
		password = cfg.Password
		db = cfg.DB
	}
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	}
}

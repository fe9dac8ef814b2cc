package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/course-referral/internal/cache"
	"github.com/course-referral/internal/logger"
	"github.com/course-referral/internal/provider"
	"github.com/course-referral/internal/queue"
	"github.com/course-referral/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCommissionCreate, c.handleCommissionCreate)
	mux.HandleFunc(queue.TaskPayoutDispatch, c.handlePayoutDispatch)
	mux.HandleFunc(queue.TaskSummaryInvalidate, c.handleSummaryInvalidate)
}

func (c *Consumer) handleCommissionCreate(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_commission_create_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CommissionCreatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_commission_create_unmarshal_failed", "error", err)
		return err
	}
	if strings.TrimSpace(payload.PaymentID) == "" || payload.AgentID == 0 {
		logger.Debugw("worker_commission_create_skip_invalid_payload",
			"payment_id", payload.PaymentID,
			"agent_id", payload.AgentID,
		)
		return nil
	}
	if c.PaymentEventService == nil {
		logger.Warnw("worker_commission_create_skip_service_nil", "payment_id", payload.PaymentID)
		return nil
	}
	err := c.PaymentEventService.ProcessCommissionTask(payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAgent), errors.Is(err, service.ErrAgentNotFound):
			logger.Warnw("worker_commission_create_skip_not_agent",
				"payment_id", payload.PaymentID,
				"agent_id", payload.AgentID,
			)
			return nil
		case errors.Is(err, service.ErrZeroAmount), errors.Is(err, service.ErrInvalidCommissionRate):
			logger.Warnw("worker_commission_create_skip_invalid_amount", "payment_id", payload.PaymentID, "error", err)
			return nil
		default:
			logger.Warnw("worker_commission_create_failed", "payment_id", payload.PaymentID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handlePayoutDispatch(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payout_dispatch_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PayoutDispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payout_dispatch_unmarshal_failed", "error", err)
		return err
	}
	if payload.AgentID == 0 || strings.TrimSpace(payload.Method) == "" {
		logger.Debugw("worker_payout_dispatch_skip_invalid_payload",
			"agent_id", payload.AgentID,
			"method", payload.Method,
		)
		return nil
	}
	if c.PayoutExecutor == nil {
		logger.Warnw("worker_payout_dispatch_skip_executor_nil", "reference", payload.Reference)
		return nil
	}
	if err := c.PayoutExecutor.RunDispatch(ctx, payload); err != nil {
		if errors.Is(err, service.ErrPayoutGatewayUnavailable) {
			// 网关未配置，重试无意义
			logger.Warnw("worker_payout_dispatch_skip_gateway_unavailable",
				"method", payload.Method,
				"reference", payload.Reference,
			)
			return nil
		}
		logger.Warnw("worker_payout_dispatch_failed",
			"method", payload.Method,
			"agent_id", payload.AgentID,
			"reference", payload.Reference,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleSummaryInvalidate(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		return nil
	}
	var payload queue.SummaryInvalidatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_summary_invalidate_unmarshal_failed", "error", err)
		return err
	}
	if err := cache.InvalidateSummaries(ctx, payload.AgentIDs...); err != nil {
		logger.Warnw("worker_summary_invalidate_failed", "agent_ids", payload.AgentIDs, "error", err)
		return err
	}
	return nil
}

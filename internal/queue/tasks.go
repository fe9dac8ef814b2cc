package queue

import (
	"encoding/json"

	"github.com/course-referral/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCommissionCreate 支付完成后创建佣金任务
	TaskCommissionCreate = constants.TaskCommissionCreate
	// TaskPayoutDispatch 外部打款任务
	TaskPayoutDispatch = constants.TaskPayoutDispatch
	// TaskSummaryInvalidate 汇总缓存清理任务
	TaskSummaryInvalidate = constants.TaskSummaryInvalidate
)

// CommissionCreatePayload 佣金创建任务载荷（来自课程支付完成事件）
type CommissionCreatePayload struct {
	PaymentID      string `json:"payment_id"`
	AgentID        uint   `json:"agent_id"`
	ReferralUserID uint   `json:"referral_user_id"`
	Amount         string `json:"amount"`
	CommissionRate string `json:"commission_rate,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
}

// PayoutDispatchPayload 外部打款任务载荷
type PayoutDispatchPayload struct {
	Method         string `json:"method"`
	AgentID        uint   `json:"agent_id"`
	Amount         string `json:"amount"`
	ManualPayoutID uint   `json:"manual_payout_id,omitempty"`
	CommissionIDs  []uint `json:"commission_ids,omitempty"`
	Reference      string `json:"reference"`
	AdminID        uint   `json:"admin_id,omitempty"`
}

// SummaryInvalidatePayload 汇总缓存清理载荷
type SummaryInvalidatePayload struct {
	AgentIDs []uint `json:"agent_ids"`
}

// NewCommissionCreateTask 创建佣金任务
func NewCommissionCreateTask(payload CommissionCreatePayload) (*asynq.Task, error) {
	return newJSONTask(TaskCommissionCreate, payload)
}

// NewPayoutDispatchTask 创建外部打款任务
func NewPayoutDispatchTask(payload PayoutDispatchPayload) (*asynq.Task, error) {
	return newJSONTask(TaskPayoutDispatch, payload)
}

// NewSummaryInvalidateTask 创建汇总缓存清理任务
func NewSummaryInvalidateTask(payload SummaryInvalidatePayload) (*asynq.Task, error) {
	return newJSONTask(TaskSummaryInvalidate, payload)
}

func newJSONTask(taskType string, payload interface{}) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}

package queue

import (
	"encoding/json"
	"testing"

	"github.com/course-referral/internal/config"
)

func TestNewPayoutDispatchTaskEncodesPayload(t *testing.T) {
	task, err := NewPayoutDispatchTask(PayoutDispatchPayload{
		Method:        "paypal",
		AgentID:       7,
		Amount:        "80.00",
		CommissionIDs: []uint{1, 2},
		Reference:     "bulk-abc",
	})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if task.Type() != TaskPayoutDispatch {
		t.Fatalf("unexpected task type: %s", task.Type())
	}
	var decoded PayoutDispatchPayload
	if err := json.Unmarshal(task.Payload(), &decoded); err != nil {
		t.Fatalf("decode payload failed: %v", err)
	}
	if decoded.AgentID != 7 || len(decoded.CommissionIDs) != 2 || decoded.Reference != "bulk-abc" {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestDisabledClientIsNoop(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("expected disabled client")
	}
	if err := client.EnqueueCommissionCreate(CommissionCreatePayload{PaymentID: "pay_1"}); err != nil {
		t.Fatalf("disabled enqueue should be noop: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	_, cfg := BuildServerConfig(nil)
	if cfg.Concurrency != 10 {
		t.Fatalf("unexpected concurrency: %d", cfg.Concurrency)
	}
	if cfg.Queues[PayoutQueue] != 1 || cfg.Queues[DefaultQueue] != 2 {
		t.Fatalf("unexpected queues: %+v", cfg.Queues)
	}
}

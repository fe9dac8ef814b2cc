package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	UseClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() {
		_ = Close()
		mr.Close()
	})
	return mr
}

func TestSummaryRoundTripAndInvalidate(t *testing.T) {
	mr := setupTestRedis(t)
	ctx := context.Background()

	type payload struct {
		Pending string `json:"pending"`
	}
	agentKey, err := ResolveSummaryKey(ctx, AgentSummaryKey(7))
	require.NoError(t, err)
	assert.Equal(t, "summary:agent:7:v0", agentKey)
	require.NoError(t, SetSummary(ctx, agentKey, payload{Pending: "80.00"}, time.Minute))
	assert.True(t, mr.Exists("test:summary:agent:7:v0"))

	var got payload
	hit, err := GetSummary(ctx, agentKey, &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "80.00", got.Pending)

	require.NoError(t, InvalidateSummaries(ctx, 7, 0))
	agentKey, err = ResolveSummaryKey(ctx, AgentSummaryKey(7))
	require.NoError(t, err)
	assert.Equal(t, "summary:agent:7:v1", agentKey)
	systemKey, err := ResolveSummaryKey(ctx, SystemSummaryKey())
	require.NoError(t, err)
	assert.Equal(t, "summary:system:v1", systemKey)

	hit, err = GetSummary(ctx, agentKey, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStaleWriteAfterInvalidateIsNotRead(t *testing.T) {
	setupTestRedis(t)
	ctx := context.Background()

	// 读者在失效前解析键并开始计算
	readerKey, err := ResolveSummaryKey(ctx, AgentSummaryKey(9))
	require.NoError(t, err)
	require.NoError(t, InvalidateSummaries(ctx, 9))
	// 失效后写回旧结果
	require.NoError(t, SetSummary(ctx, readerKey, map[string]string{"pending": "50.00"}, time.Minute))

	currentKey, err := ResolveSummaryKey(ctx, AgentSummaryKey(9))
	require.NoError(t, err)
	var got map[string]string
	hit, err := GetSummary(ctx, currentKey, &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestSetSummarySkipsWhenTTLDisabled(t *testing.T) {
	mr := setupTestRedis(t)
	require.NoError(t, SetSummary(context.Background(), AgentSummaryKey(1), map[string]string{"a": "b"}, 0))
	assert.False(t, mr.Exists("test:summary:agent:1"))
}

func TestDisabledCacheIsNoop(t *testing.T) {
	_ = Close()
	hit, err := GetJSON(context.Background(), "anything", &struct{}{})
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, InvalidateSummaries(context.Background(), 3))
}

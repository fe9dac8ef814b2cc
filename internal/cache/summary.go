package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const systemSummaryKey = "summary:system"

// AgentSummaryKey 代理汇总缓存键（不含代次）
func AgentSummaryKey(agentID uint) string {
	return fmt.Sprintf("summary:agent:%d", agentID)
}

// SystemSummaryKey 全局汇总缓存键（不含代次）
func SystemSummaryKey() string {
	return systemSummaryKey
}

func summaryGenerationKey(base string) string {
	return base + ":gen"
}

// ResolveSummaryKey 返回当前代次的汇总缓存键
// 失效只递增代次，失效前开始计算的旧结果写回旧代次键，不会再被读到。
// 须在读库之前调用。
func ResolveSummaryKey(ctx context.Context, base string) (string, error) {
	if !Enabled() {
		return base, nil
	}
	gen, err := redisClient.Get(ctx, BuildKey(summaryGenerationKey(base))).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", base, gen), nil
}

// GetSummary 读取汇总缓存；空键视为未命中
func GetSummary(ctx context.Context, key string, dest interface{}) (bool, error) {
	if key == "" {
		return false, nil
	}
	return GetJSON(ctx, key, dest)
}

// SetSummary 写入汇总缓存
func SetSummary(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 || key == "" {
		return nil
	}
	return SetJSON(ctx, key, value, ttl)
}

// InvalidateSummaries 递增代理汇总与全局汇总的代次，旧代次键随 TTL 过期
func InvalidateSummaries(ctx context.Context, agentIDs ...uint) error {
	if !Enabled() {
		return nil
	}
	bases := make([]string, 0, len(agentIDs)+1)
	bases = append(bases, systemSummaryKey)
	for _, id := range agentIDs {
		if id == 0 {
			continue
		}
		bases = append(bases, AgentSummaryKey(id))
	}
	_, err := redisClient.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, base := range bases {
			pipe.Incr(ctx, BuildKey(summaryGenerationKey(base)))
		}
		return nil
	})
	return err
}

package service

import (
	"context"
	"time"

	"github.com/course-referral/internal/cache"
	"github.com/course-referral/internal/logger"
	"github.com/course-referral/internal/models"
	"github.com/course-referral/internal/repository"
)

// AgentSummary 代理佣金汇总
type AgentSummary struct {
	AgentID             uint         `json:"agentId"`
	AgentName           string       `json:"agentName,omitempty"`
	AgentEmail          string       `json:"agentEmail,omitempty"`
	TotalCommission     models.Money `json:"totalCommission"`
	PendingCommission   models.Money `json:"pendingCommission"`
	PaidCommission      models.Money `json:"paidCommission"`
	CancelledCommission models.Money `json:"cancelledCommission"`
	CommissionCount     int64        `json:"commissionCount"`
	ReferralCount       int64        `json:"referralCount"`
}

// SystemSummary 全局汇总
type SystemSummary struct {
	TotalRevenue      models.Money `json:"totalRevenue"`
	TotalPayments     int64        `json:"totalPayments"`
	ReferralPayments  int64        `json:"referralPayments"`
	TotalCommissions  int64        `json:"totalCommissions"`
	TotalCommission   models.Money `json:"totalCommission"`
	PendingCommission models.Money `json:"pendingCommission"`
	PaidCommission    models.Money `json:"paidCommission"`
}

// CommissionListSummary 佣金列表汇总（与列表同过滤条件）
type CommissionListSummary struct {
	TotalCommission   models.Money `json:"totalCommission"`
	PendingCommission models.Money `json:"pendingCommission"`
	PaidCommission    models.Money `json:"paidCommission"`
	TotalCommissions  int64        `json:"totalCommissions"`
}

// AggregatorService 佣金汇总服务，全部由台账实时推导，缓存仅作读穿透
type AggregatorService struct {
	commissionRepo repository.CommissionRepository
	paymentRepo    repository.PaymentRepository
	userRepo       repository.UserRepository
	cacheTTL       time.Duration
}

// NewAggregatorService 创建汇总服务
func NewAggregatorService(
	commissionRepo repository.CommissionRepository,
	paymentRepo repository.PaymentRepository,
	userRepo repository.UserRepository,
	cacheTTL time.Duration,
) *AggregatorService {
	return &AggregatorService{
		commissionRepo: commissionRepo,
		paymentRepo:    paymentRepo,
		userRepo:       userRepo,
		cacheTTL:       cacheTTL,
	}
}

// AgentSummary 查询单个代理汇总
func (s *AggregatorService) AgentSummary(agentID uint) (*AgentSummary, error) {
	if agentID == 0 {
		return nil, ErrAgentNotFound
	}
	ctx := context.Background()
	key, err := cache.ResolveSummaryKey(ctx, cache.AgentSummaryKey(agentID))
	if err != nil {
		logger.Warnw("summary_cache_key_failed", "error", err)
	}
	var cached AgentSummary
	if hit, err := cache.GetSummary(ctx, key, &cached); err != nil {
		logger.Warnw("summary_cache_get_failed", "key", key, "error", err)
	} else if hit {
		return &cached, nil
	}

	agg, err := s.commissionRepo.AggregateByAgent(agentID)
	if err != nil {
		return nil, err
	}
	summary := buildAgentSummary(agg)
	if err := cache.SetSummary(ctx, key, summary, s.cacheTTL); err != nil {
		logger.Warnw("summary_cache_set_failed", "key", key, "error", err)
	}
	return &summary, nil
}

// AgentSummaries 按过滤条件返回每个代理的汇总（管理端佣金列表使用）
func (s *AggregatorService) AgentSummaries(filter repository.CommissionListFilter) ([]AgentSummary, error) {
	rows, err := s.commissionRepo.AggregateByAgents(filter)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []AgentSummary{}, nil
	}
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.AgentID)
	}
	users, err := s.userRepo.ListByIDs(ids)
	if err != nil {
		return nil, err
	}
	userMap := make(map[uint]models.User, len(users))
	for _, user := range users {
		userMap[user.ID] = user
	}

	result := make([]AgentSummary, 0, len(rows))
	for _, row := range rows {
		item := buildAgentSummary(row)
		if user, ok := userMap[row.AgentID]; ok {
			item.AgentName = user.DisplayName
			item.AgentEmail = user.Email
		}
		result = append(result, item)
	}
	return result, nil
}

// TopAgents 按已结算+待结算佣金排序的代理榜
func (s *AggregatorService) TopAgents(limit int) ([]AgentSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	rows, err := s.commissionRepo.TopAgents(limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.AgentID)
	}
	users, err := s.userRepo.ListByIDs(ids)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]models.User, len(users))
	for _, user := range users {
		names[user.ID] = user
	}
	result := make([]AgentSummary, 0, len(rows))
	for _, row := range rows {
		item := buildAgentSummary(row)
		item.AgentName = names[row.AgentID].DisplayName
		item.AgentEmail = names[row.AgentID].Email
		result = append(result, item)
	}
	return result, nil
}

// SystemSummary 全局汇总
func (s *AggregatorService) SystemSummary() (*SystemSummary, error) {
	ctx := context.Background()
	key, err := cache.ResolveSummaryKey(ctx, cache.SystemSummaryKey())
	if err != nil {
		logger.Warnw("summary_cache_key_failed", "error", err)
	}
	var cached SystemSummary
	if hit, err := cache.GetSummary(ctx, key, &cached); err != nil {
		logger.Warnw("summary_cache_get_failed", "key", key, "error", err)
	} else if hit {
		return &cached, nil
	}

	commissionAgg, err := s.commissionRepo.Aggregate(repository.CommissionListFilter{})
	if err != nil {
		return nil, err
	}
	paymentAgg, err := s.paymentRepo.Aggregate()
	if err != nil {
		return nil, err
	}
	summary := SystemSummary{
		TotalRevenue:      models.NewMoneyFromDecimal(paymentAgg.TotalRevenue),
		TotalPayments:     paymentAgg.TotalPayments,
		ReferralPayments:  paymentAgg.ReferralPayments,
		TotalCommissions:  commissionAgg.TotalCount,
		TotalCommission:   models.NewMoneyFromDecimal(commissionAgg.TotalCommission),
		PendingCommission: models.NewMoneyFromDecimal(commissionAgg.PendingCommission),
		PaidCommission:    models.NewMoneyFromDecimal(commissionAgg.PaidCommission),
	}
	if err := cache.SetSummary(ctx, key, summary, s.cacheTTL); err != nil {
		logger.Warnw("summary_cache_set_failed", "key", key, "error", err)
	}
	return &summary, nil
}

// CommissionListSummary 佣金列表汇总
func (s *AggregatorService) CommissionListSummary(filter repository.CommissionListFilter) (*CommissionListSummary, error) {
	agg, err := s.commissionRepo.Aggregate(filter)
	if err != nil {
		return nil, err
	}
	return &CommissionListSummary{
		TotalCommission:   models.NewMoneyFromDecimal(agg.TotalCommission),
		PendingCommission: models.NewMoneyFromDecimal(agg.PendingCommission),
		PaidCommission:    models.NewMoneyFromDecimal(agg.PaidCommission),
		TotalCommissions:  agg.TotalCount,
	}, nil
}

// InvalidateAgents 状态变更后递增汇总缓存代次
func (s *AggregatorService) InvalidateAgents(agentIDs ...uint) {
	if s == nil {
		return
	}
	if err := cache.InvalidateSummaries(context.Background(), agentIDs...); err != nil {
		logger.Warnw("summary_cache_invalidate_failed", "agent_ids", agentIDs, "error", err)
	}
}

func buildAgentSummary(agg repository.AgentCommissionAggregate) AgentSummary {
	return AgentSummary{
		AgentID:             agg.AgentID,
		TotalCommission:     models.NewMoneyFromDecimal(agg.TotalCommission),
		PendingCommission:   models.NewMoneyFromDecimal(agg.PendingCommission),
		PaidCommission:      models.NewMoneyFromDecimal(agg.PaidCommission),
		CancelledCommission: models.NewMoneyFromDecimal(agg.CancelledCommission),
		CommissionCount:     agg.TotalCount,
		ReferralCount:       agg.ReferralCount,
	}
}

package service

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/course-referral/internal/cache"
	"github.com/course-referral/internal/constants"
	"github.com/course-referral/internal/logger"
	"github.com/course-referral/internal/models"
	"github.com/course-referral/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	referralCodeLength      = 8
	referralCodeMaxAttempts = 5
	referralCodeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// UserAdminService 管理端用户与代理管理
type UserAdminService struct {
	userRepo    repository.UserRepository
	defaultRate decimal.Decimal
}

// NewUserAdminService 创建用户管理服务
func NewUserAdminService(userRepo repository.UserRepository, defaultRate decimal.Decimal) *UserAdminService {
	return &UserAdminService{userRepo: userRepo, defaultRate: defaultRate}
}

// UpdateRoleInput 调整角色/佣金比例输入
type UpdateRoleInput struct {
	Role           string
	CommissionRate *decimal.Decimal
}

// ReferralCodeInfo 推荐码校验结果
type ReferralCodeInfo struct {
	Valid     bool   `json:"valid"`
	Code      string `json:"code"`
	AgentName string `json:"agent_name,omitempty"`
}

// ListUsers 用户列表
func (s *UserAdminService) ListUsers(filter repository.UserListFilter) ([]models.User, int64, error) {
	return s.userRepo.List(filter)
}

// ApproveAgent 审核通过代理并分配推荐码
func (s *UserAdminService) ApproveAgent(userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	updates := map[string]interface{}{
		"role":         constants.UserRoleAgent,
		"agent_status": constants.AgentStatusApproved,
		"updated_at":   time.Now(),
	}
	if user.CommissionRate.Decimal.IsZero() && s.defaultRate.GreaterThan(decimal.Zero) {
		updates["commission_rate"] = models.NewRate(s.defaultRate)
	}
	if user.ReferralCode == nil || strings.TrimSpace(*user.ReferralCode) == "" {
		code, err := s.assignReferralCode(userID)
		if err != nil {
			return nil, err
		}
		user.ReferralCode = &code
	}
	if err := s.userRepo.UpdateFields(userID, updates); err != nil {
		return nil, err
	}
	_ = cache.DelUserAuthState(context.Background(), userID)
	logger.Infow("agent_approved", "user_id", userID, "referral_code", *user.ReferralCode)
	return s.userRepo.GetByID(userID)
}

// UpdateRole 调整角色与佣金比例；比例变更只影响之后创建的佣金
func (s *UserAdminService) UpdateRole(userID uint, input UpdateRoleInput) (*models.User, error) {
	role := strings.ToLower(strings.TrimSpace(input.Role))
	switch role {
	case constants.UserRoleUser, constants.UserRoleAgent, constants.UserRoleAdmin:
	default:
		return nil, ErrInvalidRole
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	updates := map[string]interface{}{
		"role":       role,
		"updated_at": time.Now(),
	}
	if role == constants.UserRoleAgent {
		updates["agent_status"] = constants.AgentStatusApproved
		if user.ReferralCode == nil {
			if _, err := s.assignReferralCode(userID); err != nil {
				return nil, err
			}
		}
	}
	if input.CommissionRate != nil {
		rate, err := normalizeCommissionRate(*input.CommissionRate)
		if err != nil {
			return nil, err
		}
		updates["commission_rate"] = models.NewRate(rate)
	}
	if err := s.userRepo.UpdateFields(userID, updates); err != nil {
		return nil, err
	}
	_ = cache.DelUserAuthState(context.Background(), userID)
	return s.userRepo.GetByID(userID)
}

// GetReferralCode 获取代理推荐码，未分配时即时分配
func (s *UserAdminService) GetReferralCode(agentID uint) (string, error) {
	user, err := s.userRepo.GetByID(agentID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrNotFound
	}
	if !user.IsAgent() {
		return "", ErrNotAgent
	}
	if user.ReferralCode != nil && *user.ReferralCode != "" {
		return *user.ReferralCode, nil
	}
	return s.assignReferralCode(agentID)
}

// ValidateReferralCode 校验推荐码（公开接口）
func (s *UserAdminService) ValidateReferralCode(code string) (*ReferralCodeInfo, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	info := &ReferralCodeInfo{Code: code}
	if code == "" {
		return info, nil
	}
	agent, err := s.userRepo.GetByReferralCode(code)
	if err != nil {
		return nil, err
	}
	if agent == nil || !agent.IsAgent() {
		return info, nil
	}
	info.Valid = true
	info.AgentName = agent.DisplayName
	return info, nil
}

// ListReferrals 代理推荐的用户
func (s *UserAdminService) ListReferrals(agentID uint, page, pageSize int) ([]models.User, int64, error) {
	return s.userRepo.ListReferrals(agentID, page, pageSize)
}

func (s *UserAdminService) assignReferralCode(userID uint) (string, error) {
	for attempt := 0; attempt < referralCodeMaxAttempts; attempt++ {
		code, err := generateReferralCode()
		if err != nil {
			return "", err
		}
		err = s.userRepo.UpdateFields(userID, map[string]interface{}{"referral_code": code})
		if err == nil {
			return code, nil
		}
		if !isUniqueConstraintError(err) {
			return "", err
		}
	}
	return "", ErrReferralCodeInvalid
}

func generateReferralCode() (string, error) {
	var builder strings.Builder
	builder.Grow(referralCodeLength)
	max := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := 0; i < referralCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		builder.WriteByte(referralCodeAlphabet[n.Int64()])
	}
	return builder.String(), nil
}

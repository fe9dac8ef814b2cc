package public

import (
	"time"

	"github.com/course-referral/internal/http/response"
	"github.com/course-referral/internal/models"
	"github.com/course-referral/internal/service"

	"github.com/gin-gonic/gin"
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email        string `json:"email" binding:"required"`
	Password     string `json:"password" binding:"required"`
	DisplayName  string `json:"displayName" binding:"max=100"`
	ReferralCode string `json:"referralCode" binding:"max=32"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse 登录/注册响应
type AuthResponse struct {
	Token     string       `json:"token"`
	User      *models.User `json:"user"`
	ExpiresAt string       `json:"expires_at"`
}

// Register 用户注册；携带推荐码时绑定推荐人
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	user, token, expiresAt, err := h.UserAuthService.Register(service.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		DisplayName:  req.DisplayName,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		respondMappedError(c, err)
		return
	}
	response.Success(c, AuthResponse{Token: token, User: user, ExpiresAt: expiresAt.Format(time.RFC3339)})
}

// Login 用户登录
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	user, token, expiresAt, err := h.UserAuthService.Login(req.Email, req.Password)
	if err != nil {
		respondMappedError(c, err)
		return
	}
	response.Success(c, AuthResponse{Token: token, User: user, ExpiresAt: expiresAt.Format(time.RFC3339)})
}

// GetMe 当前用户
func (h *Handler) GetMe(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	user, err := h.UserAuthService.GetUserByID(userID)
	if err != nil {
		respondMappedError(c, err)
		return
	}
	response.Success(c, user)
}

// ApplyAgent 申请成为代理，等待管理员审核
func (h *Handler) ApplyAgent(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	user, err := h.UserAuthService.ApplyAgent(userID)
	if err != nil {
		respondMappedError(c, err)
		return
	}
	requestLog(c).Infow("agent_application_submitted", "user_id", userID, "agent_status", user.AgentStatus)
	response.Success(c, user)
}

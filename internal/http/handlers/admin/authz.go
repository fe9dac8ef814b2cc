package admin

import (
	"strings"

	"github.com/course-referral/internal/authz"
	handlershared "github.com/course-referral/internal/http/handlers/shared"
	"github.com/course-referral/internal/http/response"

	"github.com/gin-gonic/gin"
)

// RolePolicyRequest 角色策略请求
type RolePolicyRequest struct {
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// SetAdminRolesRequest 设置管理员角色请求
type SetAdminRolesRequest struct {
	Roles []string `json:"roles"`
}

func (h *Handler) respondAuthzError(c *gin.Context, err error) {
	handlershared.RespondMappedError(c, err, handlershared.AccountErrorRules)
}

// GetAuthzRoles 角色列表
func (h *Handler) GetAuthzRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		h.respondAuthzError(c, err)
		return
	}
	response.Success(c, roles)
}

// GetAuthzRolePolicies 角色策略
func (h *Handler) GetAuthzRolePolicies(c *gin.Context) {
	policies, err := h.AuthzService.GetRolePolicies(c.Param("role"))
	if err != nil {
		h.respondAuthzError(c, err)
		return
	}
	response.Success(c, policies)
}

// GrantAuthzRolePolicy 授予角色策略；预置角色不可修改
func (h *Handler) GrantAuthzRolePolicy(c *gin.Context) {
	h.changeRolePolicy(c, true)
}

// RevokeAuthzRolePolicy 撤销角色策略
func (h *Handler) RevokeAuthzRolePolicy(c *gin.Context) {
	h.changeRolePolicy(c, false)
}

func (h *Handler) changeRolePolicy(c *gin.Context, grant bool) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	role := strings.TrimSpace(c.Param("role"))
	if authz.IsImmutableRole(role) {
		respondError(c, response.CodeForbidden, "error.forbidden", nil)
		return
	}
	var req RolePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	var err error
	if grant {
		err = h.AuthzService.GrantRolePolicy(role, req.Object, req.Action)
	} else {
		err = h.AuthzService.RevokeRolePolicy(role, req.Object, req.Action)
	}
	if err != nil {
		h.respondAuthzError(c, err)
		return
	}
	requestLog(c).Infow("authz_role_policy_changed",
		"operator_admin_id", adminID,
		"role", role,
		"object", authz.NormalizeObject(req.Object),
		"action", authz.NormalizeAction(req.Action),
		"grant", grant,
	)
	policies, err := h.AuthzService.GetRolePolicies(role)
	if err != nil {
		h.respondAuthzError(c, err)
		return
	}
	response.Success(c, policies)
}

// GetAuthzAdminRoles 管理员角色
func (h *Handler) GetAuthzAdminRoles(c *gin.Context) {
	targetID, ok := h.loadTargetAdmin(c)
	if !ok {
		return
	}
	roles, err := h.AuthzService.GetAdminRoles(targetID)
	if err != nil {
		h.respondAuthzError(c, err)
		return
	}
	response.Success(c, roles)
}

// SetAuthzAdminRoles 覆盖设置管理员角色
func (h *Handler) SetAuthzAdminRoles(c *gin.Context) {
	operatorID, ok := getAdminID(c)
	if !ok {
		return
	}
	targetID, ok := h.loadTargetAdmin(c)
	if !ok {
		return
	}
	var req SetAdminRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	if err := h.AuthzService.SetAdminRoles(targetID, req.Roles); err != nil {
		h.respondAuthzError(c, err)
		return
	}
	requestLog(c).Infow("authz_admin_roles_set",
		"operator_admin_id", operatorID,
		"target_admin_id", targetID,
		"roles", req.Roles,
	)
	roles, err := h.AuthzService.GetAdminRoles(targetID)
	if err != nil {
		h.respondAuthzError(c, err)
		return
	}
	response.Success(c, roles)
}

// GetAuthzAdminPolicies 管理员生效策略
func (h *Handler) GetAuthzAdminPolicies(c *gin.Context) {
	targetID, ok := h.loadTargetAdmin(c)
	if !ok {
		return
	}
	policies, err := h.AuthzService.GetAdminPolicies(targetID)
	if err != nil {
		h.respondAuthzError(c, err)
		return
	}
	response.Success(c, policies)
}

func (h *Handler) loadTargetAdmin(c *gin.Context) (uint, bool) {
	targetID, ok := parsePathUint(c, "id")
	if !ok {
		respondError(c, response.CodeBadRequest, "error.admin_id_invalid", nil)
		return 0, false
	}
	admin, err := h.AdminRepo.GetByID(targetID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return 0, false
	}
	if admin == nil {
		respondError(c, response.CodeNotFound, "error.not_found", nil)
		return 0, false
	}
	return admin.ID, true
}

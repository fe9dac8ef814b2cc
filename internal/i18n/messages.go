package i18n

var messages = map[string]map[string]string{
	LocaleEN: {
		"error.bad_request":                     "Invalid request parameters",
		"error.unauthorized":                    "Unauthorized",
		"error.forbidden":                       "Permission denied",
		"error.not_found":                       "Resource not found",
		"error.internal":                        "Internal server error",
		"error.too_many_requests":               "Too many requests, please try again later",
		"error.rate_limited":                    "Too many attempts, please retry in %d seconds",
		"error.rate_limit_unavailable":          "Rate limiter unavailable",
		"error.role_not_found":                  "Role not found",
		"error.auth_header_missing":             "Authorization header missing",
		"error.auth_header_invalid":             "Authorization header format invalid",
		"error.token_invalid":                   "Token invalid or expired",
		"error.token_revoked":                   "Token has been revoked",
		"error.jwt_secret_missing":              "JWT secret not configured",
		"error.login_failed":                    "Invalid username or password",
		"error.user_disabled":                   "Account disabled",
		"error.email_exists":                    "Email already registered",
		"error.email_invalid":                   "Email address invalid",
		"error.password_weak":                   "Password too weak",
		"error.password_min_length":             "Password must be at least %d characters",
		"error.password_require_letter":         "Password must contain a letter",
		"error.password_require_number":         "Password must contain a number",
		"error.role_invalid":                    "Invalid role",
		"error.referral_code_invalid":           "Referral code invalid",
		"error.user_id_invalid":                 "Invalid user ID",
		"error.admin_id_invalid":                "Invalid admin ID",
		"error.context_type_invalid":            "Invalid context value",
		"error.commission_not_found":            "Commission not found",
		"error.duplicate_payment":               "A commission already exists for this payment",
		"error.payment_id_required":             "Payment ID is required",
		"error.invalid_transition":              "Commission status transition not allowed",
		"error.invalid_status":                  "Invalid status",
		"error.payout_method_required":          "Payout method is required",
		"error.payout_method_invalid":           "Unsupported payout method",
		"error.cancel_reason_required":          "Cancellation reason is required",
		"error.commission_rate_invalid":         "Commission rate must be between 0 and 1",
		"error.amount_invalid":                  "Amount must be greater than zero",
		"error.bulk_conflict":                   "Some commissions are no longer pending; nothing was changed",
		"error.commission_ids_required":         "Commission IDs are required",
		"error.insufficient_pending_commission": "Pending commission does not cover the amount",
		"error.bank_details_not_verified":       "Bank details have not been verified",
		"error.bank_details_incomplete":         "Bank details are incomplete",
		"error.no_pending_commission":           "Not enough pending commission for this request",
		"error.partial_settlement_conflict":     "A referenced commission is no longer pending",
		"error.already_finalized":               "Payout request already finalized",
		"error.payout_reference_required":       "Payout reference is required",
		"error.rejection_reason_required":       "Rejection reason is required",
		"error.commission_not_owned":            "Commission does not belong to this agent or is not pending",
		"error.commission_already_requested":    "Commission is already part of an open payout request",
		"error.agent_not_found":                 "Agent not found",
		"error.user_not_found":                  "User not found",
		"error.not_agent":                       "User is not an agent",
		"error.payout_request_not_found":        "Payout request not found",
		"error.webhook_signature_invalid":       "Webhook signature invalid",
		"error.payout_gateway_unavailable":      "Payout gateway unavailable",
		"error.export_failed":                   "Export failed",
	},
	LocaleZH: {
		"error.bad_request":                     "请求参数错误",
		"error.unauthorized":                    "未授权",
		"error.forbidden":                       "无权限",
		"error.not_found":                       "资源不存在",
		"error.internal":                        "服务器内部错误",
		"error.too_many_requests":               "请求过于频繁，请稍后再试",
		"error.rate_limited":                    "操作过于频繁，请 %d 秒后重试",
		"error.rate_limit_unavailable":          "限流服务不可用",
		"error.role_not_found":                  "角色不存在",
		"error.auth_header_missing":             "缺少 Authorization 头",
		"error.auth_header_invalid":             "Authorization 格式错误",
		"error.token_invalid":                   "Token 无效或已过期",
		"error.token_revoked":                   "Token 已失效",
		"error.jwt_secret_missing":              "未配置 JWT 密钥",
		"error.login_failed":                    "用户名或密码错误",
		"error.user_disabled":                   "账号已禁用",
		"error.email_exists":                    "邮箱已注册",
		"error.email_invalid":                   "邮箱格式错误",
		"error.password_weak":                   "密码强度不足",
		"error.password_min_length":             "密码长度至少 %d 位",
		"error.password_require_letter":         "密码需包含字母",
		"error.password_require_number":         "密码需包含数字",
		"error.role_invalid":                    "角色无效",
		"error.referral_code_invalid":           "推荐码无效",
		"error.user_id_invalid":                 "用户ID无效",
		"error.admin_id_invalid":                "管理员ID无效",
		"error.context_type_invalid":            "上下文参数类型错误",
		"error.commission_not_found":            "佣金记录不存在",
		"error.duplicate_payment":               "该支付已生成佣金",
		"error.payment_id_required":             "缺少支付ID",
		"error.invalid_transition":              "佣金状态流转不合法",
		"error.invalid_status":                  "状态无效",
		"error.payout_method_required":          "请选择结算方式",
		"error.payout_method_invalid":           "不支持的结算方式",
		"error.cancel_reason_required":          "请填写取消原因",
		"error.commission_rate_invalid":         "佣金比例需在 0 到 1 之间",
		"error.amount_invalid":                  "金额必须大于 0",
		"error.bulk_conflict":                   "部分佣金已非待结算状态，本次未做任何修改",
		"error.commission_ids_required":         "请选择佣金",
		"error.insufficient_pending_commission": "待结算佣金不足",
		"error.bank_details_not_verified":       "银行信息尚未验证",
		"error.bank_details_incomplete":         "银行信息不完整",
		"error.no_pending_commission":           "可提现佣金不足",
		"error.partial_settlement_conflict":     "关联佣金已非待结算状态",
		"error.already_finalized":               "提现申请已处理完成",
		"error.payout_reference_required":       "请填写打款流水号",
		"error.rejection_reason_required":       "请填写拒绝原因",
		"error.commission_not_owned":            "佣金不属于该代理或非待结算",
		"error.commission_already_requested":    "佣金已在处理中的提现申请内",
		"error.agent_not_found":                 "代理不存在",
		"error.user_not_found":                  "用户不存在",
		"error.not_agent":                       "用户不是代理",
		"error.payout_request_not_found":        "提现申请不存在",
		"error.webhook_signature_invalid":       "回调签名校验失败",
		"error.payout_gateway_unavailable":      "打款通道不可用",
		"error.export_failed":                   "导出失败",
	},
}

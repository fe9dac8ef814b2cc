package shared

import (
	"errors"

	"github.com/course-referral/internal/authz"
	"github.com/course-referral/internal/http/response"
	"github.com/course-referral/internal/i18n"
	"github.com/course-referral/internal/service"

	"github.com/gin-gonic/gin"
)

// ErrorRule 业务错误到接口响应的映射
type ErrorRule struct {
	Target error
	Code   int
	Key    string
}

// LedgerErrorRules 佣金账本相关错误映射，管理端与代理端共用
var LedgerErrorRules = []ErrorRule{
	{Target: service.ErrNotFound, Code: response.CodeNotFound, Key: "error.commission_not_found"},
	{Target: service.ErrDuplicatePayment, Code: response.CodeConflict, Key: "error.duplicate_payment"},
	{Target: service.ErrPaymentIDRequired, Code: response.CodeBadRequest, Key: "error.payment_id_required"},
	{Target: service.ErrInvalidTransition, Code: response.CodeConflict, Key: "error.invalid_transition"},
	{Target: service.ErrInvalidStatus, Code: response.CodeBadRequest, Key: "error.invalid_status"},
	{Target: service.ErrPayoutMethodRequired, Code: response.CodeBadRequest, Key: "error.payout_method_required"},
	{Target: service.ErrPayoutMethodInvalid, Code: response.CodeBadRequest, Key: "error.payout_method_invalid"},
	{Target: service.ErrCancelReasonRequired, Code: response.CodeBadRequest, Key: "error.cancel_reason_required"},
	{Target: service.ErrInvalidCommissionRate, Code: response.CodeBadRequest, Key: "error.commission_rate_invalid"},
	{Target: service.ErrZeroAmount, Code: response.CodeBadRequest, Key: "error.amount_invalid"},
	{Target: service.ErrBulkConflict, Code: response.CodeConflict, Key: "error.bulk_conflict"},
	{Target: service.ErrCommissionIDsRequired, Code: response.CodeBadRequest, Key: "error.commission_ids_required"},
	{Target: service.ErrInsufficientPendingCommission, Code: response.CodeBadRequest, Key: "error.insufficient_pending_commission"},
	{Target: service.ErrBankDetailsNotVerified, Code: response.CodeBadRequest, Key: "error.bank_details_not_verified"},
	{Target: service.ErrBankDetailsIncomplete, Code: response.CodeBadRequest, Key: "error.bank_details_incomplete"},
	{Target: service.ErrNoPendingCommission, Code: response.CodeBadRequest, Key: "error.no_pending_commission"},
	{Target: service.ErrPartialSettlementConflict, Code: response.CodeConflict, Key: "error.partial_settlement_conflict"},
	{Target: service.ErrAlreadyFinalized, Code: response.CodeConflict, Key: "error.already_finalized"},
	{Target: service.ErrPayoutReferenceRequired, Code: response.CodeBadRequest, Key: "error.payout_reference_required"},
	{Target: service.ErrRejectionReasonRequired, Code: response.CodeBadRequest, Key: "error.rejection_reason_required"},
	{Target: service.ErrCommissionNotOwned, Code: response.CodeBadRequest, Key: "error.commission_not_owned"},
	{Target: service.ErrCommissionAlreadyRequested, Code: response.CodeConflict, Key: "error.commission_already_requested"},
	{Target: service.ErrAgentNotFound, Code: response.CodeNotFound, Key: "error.agent_not_found"},
	{Target: service.ErrNotAgent, Code: response.CodeBadRequest, Key: "error.not_agent"},
	{Target: service.ErrPayoutGatewayUnavailable, Code: response.CodeBadGateway, Key: "error.payout_gateway_unavailable"},
}

// AccountErrorRules 账号与鉴权相关错误映射
var AccountErrorRules = []ErrorRule{
	{Target: service.ErrInvalidCredentials, Code: response.CodeUnauthorized, Key: "error.login_failed"},
	{Target: service.ErrUserDisabled, Code: response.CodeUnauthorized, Key: "error.user_disabled"},
	{Target: service.ErrEmailExists, Code: response.CodeConflict, Key: "error.email_exists"},
	{Target: service.ErrInvalidEmail, Code: response.CodeBadRequest, Key: "error.email_invalid"},
	{Target: service.ErrWeakPassword, Code: response.CodeBadRequest, Key: "error.password_weak"},
	{Target: service.ErrInvalidRole, Code: response.CodeBadRequest, Key: "error.role_invalid"},
	{Target: service.ErrReferralCodeInvalid, Code: response.CodeBadRequest, Key: "error.referral_code_invalid"},
	{Target: service.ErrWebhookSignatureInvalid, Code: response.CodeUnauthorized, Key: "error.webhook_signature_invalid"},
	{Target: authz.ErrRoleNotFound, Code: response.CodeBadRequest, Key: "error.role_not_found"},
	{Target: authz.ErrRoleRequired, Code: response.CodeBadRequest, Key: "error.bad_request"},
	{Target: authz.ErrRoleReserved, Code: response.CodeBadRequest, Key: "error.bad_request"},
	{Target: authz.ErrActionRequired, Code: response.CodeBadRequest, Key: "error.bad_request"},
}

// RespondMappedError 按映射表返回业务错误，未命中时记录原始错误并返回兜底响应
func RespondMappedError(c *gin.Context, err error, rules ...[]ErrorRule) {
	// 带参数的校验错误（如密码长度）
	var keyed interface {
		Key() string
		Args() []interface{}
	}
	if errors.As(err, &keyed) {
		msg := i18n.Sprintf(i18n.ResolveLocale(c), keyed.Key(), keyed.Args()...)
		RespondErrorWithMsg(c, response.CodeBadRequest, keyed.Key(), msg, nil)
		return
	}
	for _, group := range rules {
		for _, rule := range group {
			if errors.Is(err, rule.Target) {
				RespondError(c, rule.Code, rule.Key, nil)
				return
			}
		}
	}
	RespondError(c, response.CodeInternal, "error.internal", err)
}

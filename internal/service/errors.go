package service

import "errors"

// 通用错误
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("user disabled")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("password too weak")
	ErrInvalidRole        = errors.New("invalid role")
)

// 佣金台账错误
var (
	ErrDuplicatePayment              = errors.New("commission already exists for payment")
	ErrPaymentIDRequired             = errors.New("payment id required")
	ErrInvalidTransition             = errors.New("invalid commission status transition")
	ErrInvalidStatus                 = errors.New("invalid status")
	ErrPayoutMethodRequired          = errors.New("payout method required")
	ErrPayoutMethodInvalid           = errors.New("payout method invalid")
	ErrCancelReasonRequired          = errors.New("cancel reason required")
	ErrInvalidCommissionRate         = errors.New("commission rate must be between 0 and 1")
	ErrZeroAmount                    = errors.New("amount must be greater than zero")
	ErrBulkConflict                  = errors.New("bulk payout contains non-pending commission")
	ErrCommissionIDsRequired         = errors.New("commission ids required")
	ErrInsufficientPendingCommission = errors.New("pending commission is less than amount")
)

// 提现申请错误
var (
	ErrBankDetailsNotVerified     = errors.New("bank details not verified")
	ErrNoPendingCommission        = errors.New("not enough pending commission for request")
	ErrPartialSettlementConflict  = errors.New("referenced commission no longer pending")
	ErrAlreadyFinalized           = errors.New("payout request already finalized")
	ErrPayoutReferenceRequired    = errors.New("payout reference required")
	ErrRejectionReasonRequired    = errors.New("rejection reason required")
	ErrCommissionNotOwned         = errors.New("commission not owned by agent or not pending")
	ErrCommissionAlreadyRequested = errors.New("commission already bound to open payout request")
)

// 代理与银行信息错误
var (
	ErrAgentNotFound         = errors.New("agent not found")
	ErrNotAgent              = errors.New("user is not an agent")
	ErrBankDetailsIncomplete = errors.New("bank details incomplete")
	ErrReferralCodeInvalid   = errors.New("referral code invalid")
)

// 外部打款错误
var (
	ErrPayoutGatewayUnavailable = errors.New("payout gateway unavailable")
)

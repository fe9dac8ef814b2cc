package public

import (
	"github.com/course-referral/internal/http/response"
	"github.com/course-referral/internal/service"

	"github.com/gin-gonic/gin"
)

// BankDetailsRequest 收款信息
type BankDetailsRequest struct {
	BankName          string `json:"bankName" binding:"max=120"`
	AccountHolderName string `json:"accountHolderName" binding:"max=120"`
	AccountNumber     string `json:"accountNumber" binding:"max=64"`
	RoutingNumber     string `json:"routingNumber" binding:"max=64"`
	SwiftCode         string `json:"swiftCode" binding:"max=32"`
	IBAN              string `json:"iban" binding:"max=64"`
	StripeAccountID   string `json:"stripeAccountId" binding:"max=64"`
	PaypalEmail       string `json:"paypalEmail" binding:"omitempty,email,max=255"`
}

// GetBankDetails 查询本人收款信息
func (h *Handler) GetBankDetails(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	details, err := h.BankDetailService.GetBankDetails(userID)
	if err != nil {
		respondMappedError(c, err)
		return
	}
	response.Success(c, details)
}

// UpdateBankDetails 提交收款信息；标识变化会清除验证状态
func (h *Handler) UpdateBankDetails(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req BankDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	details, err := h.BankDetailService.SubmitBankDetails(userID, service.BankDetailsInput{
		BankName:          req.BankName,
		AccountHolderName: req.AccountHolderName,
		AccountNumber:     req.AccountNumber,
		RoutingNumber:     req.RoutingNumber,
		SwiftCode:         req.SwiftCode,
		IBAN:              req.IBAN,
		StripeAccountID:   req.StripeAccountID,
		PaypalEmail:       req.PaypalEmail,
	})
	if err != nil {
		respondMappedError(c, err)
		return
	}
	response.Success(c, details)
}

package shared

import (
	"strings"
	"sync"

	"github.com/course-referral/internal/constants"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 注册自定义绑定校验规则（payout_method / commission_status）
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("payout_method", validatePayoutMethod)
		_ = v.RegisterValidation("commission_status", validateCommissionStatus)
	})
}

func validatePayoutMethod(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if value == "" {
		return true
	}
	for _, method := range constants.PayoutMethods {
		if value == method {
			return true
		}
	}
	return false
}

func validateCommissionStatus(fl validator.FieldLevel) bool {
	switch strings.TrimSpace(fl.Field().String()) {
	case constants.CommissionStatusPending, constants.CommissionStatusPaid, constants.CommissionStatusCancelled:
		return true
	}
	return false
}

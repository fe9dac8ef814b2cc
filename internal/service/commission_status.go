package service

import (
	"sort"
	"strings"
	"time"

	"github.com/course-referral/internal/constants"
	"github.com/course-referral/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// commissionTransitions 佣金合法流转表，pending 之外均为终态
var commissionTransitions = map[string][]string{
	constants.CommissionStatusPending: {
		constants.CommissionStatusPaid,
		constants.CommissionStatusCancelled,
	},
	constants.CommissionStatusPaid:      {},
	constants.CommissionStatusCancelled: {},
}

// commissionOverrideTransitions 仅管理员单条改状态可用的人工回退
var commissionOverrideTransitions = map[string][]string{
	constants.CommissionStatusPaid: {constants.CommissionStatusPending},
}

// commissionChange 一次佣金状态变更
type commissionChange struct {
	To              string
	PayoutMethod    string
	PayoutReference string
	Notes           string
	CancelReason    string
	Action          string
	AllowOverride   bool
	Actor           Actor
	Detail          models.JSON
	Now             time.Time
}

func isCommissionStatus(status string) bool {
	_, ok := commissionTransitions[status]
	return ok
}

// resolveCommissionTransition 返回是否为人工回退；非法流转返回 ErrInvalidTransition
func resolveCommissionTransition(from, to string, allowOverride bool) (bool, error) {
	for _, next := range commissionTransitions[from] {
		if next == to {
			return false, nil
		}
	}
	if allowOverride {
		for _, next := range commissionOverrideTransitions[from] {
			if next == to {
				return true, nil
			}
		}
	}
	return false, ErrInvalidTransition
}

// applyTransitionTx 在事务内执行状态变更：校验流转表、版本守卫更新、写审计
func (s *CommissionService) applyTransitionTx(tx *gorm.DB, record *models.CommissionRecord, change commissionChange) error {
	if record == nil {
		return ErrNotFound
	}
	from := record.Status
	override, err := resolveCommissionTransition(from, change.To, change.AllowOverride)
	if err != nil {
		return err
	}
	now := change.Now
	if now.IsZero() {
		now = time.Now()
	}

	updates := map[string]interface{}{
		"status": change.To,
	}
	switch change.To {
	case constants.CommissionStatusPaid:
		if change.PayoutMethod == "" {
			return ErrPayoutMethodRequired
		}
		updates["payout_method"] = change.PayoutMethod
		updates["payout_reference"] = change.PayoutReference
		updates["paid_at"] = now
		if change.Notes != "" {
			updates["notes"] = change.Notes
		}
	case constants.CommissionStatusCancelled:
		updates["cancel_reason"] = change.CancelReason
		if change.Notes != "" {
			updates["notes"] = change.Notes
		}
	case constants.CommissionStatusPending:
		updates["payout_method"] = ""
		updates["payout_reference"] = ""
		updates["paid_at"] = nil
		if change.Notes != "" {
			updates["notes"] = change.Notes
		}
	}

	ok, err := s.repo.WithTx(tx).UpdateGuarded(record.ID, from, record.Version, updates)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidTransition
	}

	detail := models.JSON{
		"agent_id": record.AgentID,
		"amount":   record.Amount.String(),
	}
	for k, v := range change.Detail {
		detail[k] = v
	}
	if change.PayoutMethod != "" {
		detail["payout_method"] = change.PayoutMethod
	}
	if change.PayoutReference != "" {
		detail["payout_reference"] = change.PayoutReference
	}
	action := change.Action
	if action == "" {
		action = commissionAuditAction(change.To, override)
	}
	if err := s.audit.RecordTx(tx, AuditRecordInput{
		EntityType:       constants.AuditEntityCommission,
		EntityID:         record.ID,
		Action:           action,
		FromStatus:       from,
		ToStatus:         change.To,
		IsManualOverride: override,
		Actor:            change.Actor,
		Detail:           detail,
	}); err != nil {
		return err
	}

	applyCommissionChange(record, change, now)
	return nil
}

func applyCommissionChange(record *models.CommissionRecord, change commissionChange, now time.Time) {
	record.Status = change.To
	record.Version++
	record.UpdatedAt = now
	if change.Notes != "" {
		record.Notes = change.Notes
	}
	switch change.To {
	case constants.CommissionStatusPaid:
		record.PayoutMethod = change.PayoutMethod
		record.PayoutReference = change.PayoutReference
		paidAt := now
		record.PaidAt = &paidAt
	case constants.CommissionStatusCancelled:
		record.CancelReason = change.CancelReason
	case constants.CommissionStatusPending:
		record.PayoutMethod = ""
		record.PayoutReference = ""
		record.PaidAt = nil
	}
}

func commissionAuditAction(to string, override bool) string {
	if override {
		return constants.AuditActionCommissionOverride
	}
	switch to {
	case constants.CommissionStatusPaid:
		return constants.AuditActionCommissionPaid
	case constants.CommissionStatusCancelled:
		return constants.AuditActionCommissionCancelled
	}
	return constants.AuditActionCommissionOverride
}

// normalizePayoutMethod 校验结算方式
func normalizePayoutMethod(raw string) (string, error) {
	method := strings.ToLower(strings.TrimSpace(raw))
	if method == "" {
		return "", ErrPayoutMethodRequired
	}
	for _, item := range constants.PayoutMethods {
		if item == method {
			return method, nil
		}
	}
	return "", ErrPayoutMethodInvalid
}

// isExternalPayoutMethod 需要调用外部打款网关的方式
func isExternalPayoutMethod(method string) bool {
	return method == constants.PayoutMethodStripe || method == constants.PayoutMethodPaypal
}

// normalizeMoneyAmount 金额保留两位并校验为正
func normalizeMoneyAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	rounded := amount.Round(2)
	if rounded.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrZeroAmount
	}
	return rounded, nil
}

// normalizeCommissionIDs 去重、去零并升序排列（与加锁顺序一致）
func normalizeCommissionIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// selectFIFOPrefix 按创建时间顺序选取金额之和不超过 amount 的最长前缀
func selectFIFOPrefix(records []models.CommissionRecord, amount decimal.Decimal) ([]models.CommissionRecord, decimal.Decimal) {
	selected := make([]models.CommissionRecord, 0, len(records))
	settled := decimal.Zero
	for _, record := range records {
		next := settled.Add(record.Amount.Decimal.Round(2))
		if next.GreaterThan(amount) {
			break
		}
		selected = append(selected, record)
		settled = next
	}
	return selected, settled
}

func sumCommissionAmounts(records []models.CommissionRecord) decimal.Decimal {
	total := decimal.Zero
	for _, record := range records {
		total = total.Add(record.Amount.Decimal.Round(2))
	}
	return total
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// settleFIFOTx 按 FIFO 结算代理最早的待结算佣金，返回已结算记录与金额
func (s *CommissionService) settleFIFOTx(tx *gorm.DB, agentID uint, amount decimal.Decimal, change commissionChange) ([]models.CommissionRecord, decimal.Decimal, error) {
	pending, err := s.repo.WithTx(tx).ListPendingByAgentForUpdate(agentID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if sumCommissionAmounts(pending).LessThan(amount) {
		return nil, decimal.Zero, ErrInsufficientPendingCommission
	}
	selected, settled := selectFIFOPrefix(pending, amount)
	if len(selected) == 0 {
		return nil, decimal.Zero, ErrInsufficientPendingCommission
	}
	change.To = constants.CommissionStatusPaid
	for i := range selected {
		if err := s.applyTransitionTx(tx, &selected[i], change); err != nil {
			return nil, decimal.Zero, err
		}
	}
	return selected, settled, nil
}

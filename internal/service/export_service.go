package service

import (
	"fmt"
	"io"

	"github.com/course-referral/internal/logger"
	"github.com/course-referral/internal/models"
	"github.com/course-referral/internal/repository"

	"github.com/xuri/excelize/v2"
)

const commissionExportSheet = "Commissions"

var commissionExportHeaders = []string{
	"ID", "Agent ID", "Agent Email", "Referral User ID", "Referral Email", "Payment ID",
	"Payment Amount", "Commission Rate", "Amount", "Status", "Payout Method",
	"Payout Reference", "Created At", "Paid At",
}

// ExportService 佣金导出
type ExportService struct {
	commissionRepo repository.CommissionRepository
	maxRows        int
}

// NewExportService 创建导出服务
func NewExportService(commissionRepo repository.CommissionRepository, maxRows int) *ExportService {
	if maxRows <= 0 {
		maxRows = 50000
	}
	return &ExportService{commissionRepo: commissionRepo, maxRows: maxRows}
}

// ExportCommissions 按筛选条件导出 XLSX，返回写出的行数
func (s *ExportService) ExportCommissions(filter repository.CommissionListFilter, w io.Writer) (int, error) {
	rows, err := s.commissionRepo.ListForExport(filter, s.maxRows)
	if err != nil {
		return 0, err
	}
	f, err := buildCommissionWorkbook(rows)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warnw("commission_export_close_failed", "error", err)
		}
	}()
	if _, err := f.WriteTo(w); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func buildCommissionWorkbook(rows []models.CommissionRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, commissionExportSheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}
	for i, header := range commissionExportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(commissionExportSheet, cell, header); err != nil {
			return nil, err
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(commissionExportHeaders), 1)
	if err := f.SetCellStyle(commissionExportSheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, err
	}

	for i, row := range rows {
		values := commissionExportRow(row)
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(commissionExportSheet, cell, &values); err != nil {
			return nil, err
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(commissionExportHeaders))
	if err := f.SetColWidth(commissionExportSheet, "A", lastCol, 16); err != nil {
		return nil, err
	}
	return f, nil
}

func commissionExportRow(row models.CommissionRecord) []interface{} {
	agentEmail := ""
	if row.Agent != nil {
		agentEmail = row.Agent.Email
	}
	referralEmail := ""
	if row.ReferralUser != nil {
		referralEmail = row.ReferralUser.Email
	}
	paidAt := ""
	if row.PaidAt != nil {
		paidAt = row.PaidAt.UTC().Format("2006-01-02 15:04:05")
	}
	return []interface{}{
		row.ID,
		row.AgentID,
		agentEmail,
		row.ReferralUserID,
		referralEmail,
		row.PaymentID,
		row.PaymentAmount.String(),
		row.CommissionRate.Decimal.String(),
		row.Amount.String(),
		row.Status,
		row.PayoutMethod,
		row.PayoutReference,
		row.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		paidAt,
	}
}

// CommissionExportFilename 导出文件名
func CommissionExportFilename(agentID uint, status string) string {
	name := "commissions"
	if agentID != 0 {
		name = fmt.Sprintf("%s-agent-%d", name, agentID)
	}
	if status != "" {
		name = fmt.Sprintf("%s-%s", name, status)
	}
	return name + ".xlsx"
}

// Package report renders claim listings as spreadsheets for finance.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/claim-workflow/internal/domain/entity"
)

const sheetName = "Claims"

var headers = []string{"Claim ID", "Employee", "Title", "Description", "Amount", "Receipt", "Status", "Submitted", "Last Updated"}

// ClaimWorkbook writes claim listings to xlsx
type ClaimWorkbook struct {
	logger *zap.Logger
}

// NewClaimWorkbook creates a workbook writer
func NewClaimWorkbook(logger *zap.Logger) *ClaimWorkbook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimWorkbook{logger: logger}
}

// Render returns an xlsx document with one row per claim and a total row
func (w *ClaimWorkbook) Render(title string, claims []*entity.Claim, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	w.setCell(f, "A1", title)
	w.setCell(f, "A2", "Generated "+generatedAt.UTC().Format(time.RFC3339))

	if err := f.SetSheetRow(sheetName, "A4", &headers); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	total := decimal.Zero
	row := 5
	for _, c := range claims {
		amount := c.Amount.InexactFloat64()
		values := []interface{}{
			c.ID,
			c.OwnerName,
			c.Title,
			c.Description,
			amount,
			c.ReceiptURL,
			c.Status().String(),
			submittedAt(c).Format("2006-01-02"),
			c.UpdatedAt.Format("2006-01-02 15:04"),
		}
		if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", row), &values); err != nil {
			return nil, fmt.Errorf("failed to write claim %d: %w", c.ID, err)
		}
		total = total.Add(c.Amount)
		row++
	}

	w.setCell(f, fmt.Sprintf("D%d", row), "Total")
	totalValue := total.InexactFloat64()
	w.setCell(f, fmt.Sprintf("E%d", row), totalValue)

	if err := f.SetCellStyle(sheetName, "E5", fmt.Sprintf("E%d", row), amountStyle); err != nil {
		return nil, fmt.Errorf("failed to style amounts: %w", err)
	}
	_ = f.SetColWidth(sheetName, "B", "D", 24)
	_ = f.SetColWidth(sheetName, "F", "F", 36)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	w.logger.Info("Claim workbook rendered",
		zap.Int("rows", len(claims)),
		zap.String("total", entity.FormatAmount(total)))

	return bytes.Clone(buf.Bytes()), nil
}

func (w *ClaimWorkbook) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		w.logger.Warn("Failed to set cell value", zap.String("cell", cell), zap.Error(err))
	}
}

// submittedAt is the time of the SUBMITTED entry, falling back to creation
func submittedAt(c *entity.Claim) time.Time {
	for _, e := range c.Audit() {
		if e.Action == entity.ActionSubmitted {
			return e.CreatedAt
		}
	}
	return c.CreatedAt
}

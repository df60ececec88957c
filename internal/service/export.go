package service

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/shareledger/internal/domain"
	"github.com/timmy/shareledger/internal/logger"
	"github.com/xuri/excelize/v2"
)

// PositionReader lists stored positions in insertion order.
type PositionReader interface {
	List(ctx context.Context, limit, offset int) ([]domain.Position, error)
	Count(ctx context.Context) (int64, error)
}

// ExportSheet is the worksheet holding exported positions.
const ExportSheet = "positions"

var exportHeaders = []string{
	"Client Code",
	"Security Code",
	"ISIN",
	"Quantity",
	"Total Cost",
	"Position Type",
	"Created At",
}

// ExportService produces XLSX workbooks of stored positions.
type ExportService struct {
	positions PositionReader
}

func NewExportService(positions PositionReader) *ExportService {
	return &ExportService{positions: positions}
}

// PositionsXLSX returns a workbook with one header row and one row per position.
func (s *ExportService) PositionsXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	rows, err := s.positions.List(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	// rename the default sheet so the workbook has exactly one
	if err := f.SetSheetName(f.GetSheetName(0), ExportSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(ExportSheet, cell, h)
	}

	for i, p := range rows {
		row := []interface{}{
			p.ClientCode,
			p.SecurityCode,
			p.ISIN,
			p.Quantity,
			p.TotalCost,
			string(p.PositionType),
			p.CreatedAt.UTC().Format(time.RFC3339),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(ExportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", i+2, err)
		}
	}

	_ = f.SetColWidth(ExportSheet, "A", "B", 14)
	_ = f.SetColWidth(ExportSheet, "C", "C", 16)
	_ = f.SetColWidth(ExportSheet, "D", "F", 14)
	_ = f.SetColWidth(ExportSheet, "G", "G", 22)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	logger.With(logger.Fields{}).WithCount(len(rows)).WithDuration(time.Since(start)).Info(ctx, "Positions exported")
	return buf.Bytes(), nil
}

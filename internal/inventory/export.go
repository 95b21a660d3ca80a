// internal/inventory/export.go
package inventory

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	unitsSheet   = "Units"
	summarySheet = "Summary"
)

var unitsHeader = []string{
	"Inventory ID", "Blood Type", "Hospital ID", "Donation ID", "Collected",
	"Expires", "Days Left", "Expiry", "Status", "Notes",
}

var summaryHeader = []string{
	"Blood Type", "Total", "Available", "Reserved", "Minimum", "Level",
}

// BuildWorkbook renders units and the per-type summary into an XLSX file.
func BuildWorkbook(units []View, summaries []Summary, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", unitsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F8D7DA"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, unitsSheet, 1, toCells(unitsHeader), headerStyle); err != nil {
		return nil, err
	}
	for i, v := range units {
		notes := ""
		if v.Notes != nil {
			notes = *v.Notes
		}
		row := []any{
			v.ID.String(), string(v.BloodType), v.HospitalID.String(), v.DonationID.String(),
			v.CollectedAt.Format(time.DateTime), v.ExpiresAt.Format(time.DateTime),
			v.Expiry.DaysLeft, string(v.Expiry.State), string(v.EffectiveStatus), notes,
		}
		if err := writeRow(f, unitsSheet, i+2, row, 0); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, summarySheet, 1, toCells(summaryHeader), headerStyle); err != nil {
		return nil, err
	}
	for i, s := range summaries {
		row := []any{string(s.BloodType), s.TotalUnits, s.AvailableUnits, s.ReservedUnits, s.MinimumThreshold, string(s.Level)}
		if err := writeRow(f, summarySheet, i+2, row, 0); err != nil {
			return nil, err
		}
	}
	footer := []any{"Generated", generatedAt.UTC().Format(time.RFC3339)}
	if err := writeRow(f, summarySheet, len(summaries)+3, footer, 0); err != nil {
		return nil, err
	}

	for _, col := range []string{"A", "C", "D"} {
		if err := f.SetColWidth(unitsSheet, col, col, 38); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}
	if err := f.SetColWidth(unitsSheet, "E", "F", 20); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func writeRow(f *excelize.File, sheet string, row int, values []any, style int) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, start, &values); err != nil {
		return fmt.Errorf("write row %d of %s: %w", row, sheet, err)
	}
	if style == 0 {
		return nil
	}
	end, err := excelize.CoordinatesToCellName(len(values), row)
	if err != nil {
		return fmt.Errorf("convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(sheet, start, end, style); err != nil {
		return fmt.Errorf("style row %d of %s: %w", row, sheet, err)
	}
	return nil
}

// Package export renders a batch cost breakdown as an xlsx workbook for the
// quoting desk.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/promdetal/costing/internal/domain/batch"
	"github.com/promdetal/costing/internal/domain/part"
)

// BatchWorkbook writes one sheet: header block with part/batch identity,
// then the six cost components and the unit cost.
func BatchWorkbook(b *batch.Batch, p *part.Part, currency string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	head := [][]interface{}{
		{"part_no", p.PartNo},
		{"part_name", p.Name},
		{"customer", p.Customer},
		{"quantity", b.Quantity},
		{"state", string(b.State)},
		{"version", b.Version},
		{"currency", currency},
	}
	row := 1
	for _, h := range head {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &h); err != nil {
			return nil, fmt.Errorf("write header row %d: %w", row, err)
		}
		row++
	}
	row++

	lines := [][]interface{}{
		{"component", "cost_per_unit"},
		{"machining", b.Outputs.Machining.String()},
		{"setup", b.Outputs.Setup.String()},
		{"overhead", b.Outputs.Overhead.String()},
		{"margin", b.Outputs.Margin.String()},
		{"material", b.Outputs.Material.String()},
		{"cooperation", b.Outputs.Coop.String()},
		{"unit_cost", b.Outputs.Unit.String()},
	}
	for _, l := range lines {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &l); err != nil {
			return nil, fmt.Errorf("write breakdown row %d: %w", row, err)
		}
		row++
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

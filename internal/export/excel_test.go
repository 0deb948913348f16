package export

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/promdetal/costing/internal/domain/batch"
	"github.com/promdetal/costing/internal/domain/part"
)

func TestBatchWorkbook_ContainsBreakdown(t *testing.T) {
	b := &batch.Batch{
		ID:       1,
		PartID:   1,
		Quantity: 10,
		Version:  4,
		State:    batch.StateDraft,
		Outputs: batch.Outputs{
			Machining: decimal.RequireFromString("33.33"),
			Setup:     decimal.RequireFromString("50"),
			Overhead:  decimal.RequireFromString("8.33"),
			Margin:    decimal.RequireFromString("18.33"),
			Material:  decimal.RequireFromString("24.75"),
			Coop:      decimal.RequireFromString("0"),
			Unit:      decimal.RequireFromString("134.75"),
		},
	}
	p := &part.Part{PartNo: "PD-1017", Name: "Flange", Customer: "Acme"}

	data, err := BatchWorkbook(b, p, "EUR")
	if err != nil {
		t.Fatalf("BatchWorkbook returned error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	got, err := f.GetCellValue(sheet, "B1")
	if err != nil || got != "PD-1017" {
		t.Fatalf("B1 = %q (err %v), want PD-1017", got, err)
	}

	// Last breakdown line is the unit cost.
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	last := rows[len(rows)-1]
	if len(last) < 2 || last[0] != "unit_cost" || last[1] != "134.75" {
		t.Fatalf("last row = %v, want [unit_cost 134.75]", last)
	}
}

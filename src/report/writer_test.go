package report

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")

	tables := []Table{
		{Name: "Monthly", Data: loadRaw([][]string{
			{"Country", "Year", "CasesCum"},
			{"Denmark", "2020", "5"},
			{"Sweden", "2020", "10"},
		})},
		{Name: "Totals", Data: loadRaw([][]string{
			{"Country", "CasesCum"},
			{"Denmark", "5"},
		})},
	}

	if err := WriteWorkbook(tables, path); err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "Monthly" || sheets[1] != "Totals" {
		t.Fatalf("sheets = %v", sheets)
	}

	if v, _ := f.GetCellValue("Monthly", "A1"); v != "Country" {
		t.Errorf("Monthly!A1 = %q", v)
	}
	if v, _ := f.GetCellValue("Monthly", "C3"); v != "10" {
		t.Errorf("Monthly!C3 = %q", v)
	}
	if v, _ := f.GetCellValue("Totals", "B2"); v != "5" {
		t.Errorf("Totals!B2 = %q", v)
	}
}

func TestWriteWorkbookMissingCellsLeftBlank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")

	tables := []Table{
		{Name: "Data", Data: loadRaw([][]string{
			{"Country", "Population"},
			{"Norway", "NaN"},
		})},
	}
	if err := WriteWorkbook(tables, path); err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if v, _ := f.GetCellValue("Data", "B2"); v != "" {
		t.Errorf("missing cell should stay blank, got %q", v)
	}
}

func TestWriteWorkbookEmpty(t *testing.T) {
	if err := WriteWorkbook(nil, "unused.xlsx"); err == nil {
		t.Fatal("expected error for empty table list")
	}
}

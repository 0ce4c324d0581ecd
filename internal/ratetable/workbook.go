package ratetable

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExportWorkbook writes every sidecar rate table into one xlsx workbook at
// path, one sheet per table, for reviewers who cross-check extracted
// numbers against the source PDF in a spreadsheet rather than raw CSVs.
// The first sheet is an index of uuid, source PDF, type, and dimensions.
func (s *Store) ExportWorkbook(path string) error {
	records, err := s.Load()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no rate tables to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	const indexSheet = "Sheet1"
	f.SetSheetName(indexSheet, "index")
	indexHeader := []interface{}{"uuid", "source_pdf", "table_type", "rows", "cols", "confidence"}
	if err := f.SetSheetRow("index", "A1", &indexHeader); err != nil {
		return err
	}

	for i, r := range records {
		row := []interface{}{r.UUID, r.SourcePDF, r.TableType, r.RowCount, r.ColCount, r.ExtractionConfidence}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow("index", cell, &row); err != nil {
			return err
		}

		sheet := sheetName(r.UUID, i)
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
		headers, rows, err := s.ReadCSV(r.UUID)
		if err != nil {
			return fmt.Errorf("read sidecar %s: %w", r.UUID, err)
		}
		headerRow := toInterfaces(headers)
		if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
			return err
		}
		for j, dataRow := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, j+2)
			values := toInterfaces(dataRow)
			if err := f.SetSheetRow(sheet, cell, &values); err != nil {
				return err
			}
		}
	}

	return f.SaveAs(path)
}

// sheetName derives a legal, unique sheet name from a uuid (xlsx caps sheet
// names at 31 characters).
func sheetName(uuid string, i int) string {
	short := uuid
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("t%02d_%s", i+1, short)
}

func toInterfaces(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

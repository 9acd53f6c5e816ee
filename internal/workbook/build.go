package workbook

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/cooperativa/registro/internal/schema"
)

// Version is the layout version stamped into every built workbook.
const Version = "v1.0.0"

// defaultSheet is the sheet excelize creates in a new file.
const defaultSheet = "Sheet1"

// Build renders snap as an .xlsx workbook. Every table gets a sheet with a
// header row, even when it has no rows.
func Build(snap *schema.Snapshot) ([]byte, error) {
	if snap == nil {
		snap = &schema.Snapshot{}
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, table := range schema.Tables() {
		desc := schema.MustDescribe(table)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, desc.Sheet); err != nil {
				return nil, fmt.Errorf("failed to name sheet %s: %w", desc.Sheet, err)
			}
		} else if _, err := f.NewSheet(desc.Sheet); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", desc.Sheet, err)
		}
		if err := writeSheet(f, desc, snap.Rows(table), header); err != nil {
			return nil, fmt.Errorf("failed to write sheet %s: %w", desc.Sheet, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Registro",
		Creator: "registro",
		Version: Version,
	}); err != nil {
		return nil, fmt.Errorf("failed to set document properties: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, desc *schema.Descriptor, rows []schema.Row, headerStyle int) error {
	columns := desc.SheetColumns()

	headers := make([]any, len(columns))
	for i, c := range columns {
		headers[i] = c
	}
	if err := f.SetSheetRow(desc.Sheet, "A1", &headers); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(desc.Sheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		values := make([]any, len(columns))
		for j, c := range columns {
			values[j] = cellValue(c, row[c])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(desc.Sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

// cellValue maps a store value to what the sheet holds: ids stay numeric
// with 0 left blank, JSON becomes its text and booleans are written as the
// words true/false.
func cellValue(column string, v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64:
		if column == "id" && x == 0 {
			return nil
		}
		return x
	case bool:
		return strconv.FormatBool(x)
	case json.RawMessage:
		return string(x)
	default:
		return x
	}
}

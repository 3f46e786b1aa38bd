package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/notepeel/internal/core/domain"
)

const (
	SheetKeyValues = "Key-Values"
	SheetTableRows = "Table Rows"
	SheetRawText   = "Raw Text"
)

// WriteRecognition writes result as a workbook: one sheet of key/value pairs,
// one with the table rows and one holding the raw text. Sheets for empty
// sections are still created so consumers can rely on the layout.
func WriteRecognition(w io.Writer, result domain.RecognitionResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetKeyValues); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetKeyValues, "A1", &[]any{"Key", "Value"}); err != nil {
		return fmt.Errorf("write key-values header: %w", err)
	}
	for i, kv := range result.KeyValues {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetKeyValues, cell, &[]any{kv.Key, kv.Value}); err != nil {
			return fmt.Errorf("write key-value %q: %w", kv.Key, err)
		}
	}

	if _, err := f.NewSheet(SheetTableRows); err != nil {
		return fmt.Errorf("create table sheet: %w", err)
	}
	for i, row := range result.TableRows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(SheetTableRows, cell, &values); err != nil {
			return fmt.Errorf("write table row %d: %w", i+1, err)
		}
	}

	if _, err := f.NewSheet(SheetRawText); err != nil {
		return fmt.Errorf("create raw text sheet: %w", err)
	}
	if err := f.SetCellValue(SheetRawText, "A1", result.RawText); err != nil {
		return fmt.Errorf("write raw text: %w", err)
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

package xlsx

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/notepeel/internal/core/domain"
)

func TestWriteRecognitionLayout(t *testing.T) {
	var buf bytes.Buffer
	err := WriteRecognition(&buf, domain.RecognitionResult{
		RawText:   "Name Al\nDate 5/1",
		KeyValues: domain.KeyValues{{Key: "Name", Value: "Al"}, {Key: "Date", Value: "5/1"}},
		TableRows: [][]string{{"1", "2"}, {"3", "4", "5"}},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 3 || sheets[0] != SheetKeyValues || sheets[1] != SheetTableRows || sheets[2] != SheetRawText {
		t.Fatalf("unexpected sheets: %v", sheets)
	}

	kv, err := f.GetRows(SheetKeyValues)
	if err != nil {
		t.Fatalf("key-values rows: %v", err)
	}
	if len(kv) != 3 || kv[1][0] != "Name" || kv[2][1] != "5/1" {
		t.Fatalf("unexpected key-values sheet: %v", kv)
	}

	rows, err := f.GetRows(SheetTableRows)
	if err != nil {
		t.Fatalf("table rows: %v", err)
	}
	if len(rows) != 2 || len(rows[1]) != 3 || rows[1][2] != "5" {
		t.Fatalf("unexpected table sheet: %v", rows)
	}

	raw, err := f.GetCellValue(SheetRawText, "A1")
	if err != nil || raw != "Name Al\nDate 5/1" {
		t.Fatalf("unexpected raw text %q (%v)", raw, err)
	}
}

func TestWriteRecognitionEmptyResult(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRecognition(&buf, domain.RecognitionResult{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(SheetKeyValues)
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected only the header row, got %v (%v)", rows, err)
	}
}

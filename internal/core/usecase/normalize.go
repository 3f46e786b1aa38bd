package usecase

import (
	"strings"

	"github.com/kirillkom/notepeel/internal/core/domain"
)

const (
	keyValuesHeader = "Key-Values:"
	tableRowsHeader = "Table Rows:"
	cellDelimiter   = " | "
)

// Normalize flattens a recognition result into one editable text block.
// Key-values come before table rows; without either, the raw text is used verbatim.
func Normalize(result domain.RecognitionResult) string {
	var sb strings.Builder
	emitted := false

	if len(result.KeyValues) > 0 {
		sb.WriteString(keyValuesHeader)
		sb.WriteByte('\n')
		for _, kv := range result.KeyValues {
			sb.WriteString(kv.Key)
			sb.WriteString(": ")
			sb.WriteString(kv.Value)
			sb.WriteByte('\n')
		}
		emitted = true
	}

	if len(result.TableRows) > 0 {
		if emitted {
			sb.WriteByte('\n')
		}
		sb.WriteString(tableRowsHeader)
		sb.WriteByte('\n')
		for _, row := range result.TableRows {
			sb.WriteString(strings.Join(row, cellDelimiter))
			sb.WriteByte('\n')
		}
		emitted = true
	}

	if !emitted {
		return result.RawText
	}
	return sb.String()
}

// Package extractor pulls plain text and lightweight metadata out of
// uploaded files. Formats it does not understand yield empty results
// rather than errors; enrichment treats those files as content-free.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// Enrichment prompts stay useful well below this; anything longer just
// burns tokens.
const maxTextLength = 10000

type TextExtractor struct{}

func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

func (e *TextExtractor) Extract(ctx context.Context, data []byte, mimeType, filename string) (string, error) {
	switch {
	case strings.HasPrefix(mimeType, "text/"),
		mimeType == "application/json",
		mimeType == "application/xml":
		return truncate(strings.ToValidUTF8(string(data), "")), nil
	case mimeType == "application/pdf":
		return extractPDF(data)
	case mimeType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return extractXLSX(data)
	default:
		return "", nil
	}
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	body, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return truncate(strings.TrimSpace(string(raw))), nil
}

func extractXLSX(data []byte) (string, error) {
	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer workbook.Close()

	var sb strings.Builder
	for _, sheet := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			sb.WriteString(strings.Join(row, " "))
			sb.WriteByte('\n')
			if sb.Len() > maxTextLength {
				return truncate(sb.String()), nil
			}
		}
	}
	return truncate(strings.TrimSpace(sb.String())), nil
}

func truncate(s string) string {
	if len(s) <= maxTextLength {
		return s
	}
	return s[:maxTextLength]
}

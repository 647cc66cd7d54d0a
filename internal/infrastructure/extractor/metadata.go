package extractor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

type MetadataExtractor struct{}

func NewMetadataExtractor() *MetadataExtractor {
	return &MetadataExtractor{}
}

func (e *MetadataExtractor) Extract(ctx context.Context, data []byte, mimeType string) (map[string]any, error) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return imageMetadata(data)
	case mimeType == "application/pdf":
		return pdfMetadata(data)
	case mimeType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return workbookMetadata(data)
	default:
		return nil, nil
	}
}

func imageMetadata(data []byte) (map[string]any, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	return map[string]any{
		"width":  cfg.Width,
		"height": cfg.Height,
		"format": format,
	}, nil
}

func pdfMetadata(data []byte) (map[string]any, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return map[string]any{"pages": reader.NumPage()}, nil
}

func workbookMetadata(data []byte) (map[string]any, error) {
	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	return map[string]any{
		"sheets":      len(sheets),
		"sheet_names": sheets,
	}, nil
}

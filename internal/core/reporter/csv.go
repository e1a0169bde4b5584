package reporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"neoprobe/internal/core/model"
)

// CsvReporter 将端口汇总表导出为 CSV 文件
type CsvReporter struct {
	FilePath string
}

func NewCsvReporter(filePath string) *CsvReporter {
	return &CsvReporter{FilePath: filePath}
}

func (r *CsvReporter) Report(_ context.Context, snap *model.ScanSnapshot) error {
	headers, rows := portRows(snap.Ports)
	return SaveCsv(r.FilePath, headers, rows)
}

// SaveCsv 一次性写入表头和全部行
func SaveCsv(path string, headers []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer f.Close()

	// 写入 UTF-8 BOM，防止 Excel 打开乱码
	if _, err := f.WriteString("\xEF\xBB\xBF"); err != nil {
		return fmt.Errorf("failed to write csv bom: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"neoprobe/internal/core/model"
)

// JSONReporter 将完整快照导出为 JSON
type JSONReporter struct {
	FilePath string
}

func NewJSONReporter(filePath string) *JSONReporter {
	return &JSONReporter{FilePath: filePath}
}

func (r *JSONReporter) Report(_ context.Context, snap *model.ScanSnapshot) error {
	return SaveJSON(r.FilePath, snap)
}

// SaveJSON 将任意数据以缩进 JSON 写入文件
func SaveJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create json file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to write json output: %w", err)
	}
	return nil
}

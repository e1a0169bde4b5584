/**
 * 报告输出接口定义
 * @date: 2026.03.08
 * @description: 扫描完成后将 ScanSnapshot 交给控制台、JSON、CSV 等输出目标。
 */

package reporter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"neoprobe/internal/core/model"
)

// TabularData 是一个可以被渲染为表格的数据接口
// PortReport 与 AttackPath 都实现了此接口
type TabularData interface {
	Headers() []string
	Rows() [][]string
}

// Reporter 定义报告输出的行为
type Reporter interface {
	// Report 输出一次扫描的快照
	Report(ctx context.Context, snap *model.ScanSnapshot) error
}

// MultiReporter 同时向多个目标输出 (e.g., Console + JSON + CSV)
// 单个输出失败不影响其余输出，错误合并返回
type MultiReporter struct {
	reporters []Reporter
}

func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	return &MultiReporter{
		reporters: reporters,
	}
}

// Add 追加输出目标
func (m *MultiReporter) Add(r Reporter) {
	m.reporters = append(m.reporters, r)
}

func (m *MultiReporter) Report(ctx context.Context, snap *model.ScanSnapshot) error {
	var errs []error
	for _, r := range m.reporters {
		if err := r.Report(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FileName 生成导出文件名 neoprobe_<target>_<时间戳>.<ext>，目标中的特殊字符替换为 _
func FileName(target, ext string, ts time.Time) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, target)
	return fmt.Sprintf("neoprobe_%s_%s.%s", safe, ts.Format("20060102_150405"), ext)
}

// portRows 汇总端口表格
func portRows(ports []*model.PortReport) ([]string, [][]string) {
	var rows [][]string
	for _, p := range ports {
		rows = append(rows, p.Rows()...)
	}
	return model.PortReport{}.Headers(), rows
}

/**
 * 执行器基础接口
 * @date: 2026.03.05
 * @description: 探测命令执行器与工具可用性检查的统一接口
 */
package base

import (
	"context"
	"sync/atomic"
	"time"

	"neoprobe/internal/core/model"
)

// Executor 执行器接口
// Execute 从不返回错误：超时、系统错误都编码在 ProbeResult.ReturnCode 中
type Executor interface {
	Execute(ctx context.Context, command string, timeout time.Duration) *model.ProbeResult
}

// ToolChecker 工具可用性检查接口
// Resolve 返回按别名表改写后的命令，以及命令的工具是否可用
type ToolChecker interface {
	Resolve(command string) (string, bool)
}

// ExecutorMetrics 执行器指标快照
type ExecutorMetrics struct {
	TasksTotal      int64         `json:"tasks_total"`       // 总命令数
	TasksSucceeded  int64         `json:"tasks_succeeded"`   // 返回码为 0 的命令数
	TasksFailed     int64         `json:"tasks_failed"`      // 非 0 返回码的命令数
	TasksTimedOut   int64         `json:"tasks_timed_out"`   // 超时命令数
	TasksFaulted    int64         `json:"tasks_faulted"`     // 无法启动的命令数
	AverageTaskTime time.Duration `json:"average_task_time"` // 平均执行时间
}

// MetricsRecorder 并发安全的指标计数器
type MetricsRecorder struct {
	total, succeeded, failed, timedOut, faulted atomic.Int64
	totalTime                                   atomic.Int64
}

// Record 记录一次执行结果
func (m *MetricsRecorder) Record(result *model.ProbeResult) {
	m.total.Add(1)
	m.totalTime.Add(int64(result.Duration))
	switch {
	case result.TimedOut():
		m.timedOut.Add(1)
	case result.Faulted():
		m.faulted.Add(1)
	case result.Success:
		m.succeeded.Add(1)
	default:
		m.failed.Add(1)
	}
}

// Snapshot 当前指标
func (m *MetricsRecorder) Snapshot() ExecutorMetrics {
	s := ExecutorMetrics{
		TasksTotal:     m.total.Load(),
		TasksSucceeded: m.succeeded.Load(),
		TasksFailed:    m.failed.Load(),
		TasksTimedOut:  m.timedOut.Load(),
		TasksFaulted:   m.faulted.Load(),
	}
	if s.TasksTotal > 0 {
		s.AverageTaskTime = time.Duration(m.totalTime.Load() / s.TasksTotal)
	}
	return s
}

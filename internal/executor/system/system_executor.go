package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"neoprobe/internal/core/model"
	"neoprobe/internal/executor/base"
	"neoprobe/internal/pkg/logger"
)

// waitDelay 进程被杀后等待输出管道关闭的时间，防止孙进程持有管道导致 Wait 挂起
const waitDelay = 2 * time.Second

// ProbeExecutor 通过 shell 执行探测命令
// stdin 关闭，stdout 与 stderr 合并采集，超时后杀掉整个进程组
type ProbeExecutor struct {
	shell   string
	metrics base.MetricsRecorder

	mu      sync.Mutex
	running map[*exec.Cmd]struct{}
}

// NewProbeExecutor 创建执行器
func NewProbeExecutor(shell string) *ProbeExecutor {
	if shell == "" {
		shell = "sh"
	}
	return &ProbeExecutor{
		shell:   shell,
		running: make(map[*exec.Cmd]struct{}),
	}
}

var _ base.Executor = (*ProbeExecutor)(nil)

// Execute 执行命令
// 返回码: 正常退出码；-1 超时；-2 无法启动或系统错误
// 父 context 取消不会中断已启动的命令，命令只受自身超时约束
func (e *ProbeExecutor) Execute(ctx context.Context, command string, timeout time.Duration) *model.ProbeResult {
	start := time.Now()
	result := e.run(ctx, command, timeout)
	result.Duration = time.Since(start)
	e.metrics.Record(result)

	logger.WithFields(map[string]interface{}{
		"command":     command,
		"return_code": result.ReturnCode,
		"duration":    result.Duration.String(),
	}).Debug("probe finished")

	return result
}

func (e *ProbeExecutor) run(ctx context.Context, command string, timeout time.Duration) *model.ProbeResult {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.shell, "-c", command)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return faultResult(command, err)
	}

	e.track(cmd)
	err := cmd.Wait()
	e.untrack(cmd)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &model.ProbeResult{
			Command:    command,
			Output:     fmt.Sprintf("Command timed out after %ss", strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64)),
			ReturnCode: model.ReturnCodeTimeout,
		}
	}

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return faultResult(command, err)
		}
		code = exitCode(exitErr)
	}

	return &model.ProbeResult{
		Command:    command,
		Output:     strings.TrimSpace(out.String()),
		Success:    code == 0,
		ReturnCode: code,
	}
}

func faultResult(command string, err error) *model.ProbeResult {
	return &model.ProbeResult{
		Command:    command,
		Output:     "Error: " + err.Error(),
		ReturnCode: model.ReturnCodeFault,
	}
}

func (e *ProbeExecutor) track(cmd *exec.Cmd) {
	e.mu.Lock()
	e.running[cmd] = struct{}{}
	e.mu.Unlock()
}

func (e *ProbeExecutor) untrack(cmd *exec.Cmd) {
	e.mu.Lock()
	delete(e.running, cmd)
	e.mu.Unlock()
}

// Running 正在执行的命令数
func (e *ProbeExecutor) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.running)
}

// KillAll 杀掉所有仍在运行的命令，进程退出清理时调用
func (e *ProbeExecutor) KillAll() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for cmd := range e.running {
		if err := killProcessGroup(cmd); err != nil {
			logger.Debugf("kill %d failed: %v", cmd.Process.Pid, err)
			continue
		}
		n++
	}
	return n
}

// Metrics 执行器指标
func (e *ProbeExecutor) Metrics() base.ExecutorMetrics {
	return e.metrics.Snapshot()
}

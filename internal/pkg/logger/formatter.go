// 结构化事件日志
package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LogType 日志类型
type LogType string

const (
	// SystemLog 系统日志 - 记录进程与组件状态
	SystemLog LogType = "system"
	// ScanLog 扫描日志 - 记录扫描阶段与端口任务
	ScanLog LogType = "scan"
)

// LogLevel 封装的日志级别，调用方不直接依赖logrus
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// 扫描阶段
const (
	PhaseDiscovery = "discovery"
	PhasePort      = "port"
	PhaseScan      = "scan"
	PhaseCleanup   = "cleanup"
)

// 扫描状态
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusDegraded  = "degraded"
	StatusFailed    = "failed"
)

// LogScanEvent 记录扫描事件
// 根据状态选择级别：failed -> error，degraded -> warn，running -> debug，其余 info
func LogScanEvent(taskID, target, phase, status string, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}

	fields := logrus.Fields{
		"type":    ScanLog,
		"task_id": taskID,
		"target":  target,
		"phase":   phase,
		"status":  status,
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	entry := LoggerInstance.logger.WithFields(fields)
	msg := fmt.Sprintf("Scan %s %s: %s", phase, status, target)
	switch status {
	case StatusFailed:
		entry.Error(msg)
	case StatusDegraded:
		entry.Warn(msg)
	case StatusRunning:
		entry.Debug(msg)
	default:
		entry.Info(msg)
	}
}

// LogSystemEvent 记录系统事件日志
func LogSystemEvent(component, event, message string, level LogLevel, extraFields map[string]interface{}) {
	if LoggerInstance == nil {
		return
	}

	fields := logrus.Fields{
		"type":      SystemLog,
		"component": component,
		"event":     event,
	}
	for k, v := range extraFields {
		fields[k] = v
	}

	LoggerInstance.logger.WithFields(fields).Log(toLogrusLevel(level), fmt.Sprintf("System event: %s - %s: %s", component, event, message))
}

// toLogrusLevel 将封装的LogLevel转换为logrus.Level
func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

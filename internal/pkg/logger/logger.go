// 日志管理器
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"neoprobe/internal/config"
)

// timestampFormat 毫秒精度，不显示时区
const timestampFormat = "2006-01-02 15:04:05.000"

// LoggerManager 日志管理器
type LoggerManager struct {
	logger *logrus.Logger
	config *config.LogConfig
	rotor  *lumberjack.Logger // 文件输出时非空
}

// LoggerInstance 全局日志实例
var LoggerInstance *LoggerManager

// InitLogger 初始化日志管理器并设为全局实例
// 输出: stdout / stderr / file(lumberjack 轮转)，格式: text / json
// 非法级别回退到 info
func InitLogger(cfg *config.LogConfig) (*LoggerManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("log config cannot be nil")
	}

	lm := &LoggerManager{logger: logrus.New()}
	if err := lm.apply(cfg, true); err != nil {
		return nil, err
	}

	LoggerInstance = lm
	return lm, nil
}

// apply 按配置设置级别、格式与输出；lenient 为 true 时非法级别回退到 info
func (lm *LoggerManager) apply(cfg *config.LogConfig, lenient bool) error {
	level, err := logrus.ParseLevel(cfg.Level)
	invalidLevel := err != nil
	if invalidLevel {
		if !lenient {
			return fmt.Errorf("invalid log level: %w", err)
		}
		level = logrus.InfoLevel
	}

	formatter, err := newFormatter(cfg.Format)
	if err != nil {
		return fmt.Errorf("failed to set log formatter: %w", err)
	}

	out, rotor, err := newOutput(cfg, level)
	if err != nil {
		return fmt.Errorf("failed to set log output: %w", err)
	}

	if lm.rotor != nil && lm.rotor != rotor {
		_ = lm.rotor.Close()
	}

	lm.logger.SetLevel(level)
	lm.logger.SetFormatter(formatter)
	lm.logger.SetOutput(out)
	lm.logger.SetReportCaller(cfg.Caller)
	lm.rotor = rotor
	lm.config = cfg

	if invalidLevel {
		lm.logger.Warnf("Invalid log level '%s', using 'info' as default", cfg.Level)
	}
	return nil
}

func newFormatter(format string) (logrus.Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return &logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
				logrus.FieldKeyFunc:  "function",
				logrus.FieldKeyFile:  "file",
			},
		}, nil
	case "text", "":
		return &logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
			ForceColors:     true,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

// newOutput 构造输出目标，文件输出在 debug 级别时同时写控制台
func newOutput(cfg *config.LogConfig, level logrus.Level) (io.Writer, *lumberjack.Logger, error) {
	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("file path is required when output is file")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotor := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize, // MB
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // 天
			Compress:   cfg.Compress,
		}
		if level == logrus.DebugLevel {
			return io.MultiWriter(os.Stdout, rotor), rotor, nil
		}
		return rotor, rotor, nil
	default:
		return nil, nil, fmt.Errorf("unsupported log output: %s", cfg.Output)
	}
}

// GetLogger 获取logrus实例
func (lm *LoggerManager) GetLogger() *logrus.Logger {
	return lm.logger
}

// GetConfig 获取日志配置
func (lm *LoggerManager) GetConfig() *config.LogConfig {
	return lm.config
}

// UpdateConfig 持续监控模式下配置文件热重载时调用，非法级别直接报错，不改动当前配置
func (lm *LoggerManager) UpdateConfig(newCfg *config.LogConfig) error {
	if newCfg == nil {
		return fmt.Errorf("new config cannot be nil")
	}
	old := lm.config.Level
	if err := lm.apply(newCfg, false); err != nil {
		return err
	}
	if old != newCfg.Level {
		lm.logger.Infof("Log level updated from %s to %s", old, newCfg.Level)
	}
	return nil
}

// Close 关闭日志文件
func (lm *LoggerManager) Close() error {
	if lm.rotor == nil {
		return nil
	}
	return lm.rotor.Close()
}

// 便捷方法：使用全局日志实例

func Debugf(format string, args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Debugf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Infof(format, args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Warnf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if LoggerInstance != nil {
		LoggerInstance.logger.Errorf(format, args...)
	}
}

// WithFields 添加多个字段，未初始化时落到 logrus 标准 logger
func WithFields(fields logrus.Fields) *logrus.Entry {
	if LoggerInstance != nil {
		return LoggerInstance.logger.WithFields(fields)
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

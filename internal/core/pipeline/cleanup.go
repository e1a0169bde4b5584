package pipeline

import (
	"os"
	"sync"

	"neoprobe/internal/pkg/logger"
)

// CleanupRegistry 退出时清理的输出文件
// 小于阈值的文件视为未完成的产物并删除，清理失败只记录日志
type CleanupRegistry struct {
	mu        sync.Mutex
	paths     []string
	threshold int64
}

// NewCleanupRegistry 创建清理登记表，threshold 为字节数
func NewCleanupRegistry(threshold int64) *CleanupRegistry {
	return &CleanupRegistry{threshold: threshold}
}

// Register 登记输出文件
func (c *CleanupRegistry) Register(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
}

// Run 删除小于阈值的已登记文件，返回被删除的路径
func (c *CleanupRegistry) Run() []string {
	c.mu.Lock()
	paths := c.paths
	c.paths = nil
	c.mu.Unlock()

	var removed []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Size() >= c.threshold {
			continue
		}
		if err := os.Remove(p); err != nil {
			logger.Warnf("Failed to remove partial output %s: %v", p, err)
			continue
		}
		logger.Debugf("Removed partial output %s (%d bytes)", p, info.Size())
		removed = append(removed, p)
	}
	return removed
}

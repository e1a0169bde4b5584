/**
 * 扫描任务模型
 * @date: 2026.03.02
 * @description: 一次针对单个目标的探测任务，CLI 参数最终都转换为此结构体
 */

package model

import (
	"time"

	"github.com/google/uuid"
)

// ScanTask 扫描任务
type ScanTask struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`              // 目标 IP 或主机名
	Username  string    `json:"username,omitempty"`  // 认证用户名
	Password  string    `json:"-"`                   // 认证密码，不落盘
	Domain    string    `json:"domain,omitempty"`    // 用户指定的域名，发现阶段提取到的域名优先
	Wordlist  string    `json:"wordlist,omitempty"`  // 目录爆破字典覆盖
	Ports     []int     `json:"ports,omitempty"`     // 指定端口时跳过端口发现
	Users     string    `json:"users,omitempty"`     // 用户名字典覆盖
	Passwords string    `json:"passwords,omitempty"` // 密码字典覆盖
	APITest   bool      `json:"api_test,omitempty"`  // Web 端口追加 API 端点探测
	Evasion   bool      `json:"evasion,omitempty"`   // 规避模式：慢速发现、随机延迟、规避类命令
	CreatedAt time.Time `json:"created_at"`
}

// NewScanTask 创建扫描任务
func NewScanTask(target string) *ScanTask {
	return &ScanTask{
		ID:        uuid.NewString(),
		Target:    target,
		CreatedAt: time.Now(),
	}
}

// HasCredentials 同时提供用户名和密码才视为带凭据扫描
func (t *ScanTask) HasCredentials() bool {
	return t.Username != "" && t.Password != ""
}

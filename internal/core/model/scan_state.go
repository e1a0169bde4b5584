/**
 * 扫描状态
 * @date: 2026.03.04
 * @description: 一次扫描的全部可变状态。端口结果只由汇总协程写入，读操作可以并发。
 */

package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PortStatus 端口任务状态
type PortStatus string

const (
	PortStatusProbed  PortStatus = "probed"  // 正常完成探测
	PortStatusTimeout PortStatus = "timeout" // 超过单端口时限，无结果且风险为 0
	PortStatusSkipped PortStatus = "skipped" // 没有可执行的命令（工具缺失或扫描中断），风险为服务基础分
)

// PortReport 单端口的探测汇总
type PortReport struct {
	Port      int            `json:"port"`
	Service   string         `json:"service"` // 服务目录中的服务名
	Banner    string         `json:"banner,omitempty"`
	Status    PortStatus     `json:"status"`
	Results   []*ProbeResult `json:"results"`
	RiskScore float64        `json:"risk_score"`
	Duration  time.Duration  `json:"duration"`
}

// Succeeded 成功命令数
func (r *PortReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Success {
			n++
		}
	}
	return n
}

// Headers 实现 TabularData 接口
// Port | Service | Status | Probes | Succeeded | Risk | Duration
func (r PortReport) Headers() []string {
	return []string{"Port", "Service", "Status", "Probes", "Succeeded", "Risk", "Duration"}
}

// Rows 实现 TabularData 接口
func (r PortReport) Rows() [][]string {
	return [][]string{{
		strconv.Itoa(r.Port),
		r.Service,
		string(r.Status),
		strconv.Itoa(len(r.Results)),
		strconv.Itoa(r.Succeeded()),
		fmt.Sprintf("%.1f", r.RiskScore),
		r.Duration.Round(time.Millisecond).String(),
	}}
}

// ScanState 一次扫描的状态
type ScanState struct {
	mu sync.RWMutex

	TaskID     string
	Target     string
	Domain     string
	StartedAt  time.Time
	FinishedAt time.Time

	ports       map[int]*PortReport
	findings    *FindingSet
	attackPaths []AttackPath
	threatLevel ThreatLevel
	status      ThreatStatus
}

// NewScanState 创建扫描状态
func NewScanState(task *ScanTask) *ScanState {
	return &ScanState{
		TaskID:      task.ID,
		Target:      task.Target,
		StartedAt:   time.Now(),
		ports:       make(map[int]*PortReport),
		findings:    NewFindingSet(),
		threatLevel: ThreatLow,
		status:      StatusAcceptable,
	}
}

// Findings 发现集合
func (s *ScanState) Findings() *FindingSet {
	return s.findings
}

// RecordPort 写入端口结果，同一端口只接受第一次写入
func (s *ScanState) RecordPort(report *PortReport) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ports[report.Port]; ok {
		return false
	}
	s.ports[report.Port] = report
	return true
}

// Port 获取端口结果
func (s *ScanState) Port(port int) (*PortReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.ports[port]
	return r, ok
}

// Ports 已完成的端口，升序
func (s *ScanState) Ports() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ports := make([]int, 0, len(s.ports))
	for p := range s.ports {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}

// Reports 按端口升序返回全部端口结果
func (s *ScanState) Reports() []*PortReport {
	ports := s.Ports()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*PortReport, 0, len(ports))
	for _, p := range ports {
		out = append(out, s.ports[p])
	}
	return out
}

// Results 端口 -> 命令结果
func (s *ScanState) Results() map[int][]*ProbeResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int][]*ProbeResult, len(s.ports))
	for p, r := range s.ports {
		out[p] = r.Results
	}
	return out
}

// RiskScores 端口 -> 风险分
func (s *ScanState) RiskScores() map[int]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]float64, len(s.ports))
	for p, r := range s.ports {
		out[p] = r.RiskScore
	}
	return out
}

// SetAssessment 写入攻击路径与总体威胁等级
func (s *ScanState) SetAssessment(paths []AttackPath, level ThreatLevel, status ThreatStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attackPaths = paths
	s.threatLevel = level
	s.status = status
}

// AttackPaths 攻击路径
func (s *ScanState) AttackPaths() []AttackPath {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]AttackPath(nil), s.attackPaths...)
}

// Threat 总体威胁等级与状态
func (s *ScanState) Threat() (ThreatLevel, ThreatStatus) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threatLevel, s.status
}

// ScanSnapshot 扫描状态快照，交给外部报告渲染
type ScanSnapshot struct {
	TaskID      string        `json:"task_id"`
	Target      string        `json:"target"`
	Domain      string        `json:"domain,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Ports       []*PortReport `json:"ports"`
	Findings    []Finding     `json:"findings"`
	AttackPaths []AttackPath  `json:"attack_paths"`
	ThreatLevel ThreatLevel   `json:"threat_level"`
	Status      ThreatStatus  `json:"status"`
}

// Snapshot 生成快照
func (s *ScanState) Snapshot() *ScanSnapshot {
	level, status := s.Threat()
	return &ScanSnapshot{
		TaskID:      s.TaskID,
		Target:      s.Target,
		Domain:      s.Domain,
		StartedAt:   s.StartedAt,
		FinishedAt:  s.FinishedAt,
		Ports:       s.Reports(),
		Findings:    s.findings.Sorted(),
		AttackPaths: s.AttackPaths(),
		ThreatLevel: level,
		Status:      status,
	}
}

// JoinPorts 端口列表转为逗号分隔字符串
func JoinPorts(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

package model

import (
	"sort"
	"sync"
)

// Finding 规范化的发现描述，例如 "SMB Signing Disabled (Port 445)"
type Finding string

// FindingSet 进程内去重的发现集合，只增不减
type FindingSet struct {
	mu    sync.Mutex
	seen  map[Finding]struct{}
	order []Finding
}

// NewFindingSet 创建发现集合
func NewFindingSet() *FindingSet {
	return &FindingSet{seen: make(map[Finding]struct{})}
}

// Add 新增发现，已存在时返回 false
func (s *FindingSet) Add(f Finding) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[f]; ok {
		return false
	}
	s.seen[f] = struct{}{}
	s.order = append(s.order, f)
	return true
}

// Len 发现数量
func (s *FindingSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Sorted 按字典序返回全部发现
func (s *FindingSet) Sorted() []Finding {
	s.mu.Lock()
	out := append([]Finding(nil), s.order...)
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Severity 严重等级
type Severity string

const (
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// AttackPathType 攻击路径类型
type AttackPathType string

const (
	PathCredentialReuse     AttackPathType = "CREDENTIAL_REUSE"
	PathDomainController    AttackPathType = "DOMAIN_CONTROLLER"
	PathLateralMovement     AttackPathType = "LATERAL_MOVEMENT"
	PathPrivilegeEscalation AttackPathType = "PRIVILEGE_ESCALATION"
	PathDataExfiltration    AttackPathType = "DATA_EXFILTRATION"
	PathContainerEscape     AttackPathType = "CONTAINER_ESCAPE"
)

// AttackPath 由开放端口组合推导出的攻击路径
type AttackPath struct {
	Type        AttackPathType `json:"type"`
	Description string         `json:"description"`
	Ports       []int          `json:"ports"`
	Severity    Severity       `json:"severity"`
}

// Headers 实现 TabularData 接口
func (p AttackPath) Headers() []string {
	return []string{"Type", "Severity", "Ports", "Description"}
}

// Rows 实现 TabularData 接口
func (p AttackPath) Rows() [][]string {
	return [][]string{{string(p.Type), string(p.Severity), JoinPorts(p.Ports), p.Description}}
}

// ThreatLevel 总体威胁等级
type ThreatLevel string

// ThreatStatus 威胁状态描述
type ThreatStatus string

const (
	ThreatLow      ThreatLevel = "LOW"
	ThreatElevated ThreatLevel = "ELEVATED"
	ThreatHigh     ThreatLevel = "HIGH"
	ThreatCritical ThreatLevel = "CRITICAL"

	StatusAcceptable  ThreatStatus = "ACCEPTABLE"
	StatusConcerning  ThreatStatus = "CONCERNING"
	StatusElevated    ThreatStatus = "ELEVATED"
	StatusCompromised ThreatStatus = "COMPROMISED"
)

package model

import "time"

// CheckCategory 检查类别
type CheckCategory string

const (
	CategoryEnumeration     CheckCategory = "enumeration"
	CategoryAuthentication  CheckCategory = "authentication"
	CategoryEscalation      CheckCategory = "escalation"
	CategoryVulnerabilities CheckCategory = "vulnerabilities"
	CategoryFallback        CheckCategory = "fallback"
	CategoryAPI             CheckCategory = "api"     // Web 端口的 API 端点探测
	CategoryEvasion         CheckCategory = "evasion" // 规避模式下的诱饵/分片/慢速端口探测
)

// PrimaryCategories 主探测阶段的类别顺序
var PrimaryCategories = []CheckCategory{
	CategoryEnumeration,
	CategoryAuthentication,
	CategoryEscalation,
	CategoryVulnerabilities,
}

// RequiresCredentials 除枚举与兜底外的类别都需要凭据
func (c CheckCategory) RequiresCredentials() bool {
	switch c {
	case CategoryAuthentication, CategoryEscalation, CategoryVulnerabilities:
		return true
	default:
		return false
	}
}

// 特殊返回码
const (
	ReturnCodeTimeout = -1 // 命令超时
	ReturnCodeFault   = -2 // 进程无法启动或系统错误
)

// ProbeResult 单条命令的执行结果，创建后不再修改
type ProbeResult struct {
	Command    string        `json:"command"`
	Category   CheckCategory `json:"category"`
	Output     string        `json:"output"`
	Success    bool          `json:"success"`
	ReturnCode int           `json:"return_code"`
	Duration   time.Duration `json:"duration"`
}

// TimedOut 命令是否超时
func (r *ProbeResult) TimedOut() bool {
	return r.ReturnCode == ReturnCodeTimeout
}

// Faulted 命令是否因系统错误未能执行
func (r *ProbeResult) Faulted() bool {
	return r.ReturnCode == ReturnCodeFault
}

// WithOutput 返回替换了输出的副本
func (r *ProbeResult) WithOutput(output string) *ProbeResult {
	cp := *r
	cp.Output = output
	return &cp
}

// WithCategory 返回标记了类别的副本
func (r *ProbeResult) WithCategory(category CheckCategory) *ProbeResult {
	cp := *r
	cp.Category = category
	return &cp
}

package analyzer

import (
	"fmt"
	"strings"

	"neoprobe/internal/core/model"
)

// FindingRecorder 发现去重集合
type FindingRecorder interface {
	Add(f model.Finding) bool
}

// Extractor 从清洗后的输出中提取关键发现
// 规则基于关键字匹配，每条规则对同一端口只产生一个规范字符串
type Extractor struct {
	user     string
	hasCreds bool
	seen     FindingRecorder
}

// NewExtractor 创建提取器，seen 在一次扫描内共享
func NewExtractor(task *model.ScanTask, seen FindingRecorder) *Extractor {
	return &Extractor{
		user:     task.Username,
		hasCreds: task.HasCredentials(),
		seen:     seen,
	}
}

// ExtractResult 从命令结果中提取发现，超时或未能执行的命令不产生发现
// API 端点请求成功且响应含 200 时记录暴露的端点
func (e *Extractor) ExtractResult(res *model.ProbeResult, port int) []model.Finding {
	if res.TimedOut() || res.Faulted() {
		return nil
	}
	found := e.Extract(res.Output, res.Command, port)
	if res.Category == model.CategoryAPI && res.Success && strings.Contains(res.Output, "200") {
		if ep := endpointOf(res.Command); ep != "" {
			f := model.Finding(fmt.Sprintf("Exposed API Endpoint: %s (Port %d)", ep, port))
			if e.seen.Add(f) {
				found = append(found, f)
			}
		}
	}
	return found
}

// endpointOf 取命令中 URL 的路径部分
func endpointOf(command string) string {
	i := strings.Index(command, "://")
	if i < 0 {
		return ""
	}
	rest := command[i+3:]
	if sp := strings.IndexAny(rest, " \t"); sp >= 0 {
		rest = rest[:sp]
	}
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return ""
	}
	return rest[slash:]
}

// Extract 返回本次新增的发现，已记录过的发现不会重复返回
func (e *Extractor) Extract(output, command string, port int) []model.Finding {
	var found []model.Finding
	for _, f := range e.match(output, command, port) {
		if e.seen.Add(f) {
			found = append(found, f)
		}
	}
	return found
}

// match 规则匹配，不做去重
func (e *Extractor) match(output, command string, port int) []model.Finding {
	out := strings.ToLower(output)
	cmd := strings.ToLower(command)

	var found []model.Finding
	add := func(format string, args ...interface{}) {
		found = append(found, model.Finding(fmt.Sprintf(format, args...)))
	}

	// SMB
	if strings.Contains(cmd, "smb") {
		if strings.Contains(out, "signing:false") || strings.Contains(out, "message signing disabled") {
			add("SMB Signing Disabled (Port %d)", port)
		}
		if strings.Contains(out, "guest account") || strings.Contains(out, "guest login") {
			add("SMB Guest Access Enabled (Port %d)", port)
		}
		if strings.Contains(out, "ipc$") && strings.Contains(out, "read") {
			add("IPC$ Share Accessible (Port %d)", port)
		}
		if (hasShare(out, "admin$") || hasShare(out, "c$")) &&
			(strings.Contains(out, "read") || strings.Contains(out, "write")) {
			add("Administrative Shares Found (Port %d)", port)
		}
	}

	// 认证成功，仅在提供凭据时判定
	if e.hasCreds && containsAny(out, "pwn3d!", "[+]", "success", "authenticated") {
		add("Authentication Successful - %s (Port %d)", e.user, port)
	}

	// 域控
	if strings.Contains(out, "domain controller") || (strings.Contains(cmd, "ldap") && strings.Contains(out, "dc=")) {
		add("Domain Controller Identified (Port %d)", port)
	}

	// Kerberos
	if containsAny(out, "kerberoast", "asreproast") && strings.Contains(out, "total of records returned") {
		add("Kerberos Attack Vectors Available (Port %d)", port)
	}

	// Web
	if containsAny(cmd, "http", "curl", "feroxbuster", "gobuster") {
		if strings.Contains(out, "200") && strings.Contains(out, "admin") {
			add("Admin Panel Found (Port %d)", port)
		}
		if strings.Contains(out, "login") && strings.Contains(out, "200") {
			add("Login Portal Found (Port %d)", port)
		}
	}

	// 数据库
	if containsAny(cmd, "mysql", "mssql", "postgres") && strings.Contains(out, "[+]") {
		add("Database Access Granted (Port %d)", port)
	}

	return found
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// hasShare 匹配独立的共享名，避免 ipc$ 被当作 c$
func hasShare(s, share string) bool {
	for from := 0; ; {
		idx := strings.Index(s[from:], share)
		if idx < 0 {
			return false
		}
		idx += from
		if idx == 0 || !isWordByte(s[idx-1]) {
			return true
		}
		from = idx + 1
	}
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

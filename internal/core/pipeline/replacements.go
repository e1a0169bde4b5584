package pipeline

import (
	"neoprobe/internal/config"
	"neoprobe/internal/core/model"
	"neoprobe/internal/pkg/tool_adapter/command"
)

// 模板变量名
const (
	VarIP                = "ip"
	VarPort              = "port"
	VarUser              = "user"
	VarPass              = "pass"
	VarDomain            = "domain"
	VarDomainDC          = "domain_dc"
	VarWordlist          = "wordlist"
	VarFeroxWordlist     = "ferox_wordlist"
	VarSNMPWordlist      = "snmp_wordlist"
	VarUsers             = "users"
	VarPasswords         = "passwords"
	VarAPIWordlist       = "api_wordlist"
	VarSubdomainWordlist = "subdomain_wordlist"
)

// ResolveDomain 确定扫描使用的域名
// 发现阶段提取的域名优先，其次是用户指定的域名；两者都没有时返回空
// 提取到的域名含 shell 特殊字符时丢弃
func ResolveDomain(task *model.ScanTask, discovered string) string {
	if discovered != "" && command.IsShellSafe(discovered) {
		return discovered
	}
	return task.Domain
}

// BuildReplacements 构建一次扫描的模板变量表，port 由每个端口任务单独绑定
// 没有真实域名时 {domain} 回退为目标地址，{domain_dc} 为空
// 凭据与字典路径来自用户输入，按 shell 单参数转义
func BuildReplacements(task *model.ScanTask, domain string, wl *config.WordlistConfig) command.Replacements {
	vars := command.Replacements{
		VarIP:       task.Target,
		VarUser:     command.ShellQuote(task.Username),
		VarPass:     command.ShellQuote(task.Password),
		VarDomain:   task.Target,
		VarDomainDC: "",
	}
	if domain != "" {
		vars[VarDomain] = domain
		vars[VarDomainDC] = command.DomainComponents(domain)
	}

	if wl == nil {
		wl = config.DefaultConfig().Wordlists
	}
	vars[VarWordlist] = command.ShellQuote(firstNonEmpty(task.Wordlist, wl.Dirbuster))
	vars[VarFeroxWordlist] = command.ShellQuote(wl.Feroxbuster)
	vars[VarSNMPWordlist] = command.ShellQuote(wl.SNMP)
	vars[VarUsers] = command.ShellQuote(firstNonEmpty(task.Users, wl.Users))
	vars[VarPasswords] = command.ShellQuote(firstNonEmpty(task.Passwords, wl.Passwords))
	vars[VarAPIWordlist] = command.ShellQuote(wl.API)
	vars[VarSubdomainWordlist] = command.ShellQuote(wl.Subdomains)

	return vars
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

/**
 * 端口发现
 * @date: 2026.03.06
 * @description: 为探测调度提供 (端口, 服务) 列表与可选的 AD 域名。
 *               默认通过执行器运行 nmap 并解析文本输出，也支持直接指定端口跳过 nmap。
 */
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"neoprobe/internal/config"
	"neoprobe/internal/core/model"
	"neoprobe/internal/executor/base"
	"neoprobe/internal/pkg/logger"
)

// ErrNoOpenPorts 没有发现开放端口
var ErrNoOpenPorts = errors.New("no open ports discovered")

// UnknownService 未识别的服务名
const UnknownService = "unknown"

// Result 发现结果
type Result struct {
	Ports  []model.OpenPort `json:"ports"`
	Domain string           `json:"domain,omitempty"` // 从 LDAP 服务横幅中提取的域名
	Raw    string           `json:"-"`                // 发现工具原始输出
}

// Discoverer 端口发现接口
type Discoverer interface {
	Discover(ctx context.Context, target string) (*Result, error)
}

// NmapDiscoverer 通过 nmap 服务识别发现端口
type NmapDiscoverer struct {
	executor    base.Executor
	nmapPath    string
	args        string
	evasionArgs string
	timeout     time.Duration
}

// NewNmapDiscoverer 创建 nmap 发现器
func NewNmapDiscoverer(executor base.Executor, cfg *config.DiscoveryConfig) *NmapDiscoverer {
	return &NmapDiscoverer{
		executor:    executor,
		nmapPath:    cfg.NmapPath,
		args:        cfg.Args,
		evasionArgs: cfg.EvasionArgs,
		timeout:     cfg.Timeout,
	}
}

// Evasive 返回使用规避参数（跳过主机发现、慢速时序）的副本，未配置规避参数时不变
func (d *NmapDiscoverer) Evasive() *NmapDiscoverer {
	cp := *d
	if strings.TrimSpace(d.evasionArgs) != "" {
		cp.args = d.evasionArgs
	}
	return &cp
}

// Command 构建 nmap 命令
func (d *NmapDiscoverer) Command(target string) string {
	parts := []string{d.nmapPath}
	if args := strings.TrimSpace(d.args); args != "" {
		parts = append(parts, args)
	}
	return strings.Join(append(parts, target), " ")
}

// Discover 运行 nmap 并解析开放端口与域名
// nmap 返回非零退出码时仍尝试解析已输出的内容
func (d *NmapDiscoverer) Discover(ctx context.Context, target string) (*Result, error) {
	cmd := d.Command(target)
	logger.Infof("[%s] Running port discovery: %s", target, cmd)

	res := d.executor.Execute(ctx, cmd, d.timeout)
	switch {
	case res.TimedOut():
		return nil, fmt.Errorf("port discovery timed out after %s", d.timeout)
	case res.Faulted():
		return nil, fmt.Errorf("port discovery failed: %s", res.Output)
	case !res.Success:
		logger.Warnf("[%s] nmap exited with code %d, parsing partial output", target, res.ReturnCode)
	}

	ports := ParsePorts(res.Output)
	if len(ports) == 0 {
		return &Result{Raw: res.Output}, ErrNoOpenPorts
	}

	domain := ExtractDomain(res.Output)
	if domain != "" {
		logger.Infof("[%s] Discovered domain: %s", target, domain)
	}

	return &Result{Ports: ports, Domain: domain, Raw: res.Output}, nil
}

// StaticDiscoverer 使用用户指定的端口列表，不运行 nmap
type StaticDiscoverer struct {
	ports []int
}

// NewStaticDiscoverer 创建静态发现器
func NewStaticDiscoverer(ports []int) *StaticDiscoverer {
	return &StaticDiscoverer{ports: append([]int(nil), ports...)}
}

// Discover 返回去重排序后的端口列表
func (d *StaticDiscoverer) Discover(_ context.Context, _ string) (*Result, error) {
	seen := make(map[int]struct{}, len(d.ports))
	var ports []model.OpenPort
	for _, p := range d.ports {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		ports = append(ports, model.OpenPort{Port: p, Service: UnknownService})
	}
	if len(ports) == 0 {
		return &Result{}, ErrNoOpenPorts
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Port < ports[j].Port })
	return &Result{Ports: ports}, nil
}

// ParsePorts 解析 nmap 文本输出中的 "N/tcp open service" 行
// open、filtered、open|filtered 状态的端口视为可探测，结果按端口去重升序
func ParsePorts(output string) []model.OpenPort {
	seen := make(map[int]struct{})
	var ports []model.OpenPort

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) < 2 {
			continue
		}
		portStr, proto, ok := strings.Cut(fields[0], "/")
		if !ok || proto != "tcp" {
			continue
		}
		if !isProbeableState(fields[1]) {
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port <= 0 || port > 65535 {
			continue
		}
		if _, dup := seen[port]; dup {
			continue
		}
		seen[port] = struct{}{}

		service := UnknownService
		if len(fields) >= 3 {
			service = fields[2]
		}
		ports = append(ports, model.OpenPort{Port: port, Service: service})
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i].Port < ports[j].Port })
	return ports
}

func isProbeableState(state string) bool {
	switch state {
	case "open", "filtered", "open|filtered":
		return true
	default:
		return false
	}
}

var domainPattern = func() *regexp2.Regexp {
	re := regexp2.MustCompile(`Microsoft Windows Active Directory LDAP \(Domain:\s*([^,\)]+)`, regexp2.IgnoreCase)
	re.MatchTimeout = 500 * time.Millisecond
	return re
}()

// ExtractDomain 从 LDAP 服务横幅中提取 AD 域名
// 去掉 nmap 附加的站点后缀 "0." 和结尾的点；不含点或过短的候选会被忽略
func ExtractDomain(output string) string {
	m, err := domainPattern.FindStringMatch(output)
	for m != nil && err == nil {
		if domain := cleanDomain(m.GroupByNumber(1).String()); domain != "" {
			return domain
		}
		m, err = domainPattern.FindNextMatch(m)
	}
	if err != nil {
		logger.Debugf("domain pattern match failed: %v", err)
	}
	return ""
}

func cleanDomain(candidate string) string {
	d := strings.TrimSpace(candidate)
	d = strings.TrimSuffix(d, "0.")
	d = strings.TrimSpace(strings.TrimRight(d, "."))
	if !strings.Contains(d, ".") || len(d) <= 3 {
		return ""
	}
	return d
}

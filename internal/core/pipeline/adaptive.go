package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"neoprobe/internal/core/catalog"
	"neoprobe/internal/core/model"
)

// APIEndpoints --api-test 在 Web 端口上请求的常见 API 与管理端点
var APIEndpoints = []string{
	"/api/v1/",
	"/api/v2/",
	"/api/v3/",
	"/graphql",
	"/swagger/",
	"/swagger.json",
	"/health",
	"/metrics",
	"/.well-known/",
	"/admin/",
	"/debug/",
	"/dev/",
	"/actuator/",
	"/jolokia/",
	"/management/",
	"/status",
}

// EvasionTemplates --evasion 时对每个端口追加的诱饵、分片与慢速扫描
var EvasionTemplates = []string{
	"nmap -D RND:10 -sS -p {port} {ip}",
	"nmap -f -p {port} {ip}",
	"nmap -T1 -p {port} {ip}",
}

// webPorts 服务名无法判定时按端口号识别 Web 服务
var webPorts = map[int]struct{}{
	80: {}, 443: {}, 3000: {}, 5000: {}, 8000: {}, 8008: {}, 8080: {}, 8443: {}, 8888: {}, 9090: {},
}

// plannedCheck 端口任务中待提交的一条模板
type plannedCheck struct {
	template string
	category model.CheckCategory
	timeout  time.Duration
}

// planChecks 主探测阶段的提交顺序：目录类别 -> API 端点 -> 规避扫描
func (s *PortScheduler) planChecks(task *model.ScanTask, port model.OpenPort, profile *catalog.ServiceProfile) []plannedCheck {
	var plan []plannedCheck
	for _, cat := range SelectCategories(task) {
		for _, tmpl := range profile.Templates(cat) {
			plan = append(plan, plannedCheck{template: tmpl, category: cat, timeout: s.cfg.ProbeTimeout})
		}
	}
	if task.APITest {
		for _, tmpl := range APITemplates(port) {
			plan = append(plan, plannedCheck{template: tmpl, category: model.CategoryAPI, timeout: s.cfg.APITimeout})
		}
	}
	if task.Evasion {
		for _, tmpl := range EvasionTemplates {
			plan = append(plan, plannedCheck{template: tmpl, category: model.CategoryEvasion, timeout: s.cfg.ProbeTimeout})
		}
	}
	return plan
}

// APITemplates Web 端口的 API 端点请求模板，非 Web 端口返回 nil
func APITemplates(port model.OpenPort) []string {
	scheme := webScheme(port)
	if scheme == "" {
		return nil
	}
	out := make([]string, 0, len(APIEndpoints))
	for _, ep := range APIEndpoints {
		out = append(out, fmt.Sprintf("curl -k -s -I %s://{ip}:{port}%s --max-time 15", scheme, ep))
	}
	return out
}

// webScheme 443/8443 与 ssl/https 服务走 https
func webScheme(port model.OpenPort) string {
	svc := strings.ToLower(port.Service)
	_, known := webPorts[port.Port]
	if !known && !strings.Contains(svc, "http") {
		return ""
	}
	if port.Port == 443 || port.Port == 8443 || strings.Contains(svc, "https") || strings.Contains(svc, "ssl") {
		return "https"
	}
	return "http"
}

// evasionDelay 在 [min, max] 内随机取一个等待时长
func (s *PortScheduler) evasionDelay() time.Duration {
	lo, hi := s.cfg.EvasionDelayMin, s.cfg.EvasionDelayMax
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

// sleepContext 等待 d，ctx 先结束时返回 false
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

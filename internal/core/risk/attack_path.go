package risk

import (
	"fmt"
	"sort"

	"neoprobe/internal/core/model"
)

var (
	loginPorts = []int{21, 22, 445, 3389, 5985}
	dcPorts    = []int{88, 389, 445}
	remoteMgmt = []int{5985, 3389}
	dataPorts  = []int{3306, 5432, 27017, 6379, 9200}
)

// AttackPaths 根据端口组合推导攻击路径，规则相互独立，输出顺序固定
func AttackPaths(ports []int) []model.AttackPath {
	open := make(map[int]bool, len(ports))
	for _, p := range ports {
		open[p] = true
	}

	var paths []model.AttackPath

	if present := presentPorts(open, loginPorts); len(present) >= 2 {
		paths = append(paths, model.AttackPath{
			Type:        model.PathCredentialReuse,
			Description: fmt.Sprintf("Multiple authentication services detected on ports %s", model.JoinPorts(present)),
			Ports:       present,
			Severity:    model.SeverityHigh,
		})
	}

	if allPresent(open, dcPorts) {
		paths = append(paths, model.AttackPath{
			Type:        model.PathDomainController,
			Description: "Domain Controller detected - high value target",
			Ports:       append([]int(nil), dcPorts...),
			Severity:    model.SeverityCritical,
		})
	}

	if open[445] && open[22] {
		paths = append(paths, model.AttackPath{
			Type:        model.PathLateralMovement,
			Description: "SMB + SSH combination enables potential lateral movement",
			Ports:       []int{22, 445},
			Severity:    model.SeverityCritical,
		})
	}

	if present := presentPorts(open, remoteMgmt); len(present) > 0 {
		paths = append(paths, model.AttackPath{
			Type:        model.PathPrivilegeEscalation,
			Description: "Remote administration services detected",
			Ports:       present,
			Severity:    model.SeverityHigh,
		})
	}

	if present := presentPorts(open, dataPorts); len(present) > 0 {
		paths = append(paths, model.AttackPath{
			Type:        model.PathDataExfiltration,
			Description: fmt.Sprintf("Database services exposed on ports %s", model.JoinPorts(present)),
			Ports:       present,
			Severity:    model.SeverityCritical,
		})
	}

	if open[2375] {
		paths = append(paths, model.AttackPath{
			Type:        model.PathContainerEscape,
			Description: "Unprotected Docker daemon detected",
			Ports:       []int{2375},
			Severity:    model.SeverityCritical,
		})
	}

	return paths
}

// presentPorts 返回 candidates 中开放的端口，升序
func presentPorts(open map[int]bool, candidates []int) []int {
	var out []int
	for _, p := range candidates {
		if open[p] {
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

func allPresent(open map[int]bool, ports []int) bool {
	for _, p := range ports {
		if !open[p] {
			return false
		}
	}
	return true
}

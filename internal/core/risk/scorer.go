// Package risk 端口风险评分、攻击路径与总体威胁等级
package risk

import (
	"strings"

	"neoprobe/internal/core/model"
)

const (
	// AuthSuccessBonus 认证类命令成功时的加分
	AuthSuccessBonus = 1.5
	// PrivilegeKeywordBonus 输出包含管理员权限关键字时的加分
	PrivilegeKeywordBonus = 1.0

	MinScore = 0.0
	MaxScore = 10.0
)

// privilegeKeywords 管理员权限关键字，小写匹配
var privilegeKeywords = []string{"admin", "pwn3d!"}

// Score 计算端口风险分
// 基础分来自服务画像，认证类命令成功加 1.5，输出含管理员关键字加 1.0，结果限制在 [0,10]
// 认证类命令按结果的类别标签判断，而非命令文本
func Score(base float64, results []*model.ProbeResult) float64 {
	score := base

	if authSucceeded(results) {
		score += AuthSuccessBonus
	}
	if privilegeIndicated(results) {
		score += PrivilegeKeywordBonus
	}

	return clamp(score)
}

func authSucceeded(results []*model.ProbeResult) bool {
	for _, r := range results {
		if r.Category == model.CategoryAuthentication && r.Success {
			return true
		}
	}
	return false
}

func privilegeIndicated(results []*model.ProbeResult) bool {
	for _, r := range results {
		if r.TimedOut() || r.Faulted() {
			continue
		}
		out := strings.ToLower(r.Output)
		for _, kw := range privilegeKeywords {
			if strings.Contains(out, kw) {
				return true
			}
		}
	}
	return false
}

func clamp(v float64) float64 {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

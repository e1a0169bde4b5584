package risk

import "neoprobe/internal/core/model"

// OverallThreatLevel 由各端口风险分得出总体威胁等级
//
//	任一端口 >= 9.0                     -> CRITICAL / COMPROMISED
//	多于一个端口 >= 7.0 或最高分 >= 8.0  -> HIGH / ELEVATED
//	任一端口 >= 7.0                     -> ELEVATED / CONCERNING
//	其余（包括没有端口）                 -> LOW / ACCEPTABLE
func OverallThreatLevel(scores map[int]float64) (model.ThreatLevel, model.ThreatStatus) {
	if len(scores) == 0 {
		return model.ThreatLow, model.StatusAcceptable
	}

	maxScore := 0.0
	high := 0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
		if s >= 7.0 {
			high++
		}
	}

	switch {
	case maxScore >= 9.0:
		return model.ThreatCritical, model.StatusCompromised
	case high > 1 || maxScore >= 8.0:
		return model.ThreatHigh, model.StatusElevated
	case high > 0:
		return model.ThreatElevated, model.StatusConcerning
	default:
		return model.ThreatLow, model.StatusAcceptable
	}
}

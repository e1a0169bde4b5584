package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"neoprobe/internal/config"
	"neoprobe/internal/core/model"
	"neoprobe/internal/core/risk"
	"neoprobe/internal/core/scanner/discovery"
	"neoprobe/internal/pkg/logger"
)

// ScanRunner 单目标扫描编排
// Discovery -> Replacements -> PortScheduler -> AttackPaths/ThreatLevel
type ScanRunner struct {
	cfg        *config.Config
	task       *model.ScanTask
	discoverer discovery.Discoverer
	scheduler  *PortScheduler
}

// NewScanRunner 创建扫描编排器
func NewScanRunner(cfg *config.Config, task *model.ScanTask, discoverer discovery.Discoverer, scheduler *PortScheduler) *ScanRunner {
	return &ScanRunner{
		cfg:        cfg,
		task:       task,
		discoverer: discoverer,
		scheduler:  scheduler,
	}
}

// Run 执行一轮完整扫描
// 没有开放端口不视为错误，返回只含评估结果的 ScanState
func (r *ScanRunner) Run(ctx context.Context) (*model.ScanState, error) {
	state := model.NewScanState(r.task)
	target := r.task.Target

	logger.LogScanEvent(r.task.ID, target, logger.PhaseDiscovery, logger.StatusRunning, nil)
	found, err := r.discoverer.Discover(ctx, target)
	switch {
	case errors.Is(err, discovery.ErrNoOpenPorts):
		logger.Infof("[%s] No open ports found", target)
		r.finish(state)
		return state, nil
	case err != nil:
		logger.LogScanEvent(r.task.ID, target, logger.PhaseDiscovery, logger.StatusFailed, map[string]interface{}{
			"error": err.Error(),
		})
		return state, fmt.Errorf("port discovery failed: %w", err)
	}

	logger.LogScanEvent(r.task.ID, target, logger.PhaseDiscovery, logger.StatusCompleted, map[string]interface{}{
		"ports":  model.JoinPorts(model.PortNumbers(found.Ports)),
		"domain": found.Domain,
	})

	domain := ResolveDomain(r.task, found.Domain)
	state.Domain = domain
	vars := BuildReplacements(r.task, domain, r.cfg.Wordlists)

	if err := r.scheduler.Schedule(ctx, r.task, vars, found.Ports, state); err != nil {
		return state, err
	}

	r.finish(state)
	return state, nil
}

// finish 计算攻击路径与总体威胁等级
func (r *ScanRunner) finish(state *model.ScanState) {
	paths := risk.AttackPaths(state.Ports())
	level, status := risk.OverallThreatLevel(state.RiskScores())
	state.SetAssessment(paths, level, status)
	state.FinishedAt = time.Now()

	logger.LogScanEvent(r.task.ID, r.task.Target, logger.PhaseScan, logger.StatusCompleted, map[string]interface{}{
		"ports":        len(state.Ports()),
		"findings":     state.Findings().Len(),
		"attack_paths": len(paths),
		"threat_level": string(level),
		"duration":     state.FinishedAt.Sub(state.StartedAt).Round(time.Millisecond).String(),
	})
}

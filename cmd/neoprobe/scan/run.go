package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"neoprobe/internal/config"
	"neoprobe/internal/core/catalog"
	"neoprobe/internal/core/model"
	"neoprobe/internal/core/options"
	"neoprobe/internal/core/pipeline"
	"neoprobe/internal/core/reporter"
	"neoprobe/internal/core/scanner/discovery"
	"neoprobe/internal/executor/manager"
	"neoprobe/internal/executor/system"
	"neoprobe/internal/pkg/logger"
	"neoprobe/internal/pkg/monitor"

	"github.com/pterm/pterm"
)

// session 一次 scan 命令的生命周期，持续监控模式下包含多轮扫描
type session struct {
	opts       *options.ScanProbeOptions
	cfg        *config.Config
	configPath string

	executor *system.ProbeExecutor
	cleanup  *pipeline.CleanupRegistry
	host     *monitor.HostInfo
}

func newSession(opts *options.ScanProbeOptions, cfg *config.Config, configPath string) *session {
	return &session{
		opts:       opts,
		cfg:        cfg,
		configPath: configPath,
		executor:   system.NewProbeExecutor(cfg.Scan.Shell),
		cleanup:    pipeline.NewCleanupRegistry(cfg.Output.CleanupThreshold),
		host:       monitor.GetHostInfo(),
	}
}

func (s *session) run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// done 先于 stop 关闭，正常退出时不会被当作中断
	done := make(chan struct{})
	defer close(done)
	go s.forceExitOnSecondSignal(ctx, done)
	defer s.executor.KillAll()
	if logger.LoggerInstance != nil {
		defer logger.LoggerInstance.Close()
	}

	if !s.cfg.Continuous.Enabled {
		err := s.runCycle(ctx, s.cfg)
		s.finish(ctx)
		return err
	}

	configs, stopWatch := s.watchConfig()
	defer stopWatch()
	runContinuous(ctx, configs, s.runCycle)
	s.finish(ctx)
	return nil
}

// runContinuous 循环扫描直到中断，每轮开始时取最新配置，间隔也以该配置为准
func runContinuous(ctx context.Context, configs func() *config.Config, cycle func(context.Context, *config.Config) error) {
	for n := 1; ; n++ {
		cfg := configs()
		pterm.DefaultSection.Printf("Cycle #%d", n)
		if err := cycle(ctx, cfg); err != nil {
			pterm.Error.Printfln("Cycle #%d failed: %v", n, err)
		}
		if !waitInterval(ctx, cfg.Continuous.Interval) {
			return
		}
	}
}

// forceExitOnSecondSignal 第一次中断等待在途命令结束，第二次中断直接终止子进程并退出
func (s *session) forceExitOnSecondSignal(ctx context.Context, done <-chan struct{}) {
	if !awaitInterrupt(ctx, done) {
		return
	}
	pterm.Warning.Println("Interrupt received, waiting for running probes (press Ctrl+C again to force exit)")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	killed := s.executor.KillAll()
	s.cleanupPartial()
	logger.LogSystemEvent("scan", "force_exit", fmt.Sprintf("killed %d running probes", killed), logger.WarnLevel, nil)
	os.Exit(130)
}

// awaitInterrupt 阻塞到收到中断 (true) 或会话结束 (false)
func awaitInterrupt(ctx context.Context, done <-chan struct{}) bool {
	select {
	case <-done:
		return false
	case <-ctx.Done():
		select {
		case <-done:
			return false
		default:
			return true
		}
	}
}

// finish 中断退出时删除未写完的导出文件
func (s *session) finish(ctx context.Context) {
	if ctx.Err() != nil {
		s.cleanupPartial()
	}
}

func (s *session) cleanupPartial() {
	for _, path := range s.cleanup.Run() {
		pterm.Info.Printfln("Removed incomplete output %s", path)
	}
}

// watchConfig 持续监控模式下监听配置文件，返回每轮扫描使用的配置与停止监听的函数
func (s *session) watchConfig() (func() *config.Config, func()) {
	static := func() *config.Config { return s.cfg }
	noop := func() {}
	if s.configPath == "" {
		return static, noop
	}

	watcher, err := config.NewConfigWatcher(s.configPath, s.cfg)
	if err != nil {
		pterm.Warning.Printfln("Config hot reload disabled: %v", err)
		return static, noop
	}
	watcher.OnError(func(err error) {
		logger.Warnf("config reload: %v", err)
	})
	watcher.AddCallback(func(oldCfg, newCfg *config.Config) error {
		// 控制台日志级别由命令行决定，只同步文件日志配置
		if newCfg.Log.Output == "file" && logger.LoggerInstance != nil {
			return logger.LoggerInstance.UpdateConfig(newCfg.Log)
		}
		return nil
	})
	watcher.AddCallback(func(oldCfg, newCfg *config.Config) error {
		pterm.Info.Println("Config file changed, new settings apply from the next cycle")
		return nil
	})
	if err := watcher.Start(); err != nil {
		pterm.Warning.Printfln("Config hot reload disabled: %v", err)
		_ = watcher.Stop()
		return static, noop
	}

	current := func() *config.Config {
		cfg := watcher.GetConfig().Clone()
		s.opts.ApplyToConfig(cfg)
		if err := cfg.Validate(); err != nil {
			pterm.Warning.Printfln("Reloaded config is invalid, keeping previous settings: %v", err)
			return s.cfg
		}
		return cfg
	}
	stop := func() {
		if err := watcher.Stop(); err != nil {
			logger.Warnf("config watcher stop: %v", err)
		}
	}
	return current, stop
}

// runCycle 执行一轮扫描并输出报告
func (s *session) runCycle(ctx context.Context, cfg *config.Config) error {
	cat, err := catalog.Resolve(cfg.Scan.CatalogFile)
	if err != nil {
		return err
	}

	task := s.opts.ToTask()

	scheduler := pipeline.NewPortScheduler(cat, s.executor, manager.NewToolGate(nil, nil), cfg.Scan)
	scheduler.OnPortDone(printPortDone)

	var disc discovery.Discoverer
	if len(task.Ports) > 0 {
		disc = discovery.NewStaticDiscoverer(task.Ports)
	} else {
		nmap := discovery.NewNmapDiscoverer(s.executor, cfg.Discovery)
		if task.Evasion {
			nmap = nmap.Evasive()
		}
		disc = nmap
		pterm.Info.Printfln("Discovering open ports on %s ...", task.Target)
	}

	start := time.Now()
	state, err := pipeline.NewScanRunner(cfg, task, disc, scheduler).Run(ctx)
	if err != nil {
		return err
	}
	if len(state.Ports()) == 0 && ctx.Err() == nil {
		pterm.Warning.Printfln("No open ports found on %s", task.Target)
	}

	snap := state.Snapshot()
	multi := reporter.NewMultiReporter(
		reporter.NewConsoleReporter(s.opts.Verbose).WithHostInfo(s.host).WithMetrics(s.executor.Metrics),
	)
	paths, err := exportPaths(cfg.Output, task.Target, start)
	if err != nil {
		return err
	}
	for _, path := range paths {
		s.cleanup.Register(path)
		switch filepath.Ext(path) {
		case ".json":
			multi.Add(reporter.NewJSONReporter(path))
		case ".csv":
			multi.Add(reporter.NewCsvReporter(path))
		}
	}

	if err := multi.Report(ctx, snap); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	for _, path := range paths {
		pterm.Success.Printfln("Results saved to %s", path)
	}
	pterm.Info.Printfln("Scan finished in %s", time.Since(start).Round(time.Millisecond))

	if errors.Is(ctx.Err(), context.Canceled) {
		pterm.Warning.Println("Scan interrupted, results are partial")
	}
	return nil
}

// exportPaths 根据输出配置生成本轮的导出文件路径，并确保目录存在
func exportPaths(out *config.OutputConfig, target string, ts time.Time) ([]string, error) {
	var exts []string
	if out.JSON {
		exts = append(exts, "json")
	}
	if out.CSV {
		exts = append(exts, "csv")
	}
	if len(exts) == 0 {
		return nil, nil
	}

	dir := out.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	paths := make([]string, 0, len(exts))
	for _, ext := range exts {
		paths = append(paths, filepath.Join(dir, reporter.FileName(target, ext, ts)))
	}
	return paths, nil
}

// waitInterval 等待下一轮，期间收到中断返回 false
func waitInterval(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	pterm.Info.Printfln("Next cycle in %s", d)

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func printPortDone(r *model.PortReport) {
	msg := fmt.Sprintf("Port %d (%s): %d/%d probes succeeded, risk %.1f", r.Port, r.Service, r.Succeeded(), len(r.Results), r.RiskScore)
	switch r.Status {
	case model.PortStatusTimeout:
		pterm.Warning.Printfln("Port %d (%s): timed out after %s", r.Port, r.Service, r.Duration.Round(time.Second))
	case model.PortStatusSkipped:
		pterm.Warning.Printfln("Port %d (%s): no runnable checks, risk %.1f", r.Port, r.Service, r.RiskScore)
	default:
		pterm.Success.Println(msg)
	}
}

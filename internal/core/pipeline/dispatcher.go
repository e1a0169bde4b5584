package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/semaphore"

	"neoprobe/internal/config"
	"neoprobe/internal/core/analyzer"
	"neoprobe/internal/core/catalog"
	"neoprobe/internal/core/model"
	"neoprobe/internal/core/risk"
	"neoprobe/internal/executor/base"
	"neoprobe/internal/pkg/logger"
	"neoprobe/internal/pkg/tool_adapter/command"
)

// ErrPortTaskTimeout 端口任务超过总时限
var ErrPortTaskTimeout = errors.New("port task timed out")

// ProgressFunc 端口完成回调，在汇总协程中依次调用
type ProgressFunc func(report *model.PortReport)

// PortScheduler 端口探测调度器
// 外层 ants 协程池按端口并发，内层信号量限制单端口内的命令并发，
// 同时运行的子进程数不超过 outer × inner。
// 端口结果通过 channel 交给唯一的汇总协程写入 ScanState。
type PortScheduler struct {
	catalog  *catalog.Catalog
	executor base.Executor
	gate     base.ToolChecker
	cfg      config.ScanConfig
	progress ProgressFunc
}

// NewPortScheduler 创建调度器
func NewPortScheduler(cat *catalog.Catalog, executor base.Executor, gate base.ToolChecker, cfg *config.ScanConfig) *PortScheduler {
	return &PortScheduler{
		catalog:  cat,
		executor: executor,
		gate:     gate,
		cfg:      *cfg,
	}
}

// OnPortDone 设置端口完成回调
func (s *PortScheduler) OnPortDone(fn ProgressFunc) {
	s.progress = fn
}

// portJob 外层池的任务
type portJob struct {
	ctx  context.Context
	task *model.ScanTask
	vars command.Replacements
	port model.OpenPort
	emit func(portOutcome)
}

// portOutcome 端口任务产出，每个已提交的端口恰好一个
type portOutcome struct {
	port     model.OpenPort
	profile  *catalog.ServiceProfile
	results  []*model.ProbeResult
	timedOut bool
	aborted  bool // 扫描中断且没有任何结果，不写入 ScanState
	duration time.Duration
}

// Schedule 探测全部端口，阻塞直到已提交的端口任务全部完成
// ctx 取消后不再提交新端口，已提交端口中正在运行的命令继续到完成或自身超时
func (s *PortScheduler) Schedule(ctx context.Context, task *model.ScanTask, vars command.Replacements, ports []model.OpenPort, state *model.ScanState) error {
	ports = uniquePorts(ports)
	if len(ports) == 0 {
		return nil
	}

	outcomes := make(chan portOutcome, len(ports))
	emit := func(o portOutcome) { outcomes <- o }

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(s.cfg.OuterWorkers, func(item interface{}) {
		defer wg.Done()
		s.runPort(item.(portJob))
	})
	if err != nil {
		return fmt.Errorf("failed to create port worker pool: %w", err)
	}
	defer pool.Release()

	aggregated := make(chan struct{})
	go func() {
		defer close(aggregated)
		s.aggregate(task, state, outcomes)
	}()

	for i, p := range ports {
		if ctx.Err() != nil {
			logger.Warnf("[%s] Shutdown requested, %d ports not scheduled", task.Target, len(ports)-i)
			break
		}
		wg.Add(1)
		if err := pool.Invoke(portJob{ctx: ctx, task: task, vars: vars, port: p, emit: emit}); err != nil {
			wg.Done()
			logger.Errorf("[%s:%d] Failed to submit port task: %v", task.Target, p.Port, err)
		}
	}

	wg.Wait()
	close(outcomes)
	<-aggregated

	return nil
}

// runPort 执行单个端口任务
// 超过端口总时限时立即上报超时结果，然后等待在途命令结束再释放外层 worker
func (s *PortScheduler) runPort(job portJob) {
	start := time.Now()
	profile := s.catalog.Lookup(job.port.Port)

	taskCtx, cancel := context.WithTimeout(job.ctx, s.cfg.PortTaskTimeout)
	defer cancel()

	done := make(chan []*model.ProbeResult, 1)
	go func() { done <- s.probePort(taskCtx, job, profile) }()

	out := portOutcome{port: job.port, profile: profile}
	select {
	case out.results = <-done:
	case <-taskCtx.Done():
		if job.ctx.Err() == nil {
			out.timedOut = true
			out.duration = time.Since(start)
			job.emit(out)
			<-done
			return
		}
		out.results = <-done
	}

	out.duration = time.Since(start)
	out.aborted = len(out.results) == 0 && job.ctx.Err() != nil
	job.emit(out)
}

// probePort 主探测（含 API 端点与规避扫描）+ 兜底探测
func (s *PortScheduler) probePort(ctx context.Context, job portJob, profile *catalog.ServiceProfile) []*model.ProbeResult {
	run := &portRun{
		scheduler: s,
		ctx:       ctx,
		target:    job.task.Target,
		port:      job.port.Port,
		vars:      job.vars.With(VarPort, strconv.Itoa(job.port.Port)),
		evasion:   job.task.Evasion,
		executed:  newCommandSet(),
		sem:       semaphore.NewWeighted(int64(s.cfg.InnerWorkers)),
		results:   make(map[int]*model.ProbeResult),
	}

	logger.LogScanEvent(job.task.ID, job.task.Target, logger.PhasePort, logger.StatusRunning, map[string]interface{}{
		"port":    job.port.Port,
		"service": profile.Name,
	})

	for _, c := range s.planChecks(job.task, job.port, profile) {
		if !run.submit(c.template, c.category, c.timeout) {
			break
		}
	}
	run.wait()

	if run.anySucceeded() || ctx.Err() != nil || s.cfg.MaxFallbacks <= 0 {
		return run.collect()
	}

	fallbacks := profile.Templates(model.CategoryFallback)
	if len(fallbacks) == 0 {
		return run.collect()
	}

	logger.Debugf("[%s:%d] No primary probe succeeded, running fallback checks", run.target, run.port)
	for _, tmpl := range fallbacks {
		if run.count(model.CategoryFallback) >= s.cfg.MaxFallbacks {
			break
		}
		if !run.submit(tmpl, model.CategoryFallback, s.cfg.FallbackTimeout) {
			break
		}
	}
	run.wait()

	return run.collect()
}

// SelectCategories 选择检查类别：枚举总是执行，其余类别需要同时提供用户名和密码
func SelectCategories(task *model.ScanTask) []model.CheckCategory {
	cats := []model.CheckCategory{model.CategoryEnumeration}
	if !task.HasCredentials() {
		return cats
	}
	for _, c := range model.PrimaryCategories {
		if c.RequiresCredentials() {
			cats = append(cats, c)
		}
	}
	return cats
}

// portRun 单个端口任务内的命令提交状态
type portRun struct {
	scheduler *PortScheduler
	ctx       context.Context
	target    string
	port      int
	vars      command.Replacements
	evasion   bool // 每条命令执行前随机等待
	executed  *commandSet
	sem       *semaphore.Weighted
	wg        sync.WaitGroup

	mu        sync.Mutex
	seq       int
	results   map[int]*model.ProbeResult
	submitted map[model.CheckCategory]int
}

// submit 渲染并提交一条模板
// 模板错误、工具不可用、重复命令只跳过该模板；返回 false 表示扫描中断，应停止提交
func (r *portRun) submit(tmpl string, cat model.CheckCategory, timeout time.Duration) bool {
	if r.ctx.Err() != nil {
		return false
	}

	cmd, ok := r.prepare(tmpl, timeout)
	if !ok {
		return true
	}

	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		return false
	}

	r.mu.Lock()
	idx := r.seq
	r.seq++
	if r.submitted == nil {
		r.submitted = make(map[model.CheckCategory]int)
	}
	r.submitted[cat]++
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.sem.Release(1)

		if r.evasion && !sleepContext(r.ctx, r.scheduler.evasionDelay()) {
			return
		}

		res := r.scheduler.executor.Execute(r.ctx, cmd, timeout)
		res = res.WithCategory(cat).WithOutput(analyzer.Clean(res.Output))

		r.mu.Lock()
		r.results[idx] = res
		r.mu.Unlock()
	}()

	return true
}

// prepare 渲染 -> 工具检查与别名改写 -> 非交互加固 -> 去重
func (r *portRun) prepare(tmpl string, timeout time.Duration) (string, bool) {
	rendered, err := command.Render(tmpl, r.vars)
	if err != nil {
		logger.Warnf("[%s:%d] Skipping template: %v", r.target, r.port, err)
		return "", false
	}

	resolved, ok := r.scheduler.gate.Resolve(rendered)
	if !ok {
		logger.Debugf("[%s:%d] Tool %q not available, skipping", r.target, r.port, command.Tool(rendered))
		return "", false
	}

	cmd := command.Harden(resolved, timeout)
	if !r.executed.Claim(cmd) {
		logger.Debugf("[%s:%d] Duplicate command skipped: %s", r.target, r.port, cmd)
		return "", false
	}
	return cmd, true
}

func (r *portRun) wait() {
	r.wg.Wait()
}

func (r *portRun) count(cat model.CheckCategory) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.submitted[cat]
}

func (r *portRun) anySucceeded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.results {
		if res.Success {
			return true
		}
	}
	return false
}

// collect 按提交顺序返回已完成的结果
func (r *portRun) collect() []*model.ProbeResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := make([]int, 0, len(r.results))
	for i := range r.results {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]*model.ProbeResult, 0, len(idx))
	for _, i := range idx {
		out = append(out, r.results[i])
	}
	return out
}

// commandSet 端口内已执行命令集合，检查与插入在同一把锁内完成
type commandSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newCommandSet() *commandSet {
	return &commandSet{seen: make(map[string]struct{})}
}

// Claim 命令首次出现时返回 true
func (c *commandSet) Claim(cmd string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[cmd]; ok {
		return false
	}
	c.seen[cmd] = struct{}{}
	return true
}

// aggregate 汇总协程：提取发现、计算风险分并写入 ScanState
func (s *PortScheduler) aggregate(task *model.ScanTask, state *model.ScanState, outcomes <-chan portOutcome) {
	extractor := analyzer.NewExtractor(task, state.Findings())

	for out := range outcomes {
		report := s.buildReport(task, extractor, out)
		if report == nil {
			continue
		}
		if !state.RecordPort(report) {
			continue
		}
		if s.progress != nil {
			s.progress(report)
		}
	}
}

func (s *PortScheduler) buildReport(task *model.ScanTask, extractor *analyzer.Extractor, out portOutcome) *model.PortReport {
	port := out.port.Port

	if out.aborted {
		logger.Debugf("[%s:%d] Port task interrupted before any probe completed", task.Target, port)
		return nil
	}

	report := &model.PortReport{
		Port:     port,
		Service:  out.profile.Name,
		Banner:   out.port.Service,
		Duration: out.duration,
	}

	if out.timedOut {
		report.Status = model.PortStatusTimeout
		report.Results = []*model.ProbeResult{}
		report.RiskScore = 0
		logger.LogScanEvent(task.ID, task.Target, logger.PhasePort, logger.StatusDegraded, map[string]interface{}{
			"port":  port,
			"error": fmt.Errorf("port %d after %s: %w", port, s.cfg.PortTaskTimeout, ErrPortTaskTimeout).Error(),
		})
		return report
	}

	report.Results = out.results
	report.Status = model.PortStatusProbed
	if len(out.results) == 0 {
		report.Status = model.PortStatusSkipped
	}

	for _, res := range out.results {
		for _, f := range extractor.ExtractResult(res, port) {
			logger.Infof("[%s] [+] %s", task.Target, f)
		}
	}
	report.RiskScore = risk.Score(out.profile.RiskBase, out.results)

	logger.LogScanEvent(task.ID, task.Target, logger.PhasePort, logger.StatusCompleted, map[string]interface{}{
		"port":       port,
		"service":    report.Service,
		"probes":     len(report.Results),
		"succeeded":  report.Succeeded(),
		"risk_score": report.RiskScore,
		"duration":   report.Duration.String(),
	})
	return report
}

// uniquePorts 按端口去重，保留首次出现的顺序
func uniquePorts(ports []model.OpenPort) []model.OpenPort {
	seen := make(map[int]struct{}, len(ports))
	out := make([]model.OpenPort, 0, len(ports))
	for _, p := range ports {
		if _, ok := seen[p.Port]; ok {
			continue
		}
		seen[p.Port] = struct{}{}
		out = append(out, p)
	}
	return out
}

package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neoprobe/internal/config"
	"neoprobe/internal/core/catalog"
	"neoprobe/internal/core/model"
	"neoprobe/internal/executor/manager"
)

type fakeCall struct {
	command string
	timeout time.Duration
}

// fakeExecutor 记录调用并统计并发数
type fakeExecutor struct {
	mu          sync.Mutex
	calls       []fakeCall
	inflight    int
	maxInflight int

	respond  func(cmd string) *model.ProbeResult
	delayFor func(cmd string) time.Duration
	onStart  func(cmd string)
}

func (f *fakeExecutor) Execute(_ context.Context, cmd string, timeout time.Duration) *model.ProbeResult {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{command: cmd, timeout: timeout})
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	f.mu.Unlock()

	if f.onStart != nil {
		f.onStart(cmd)
	}
	if f.delayFor != nil {
		time.Sleep(f.delayFor(cmd))
	}

	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()

	res := &model.ProbeResult{Success: true, Output: "probe output line"}
	if f.respond != nil {
		res = f.respond(cmd)
	}
	res.Command = cmd
	return res
}

func (f *fakeExecutor) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.command
	}
	return out
}

func (f *fakeExecutor) timeoutOf(cmd string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.command == cmd {
			return c.timeout
		}
	}
	return 0
}

func failing(string) *model.ProbeResult {
	return &model.ProbeResult{ReturnCode: 1, Output: "connection refused by peer"}
}

func testGate(tools ...string) *manager.ToolGate {
	available := make(map[string]bool, len(tools))
	for _, t := range tools {
		available[t] = true
	}
	return manager.NewToolGate(func(file string) (string, error) {
		if available[file] {
			return "/usr/bin/" + file, nil
		}
		return "", errors.New("executable file not found in $PATH")
	}, nil)
}

func defaultTestGate() *manager.ToolGate {
	return testGate("probe-a", "nxc", "smbclient", "hydra", "ldapsearch", "fallback-a", "fallback-b", "fallback-c")
}

func testCatalog() *catalog.Catalog {
	generic := catalog.NewServiceProfile("Generic", 5.0, map[model.CheckCategory][]string{
		model.CategoryEnumeration: {"probe-a {ip} {port}"},
		model.CategoryFallback:    {"fallback-a {ip} {port}", "fallback-b {ip} {port}", "fallback-c {ip} {port}"},
	})
	smb := catalog.NewServiceProfile("SMB", 7.0, map[model.CheckCategory][]string{
		model.CategoryEnumeration:    {"crackmapexec smb {ip}", "nxc smb {ip}", "smbclient -L //{ip} -N", "smbclient -L //{ip} -N"},
		model.CategoryAuthentication: {"nxc smb {ip} -u {user} -p {pass}"},
		model.CategoryEscalation:     {"nxc smb {ip} -u {user} -p {pass} --sam"},
		model.CategoryFallback:       {"fallback-a {ip} {port}"},
	})
	ftp := catalog.NewServiceProfile("FTP", 6.0, map[model.CheckCategory][]string{
		model.CategoryEnumeration:    {"probe-a {ip} {port}", "probe-a {ip} {undefined_var}"},
		model.CategoryAuthentication: {"hydra -l {user} -p {pass} ftp://{ip}"},
	})
	ldap := catalog.NewServiceProfile("LDAP", 7.0, map[model.CheckCategory][]string{
		model.CategoryEnumeration: {`ldapsearch -x -H ldap://{ip} -b "{domain_dc}"`},
	})
	return catalog.New(map[int]*catalog.ServiceProfile{21: ftp, 389: ldap, 445: smb}, generic)
}

func testScanConfig() *config.ScanConfig {
	cfg := *config.DefaultConfig().Scan
	cfg.ProbeTimeout = 2 * time.Second
	cfg.FallbackTimeout = time.Second
	cfg.PortTaskTimeout = 5 * time.Second
	return &cfg
}

func openPorts(ports ...int) []model.OpenPort {
	out := make([]model.OpenPort, len(ports))
	for i, p := range ports {
		out[i] = model.OpenPort{Port: p, Service: "svc"}
	}
	return out
}

func runSchedule(t *testing.T, ctx context.Context, sched *PortScheduler, task *model.ScanTask, ports ...int) *model.ScanState {
	t.Helper()
	state := model.NewScanState(task)
	vars := BuildReplacements(task, "", nil)
	require.NoError(t, sched.Schedule(ctx, task, vars, openPorts(ports...), state))
	return state
}

func credTask() *model.ScanTask {
	task := model.NewScanTask("10.0.0.5")
	task.Username = "alice"
	task.Password = "pw"
	return task
}

func TestSelectCategories(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		pass     string
		expected []model.CheckCategory
	}{
		{"no credentials", "", "", []model.CheckCategory{model.CategoryEnumeration}},
		{"user only", "alice", "", []model.CheckCategory{model.CategoryEnumeration}},
		{"password only", "", "pw", []model.CheckCategory{model.CategoryEnumeration}},
		{"both", "alice", "pw", []model.CheckCategory{
			model.CategoryEnumeration,
			model.CategoryAuthentication,
			model.CategoryEscalation,
			model.CategoryVulnerabilities,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := model.NewScanTask("10.0.0.5")
			task.Username, task.Password = tt.user, tt.pass
			assert.Equal(t, tt.expected, SelectCategories(task))
		})
	}
}

func TestScheduleWithoutCredentialsRunsEnumerationOnly(t *testing.T) {
	exec := &fakeExecutor{}
	sched := NewPortScheduler(testCatalog(), exec, defaultTestGate(), testScanConfig())

	state := runSchedule(t, context.Background(), sched, model.NewScanTask("10.0.0.5"), 21, 445)

	assert.Equal(t, []int{21, 445}, state.Ports())
	for port, results := range state.Results() {
		require.NotEmpty(t, results, "port %d", port)
		for _, r := range results {
			assert.Equal(t, model.CategoryEnumeration, r.Category, r.Command)
		}
	}
	for _, cmd := range exec.commands() {
		assert.NotContains(t, cmd, "hydra")
		assert.NotContains(t, cmd, "-u ")
	}
}

func TestScheduleDeduplicatesRenderedCommands(t *testing.T) {
	exec := &fakeExecutor{}
	sched := NewPortScheduler(testCatalog(), exec, defaultTestGate(), testScanConfig())

	state := runSchedule(t, context.Background(), sched, model.NewScanTask("10.0.0.5"), 445)

	assert.ElementsMatch(t, []string{"nxc smb 10.0.0.5", "smbclient -L //10.0.0.5 -N"}, exec.commands())
	report, ok := state.Port(445)
	require.True(t, ok)
	assert.Len(t, report.Results, 2)
	assert.Equal(t, model.PortStatusProbed, report.Status)
	assert.Equal(t, "SMB", report.Service)
	assert.Equal(t, "svc", report.Banner)
}

func TestScheduleSkipsTemplatesWithMissingVariables(t *testing.T) {
	exec := &fakeExecutor{}
	sched := NewPortScheduler(testCatalog(), exec, defaultTestGate(), testScanConfig())

	runSchedule(t, context.Background(), sched, model.NewScanTask("10.0.0.5"), 21)

	assert.Equal(t, []string{"probe-a 10.0.0.5 21"}, exec.commands())
}

func TestScheduleWithCredentials(t *testing.T) {
	exec := &fakeExecutor{respond: func(cmd string) *model.ProbeResult {
		if strings.Contains(cmd, "-u alice") {
			return &model.ProbeResult{Success: true, Output: `SMB 10.0.0.5 445 DC01 [+] corp\alice:pw (Pwn3d!)`}
		}
		return &model.ProbeResult{Success: true, Output: "probe output line"}
	}}
	sched := NewPortScheduler(testCatalog(), exec, defaultTestGate(), testScanConfig())

	state := runSchedule(t, context.Background(), sched, credTask(), 445)

	report, ok := state.Port(445)
	require.True(t, ok)
	assert.Len(t, report.Results, 4)
	assert.InDelta(t, 9.5, report.RiskScore, 1e-9)
	assert.Contains(t, state.Findings().Sorted(), model.Finding("Authentication Successful - alice (Port 445)"))

	cats := map[model.CheckCategory]int{}
	for _, r := range report.Results {
		cats[r.Category]++
	}
	assert.Equal(t, 1, cats[model.CategoryAuthentication])
	assert.Equal(t, 1, cats[model.CategoryEscalation])
}

func TestScheduleFallbackPolicy(t *testing.T) {
	t.Run("skipped when any primary probe succeeds", func(t *testing.T) {
		exec := &fakeExecutor{}
		sched := NewPortScheduler(testCatalog(), exec, defaultTestGate(), testScanConfig())

		runSchedule(t, context.Background(), sched, model.NewScanTask("10.0.0.5"), 9999)

		for _, cmd := range exec.commands() {
			assert.False(t, strings.HasPrefix(cmd, "fallback-"), cmd)
		}
	})

	t.Run("at most two fallbacks with shorter timeout", func(t *testing.T) {
		exec := &fakeExecutor{respond: failing}
		cfg := testScanConfig()
		sched := NewPortScheduler(testCatalog(), exec, defaultTestGate(), cfg)

		state := runSchedule(t, context.Background(), sched, model.NewScanTask("10.0.0.5"), 9999)

		assert.ElementsMatch(t, []string{
			"probe-a 10.0.0.5 9999",
			"fallback-a 10.0.0.5 9999",
			"fallback-b 10.0.0.5 9999",
		}, exec.commands())
		assert.Equal(t, cfg.ProbeTimeout, exec.timeoutOf("probe-a 10.0.0.5 9999"))
		assert.Equal(t, cfg.FallbackTimeout, exec.timeoutOf("fallback-a 10.0.0.5 9999"))

		report, _ := state.Port(9999)
		require.Len(t, report.Results, 3)
		assert.Equal(t, model.CategoryFallback, report.Results[1].Category)
		assert.Equal(t, model.CategoryFallback, report.Results[2].Category)
	})

	t.Run("unavailable fallback tools do not count", func(t *testing.T) {
		exec := &fakeExecutor{respond: failing}
		gate := testGate("probe-a", "fallback-b", "fallback-c")
		sched := NewPortScheduler(testCatalog(), exec, gate, testScanConfig())

		runSchedule(t, context.Background(), sched, model.NewScanTask("10.0.0.5"), 9999)

		assert.ElementsMatch(t, []string{
			"probe-a 10.0.0.5 9999",
			"fallback-b 10.0.0.5 9999",
			"fallback-c 10.0.0.5 9999",
		}, exec.commands())
	})

	t.Run("disabled", func(t *testing.T) {
		exec := &fakeExecutor{respond: failing}
		cfg := testScanConfig()
		cfg.MaxFallbacks = 0
		sched := NewPortScheduler(testCatalog(), exec, defaultTestGate(), cfg)

		runSchedule(t, context.Background(), sched, model.NewScanTask("10.0.0.5"), 9999)

		assert.Equal(t, []string{"probe-a 10.0.0.5 9999"}, exec.commands())
	})
}

func TestSchedulePortWithoutRunnableProbes(t *testing.T) {
	exec := &fakeExecutor{}
	sched := NewPortScheduler(testCatalog(), exec, testGate(), testScanConfig())

	state := runSchedule(t, context.Background(), sched, model.NewScanTask("10.0.0.5"), 9999)

	report, ok := state.Port(9999)
	require.True(t, ok)
	assert.Equal(t, model.PortStatusSkipped, report.Status)
	assert.Empty(t, report.Results)
	assert.InDelta(t, 5.0, report.RiskScore, 1e-9)
	assert.Empty(t, exec.commands())
}

func TestSchedulePortTaskTimeout(t *testing.T) {
	exec := &fakeExecutor{delayFor: func(cmd string) time.Duration {
		if strings.HasSuffix(cmd, " 9999") {
			return 400 * time.Millisecond
		}
		return 0
	}}
	cfg := testScanConfig()
	cfg.PortTaskTimeout = 100 * time.Millisecond
	sched := NewPortScheduler(testCatalog(), exec, defaultTestGate(), cfg)

	var progressed []int
	sched.OnPortDone(func(r *model.PortReport) { progressed = append(progressed, r.Port) })

	state := runSchedule(t, context.Background(), sched, model.NewScanTask("10.0.0.5"), 9999, 21)

	slow, ok := state.Port(9999)
	require.True(t, ok)
	assert.Equal(t, model.PortStatusTimeout, slow.Status)
	assert.NotNil(t, slow.Results)
	assert.Empty(t, slow.Results)
	assert.Zero(t, slow.RiskScore)
	assert.Zero(t, state.RiskScores()[9999])

	fast, ok := state.Port(21)
	require.True(t, ok)
	assert.Equal(t, model.PortStatusProbed, fast.Status)

	assert.ElementsMatch(t, []int{9999, 21}, progressed)
}

func TestTimedOutProbeContributesNoFinding(t *testing.T) {
	exec := &fakeExecutor{respond: func(cmd string) *model.ProbeResult {
		if strings.HasPrefix(cmd, "smbclient") {
			return &model.ProbeResult{ReturnCode: model.ReturnCodeTimeout, Output: "message signing disabled"}
		}
		return &model.ProbeResult{Success: true, Output: "SMB 10.0.0.5 445 DC01"}
	}}
	sched := NewPortScheduler(testCatalog(), exec, defaultTestGate(), testScanConfig())

	state := runSchedule(t, context.Background(), sched, model.NewScanTask("10.0.0.5"), 445)

	report, _ := state.Port(445)
	var timedOut *model.ProbeResult
	for _, r := range report.Results {
		if r.TimedOut() {
			timedOut = r
		}
	}
	require.NotNil(t, timedOut)
	assert.False(t, timedOut.Success)
	assert.Equal(t, model.ReturnCodeTimeout, timedOut.ReturnCode)
	assert.Zero(t, state.Findings().Len())
}

func TestFindingsDeduplicatedAcrossCommands(t *testing.T) {
	exec := &fakeExecutor{respond: func(string) *model.ProbeResult {
		return &model.ProbeResult{Success: true, Output: "This host is a Domain Controller"}
	}}
	sched := NewPortScheduler(testCatalog(), exec, defaultTestGate(), testScanConfig())

	state := runSchedule(t, context.Background(), sched, model.NewScanTask("10.0.0.5"), 445)
	assert.Equal(t, []model.Finding{"Domain Controller Identified (Port 445)"}, state.Findings().Sorted())
}

func TestScheduleBoundsConcurrency(t *testing.T) {
	generic := catalog.NewServiceProfile("Generic", 5.0, map[model.CheckCategory][]string{
		model.CategoryEnumeration: {"probe-a {port} 1", "probe-a {port} 2", "probe-a {port} 3", "probe-a {port} 4"},
	})
	cat := catalog.New(nil, generic)
	exec := &fakeExecutor{delayFor: func(string) time.Duration { return 30 * time.Millisecond }}
	cfg := testScanConfig()
	cfg.OuterWorkers = 2
	cfg.InnerWorkers = 2
	sched := NewPortScheduler(cat, exec, testGate("probe-a"), cfg)

	state := runSchedule(t, context.Background(), sched, model.NewScanTask("10.0.0.5"), 1001, 1002, 1003, 1004, 1005)

	assert.Len(t, state.Ports(), 5)
	assert.Len(t, exec.commands(), 20)
	assert.LessOrEqual(t, exec.maxInflight, 4)
}

func TestScheduleCancelledBeforeStart(t *testing.T) {
	exec := &fakeExecutor{}
	sched := NewPortScheduler(testCatalog(), exec, defaultTestGate(), testScanConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state := runSchedule(t, ctx, sched, model.NewScanTask("10.0.0.5"), 21, 445)

	assert.Empty(t, state.Ports())
	assert.Empty(t, exec.commands())
}

func TestScheduleCancelledMidScan(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	exec := &fakeExecutor{
		respond:  failing,
		onStart:  func(string) { once.Do(cancel) },
		delayFor: func(string) time.Duration { return 50 * time.Millisecond },
	}
	cfg := testScanConfig()
	cfg.OuterWorkers = 1
	cfg.InnerWorkers = 1
	sched := NewPortScheduler(testCatalog(), exec, defaultTestGate(), cfg)

	state := runSchedule(t, ctx, sched, model.NewScanTask("10.0.0.5"), 9001, 9002, 9003)

	// 在途命令正常完成，中断后不再进入兜底，也不再启动新命令
	assert.Equal(t, []string{"probe-a 10.0.0.5 9001"}, exec.commands())
	assert.Equal(t, []int{9001}, state.Ports())
	report, _ := state.Port(9001)
	assert.Len(t, report.Results, 1)
}

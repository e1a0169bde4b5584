package reporter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"neoprobe/internal/core/model"
	"neoprobe/internal/executor/base"
	"neoprobe/internal/pkg/monitor"
)

// ConsoleReporter 控制台输出
type ConsoleReporter struct {
	verbose bool
	host    *monitor.HostInfo
	metrics func() base.ExecutorMetrics
}

// NewConsoleReporter verbose 为 true 时逐条打印命令输出
func NewConsoleReporter(verbose bool) *ConsoleReporter {
	return &ConsoleReporter{verbose: verbose}
}

// WithHostInfo 报告头部附带扫描主机信息
func (r *ConsoleReporter) WithHostInfo(info *monitor.HostInfo) *ConsoleReporter {
	r.host = info
	return r
}

// WithMetrics 报告尾部附带执行器指标
func (r *ConsoleReporter) WithMetrics(fn func() base.ExecutorMetrics) *ConsoleReporter {
	r.metrics = fn
	return r
}

func (r *ConsoleReporter) Report(_ context.Context, snap *model.ScanSnapshot) error {
	if snap == nil {
		return nil
	}

	pterm.DefaultSection.Println("Scan Summary: " + snap.Target)
	if err := r.printOverview(snap); err != nil {
		return err
	}

	if len(snap.Ports) == 0 {
		pterm.Warning.Println("No ports were probed.")
	} else {
		headers, rows := portRows(snap.Ports)
		if err := printTableFromData(headers, rows); err != nil {
			return err
		}
	}

	if r.verbose {
		r.printProbeOutputs(snap.Ports)
	}

	pterm.DefaultSection.WithLevel(2).Println("Key Findings")
	if len(snap.Findings) == 0 {
		pterm.Info.Println("No key findings.")
	} else {
		items := make([]pterm.BulletListItem, 0, len(snap.Findings))
		for _, f := range snap.Findings {
			items = append(items, pterm.BulletListItem{Level: 0, Text: string(f)})
		}
		if err := pterm.DefaultBulletList.WithItems(items).Render(); err != nil {
			return fmt.Errorf("failed to render findings: %w", err)
		}
	}

	pterm.DefaultSection.WithLevel(2).Println("Attack Paths")
	if len(snap.AttackPaths) == 0 {
		pterm.Info.Println("No attack paths identified.")
	} else {
		var rows [][]string
		for _, p := range snap.AttackPaths {
			rows = append(rows, p.Rows()...)
		}
		if err := printTableFromData(model.AttackPath{}.Headers(), rows); err != nil {
			return err
		}
	}

	r.printThreat(snap.ThreatLevel, snap.Status)

	if r.metrics != nil {
		m := r.metrics()
		pterm.Info.Printf("Probes: %d total, %d succeeded, %d failed, %d timed out, %d faulted (avg %s)\n",
			m.TasksTotal, m.TasksSucceeded, m.TasksFailed, m.TasksTimedOut, m.TasksFaulted,
			m.AverageTaskTime.Round(time.Millisecond))
	}
	return nil
}

func (r *ConsoleReporter) printOverview(snap *model.ScanSnapshot) error {
	domain := snap.Domain
	if domain == "" {
		domain = "-"
	}
	data := pterm.TableData{
		{"Task ID", snap.TaskID},
		{"Target", snap.Target},
		{"Domain", domain},
		{"Started", snap.StartedAt.Format("2006-01-02 15:04:05")},
		{"Duration", snap.FinishedAt.Sub(snap.StartedAt).Round(time.Second).String()},
	}
	if r.host != nil {
		data = append(data, []string{"Scanner", fmt.Sprintf("%s (%s/%s, %d cores)", r.host.Hostname, r.host.OS, r.host.Arch, r.host.CPUCores)})
	}
	if err := pterm.DefaultTable.WithData(data).Render(); err != nil {
		return fmt.Errorf("failed to render overview: %w", err)
	}
	return nil
}

func (r *ConsoleReporter) printProbeOutputs(ports []*model.PortReport) {
	for _, p := range ports {
		pterm.DefaultSection.WithLevel(2).Printf("Port %d (%s)\n", p.Port, p.Service)
		if p.Status == model.PortStatusTimeout {
			pterm.Warning.Println("Port task timed out, no results recorded.")
			continue
		}
		for _, res := range p.Results {
			printer := pterm.Success
			switch {
			case res.TimedOut():
				printer = pterm.Warning
			case !res.Success:
				printer = pterm.Error
			}
			printer.Printf("[%s] %s\n", res.Category, res.Command)
			pterm.Println(indent(res.Output, "    "))
		}
	}
}

func (r *ConsoleReporter) printThreat(level model.ThreatLevel, status model.ThreatStatus) {
	msg := fmt.Sprintf("Overall threat level: %s (%s)", level, status)
	switch level {
	case model.ThreatCritical, model.ThreatHigh:
		pterm.Error.Println(msg)
	case model.ThreatElevated:
		pterm.Warning.Println(msg)
	default:
		pterm.Success.Println(msg)
	}
}

func printTableFromData(headers []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	tableData := pterm.TableData{headers}
	tableData = append(tableData, rows...)

	err := pterm.DefaultTable.
		WithHasHeader(true).
		WithBoxed(false).
		WithData(tableData).
		Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

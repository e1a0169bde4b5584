package reporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neoprobe/internal/core/model"
	"neoprobe/internal/executor/base"
	"neoprobe/internal/pkg/monitor"
)

func sampleSnapshot() *model.ScanSnapshot {
	start := time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC)
	return &model.ScanSnapshot{
		TaskID:     "task-1",
		Target:     "10.0.0.5",
		Domain:     "corp.local",
		StartedAt:  start,
		FinishedAt: start.Add(95 * time.Second),
		Ports: []*model.PortReport{
			{
				Port:    445,
				Service: "SMB",
				Status:  model.PortStatusProbed,
				Results: []*model.ProbeResult{
					{Command: "nxc smb 10.0.0.5", Category: model.CategoryEnumeration, Output: "signing:False", Success: true},
					{Command: "smbclient -L //10.0.0.5 -N", Category: model.CategoryEnumeration, Output: "Command timed out after 60s", ReturnCode: -1},
				},
				RiskScore: 7.0,
				Duration:  3 * time.Second,
			},
			{Port: 9999, Service: "Generic", Status: model.PortStatusTimeout, Results: []*model.ProbeResult{}},
		},
		Findings:    []model.Finding{"SMB Signing Disabled (Port 445)"},
		AttackPaths: []model.AttackPath{{Type: model.PathDataExfiltration, Description: "Database services exposed on ports 3306", Ports: []int{3306}, Severity: model.SeverityCritical}},
		ThreatLevel: model.ThreatElevated,
		Status:      model.StatusConcerning,
	}
}

func TestFileName(t *testing.T) {
	ts := time.Date(2026, 3, 8, 10, 5, 9, 0, time.UTC)
	assert.Equal(t, "neoprobe_10.0.0.5_20260308_100509.json", FileName("10.0.0.5", "json", ts))
	assert.Equal(t, "neoprobe_fe80__1_20260308_100509.csv", FileName("fe80::1", "csv", ts))
	assert.Equal(t, "neoprobe_a_b_c_20260308_100509.csv", FileName("a/b c", "csv", ts))
}

func TestJSONReporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, NewJSONReporter(path).Report(context.Background(), sampleSnapshot()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "10.0.0.5", decoded["target"])
	assert.Equal(t, "ELEVATED", decoded["threat_level"])
	assert.Len(t, decoded["ports"], 2)
}

func TestCsvReporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, NewCsvReporter(path).Report(context.Background(), sampleSnapshot()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("\xEF\xBB\xBF")))

	records, err := csv.NewReader(bytes.NewReader(data[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, model.PortReport{}.Headers(), records[0])
	assert.Equal(t, []string{"445", "SMB", "probed", "2", "1", "7.0", "3s"}, records[1])
	assert.Equal(t, "timeout", records[2][2])
}

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	pterm.SetDefaultOutput(&buf)
	pterm.DisableStyling()
	t.Cleanup(func() {
		pterm.SetDefaultOutput(os.Stdout)
		pterm.EnableStyling()
	})

	r := NewConsoleReporter(true).
		WithHostInfo(&monitor.HostInfo{Hostname: "probe-host", OS: "linux", Arch: "amd64", CPUCores: 4}).
		WithMetrics(func() base.ExecutorMetrics { return base.ExecutorMetrics{TasksTotal: 2, TasksSucceeded: 1, TasksTimedOut: 1} })

	require.NoError(t, r.Report(context.Background(), sampleSnapshot()))

	out := buf.String()
	for _, want := range []string{
		"10.0.0.5",
		"corp.local",
		"probe-host",
		"SMB Signing Disabled (Port 445)",
		"DATA_EXFILTRATION",
		"ELEVATED",
		"nxc smb 10.0.0.5",
		"Port task timed out",
		"2 total",
	} {
		assert.True(t, strings.Contains(out, want), "missing %q in console output", want)
	}
}

type failingReporter struct{ err error }

func (f failingReporter) Report(context.Context, *model.ScanSnapshot) error { return f.err }

func TestMultiReporterJoinsErrors(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	path := filepath.Join(t.TempDir(), "out.json")

	m := NewMultiReporter(failingReporter{errA}, NewJSONReporter(path))
	m.Add(failingReporter{errB})

	err := m.Report(context.Background(), sampleSnapshot())
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.FileExists(t, path)

	assert.NoError(t, NewMultiReporter().Report(context.Background(), sampleSnapshot()))
}

package options

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neoprobe/internal/config"
)

func TestScanProbeOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    ScanProbeOptions
		wantErr bool
	}{
		{"ipv4", ScanProbeOptions{Target: "10.0.0.5"}, false},
		{"ipv6", ScanProbeOptions{Target: "fe80::1"}, false},
		{"hostname", ScanProbeOptions{Target: "dc01.corp.local"}, false},
		{"missing target", ScanProbeOptions{}, true},
		{"shell metacharacters", ScanProbeOptions{Target: "10.0.0.5;id"}, true},
		{"space", ScanProbeOptions{Target: "10.0.0.5 -oN x"}, true},
		{"leading hyphen", ScanProbeOptions{Target: "-iL"}, true},
		{"valid ports", ScanProbeOptions{Target: "10.0.0.5", Ports: []int{21, 445}}, false},
		{"port out of range", ScanProbeOptions{Target: "10.0.0.5", Ports: []int{70000}}, true},
		{"zero port", ScanProbeOptions{Target: "10.0.0.5", Ports: []int{0}}, true},
		{"domain with quote", ScanProbeOptions{Target: "10.0.0.5", Domain: `corp".local`}, true},
		{"negative workers", ScanProbeOptions{Target: "10.0.0.5", InnerWorkers: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScanProbeOptionsValidateListFiles(t *testing.T) {
	dir := t.TempDir()
	users := filepath.Join(dir, "users.txt")
	require.NoError(t, os.WriteFile(users, []byte("admin\n"), 0o644))

	tests := []struct {
		name    string
		opts    ScanProbeOptions
		wantErr bool
	}{
		{"existing users list", ScanProbeOptions{Target: "10.0.0.5", Users: users}, false},
		{"missing passwords list", ScanProbeOptions{Target: "10.0.0.5", Passwords: filepath.Join(dir, "nope.txt")}, true},
		{"wordlist is a directory", ScanProbeOptions{Target: "10.0.0.5", Wordlist: dir}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScanProbeOptionsToTask(t *testing.T) {
	opts := &ScanProbeOptions{
		Target:   "10.0.0.5",
		Username: "alice",
		Password: "pw",
		Domain:   " corp.local. ",
		Wordlist: "/tmp/w.txt",
		Ports:    []int{445},
		Users:    "/tmp/users.txt",
		APITest:  true,
		Evasion:  true,
	}

	task := opts.ToTask()
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "10.0.0.5", task.Target)
	assert.Equal(t, "corp.local", task.Domain)
	assert.Equal(t, "/tmp/w.txt", task.Wordlist)
	assert.Equal(t, []int{445}, task.Ports)
	assert.Equal(t, "/tmp/users.txt", task.Users)
	assert.Empty(t, task.Passwords)
	assert.True(t, task.APITest)
	assert.True(t, task.Evasion)
	assert.True(t, task.HasCredentials())

	opts.Ports[0] = 21
	assert.Equal(t, []int{445}, task.Ports)
}

func TestPartialCredentials(t *testing.T) {
	assert.False(t, (&ScanProbeOptions{}).PartialCredentials())
	assert.True(t, (&ScanProbeOptions{Username: "alice"}).PartialCredentials())
	assert.True(t, (&ScanProbeOptions{Password: "pw"}).PartialCredentials())
	assert.False(t, (&ScanProbeOptions{Username: "alice", Password: "pw"}).PartialCredentials())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("NEOPROBE_OPTS_TEST_USER", "bob")
	t.Setenv("NEOPROBE_OPTS_TEST_PASS", "hunter2")
	em := config.NewEnvManager("NEOPROBE_OPTS_TEST")

	opts := &ScanProbeOptions{Target: "10.0.0.5", Username: "alice"}
	opts.ApplyEnv(em)

	assert.Equal(t, "alice", opts.Username)
	assert.Equal(t, "hunter2", opts.Password)
}

func TestApplyToConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	opts := &ScanProbeOptions{InnerWorkers: 5, JSON: true, OutputDir: "/tmp/out", Continuous: true, Interval: 10 * time.Minute}
	opts.ApplyToConfig(cfg)

	assert.Equal(t, 5, cfg.Scan.InnerWorkers)
	assert.Equal(t, 6, cfg.Scan.OuterWorkers)
	assert.True(t, cfg.Output.JSON)
	assert.False(t, cfg.Output.CSV)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
	assert.True(t, cfg.Continuous.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Continuous.Interval)
	require.NoError(t, cfg.Validate())
}

package options

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"neoprobe/internal/config"
	"neoprobe/internal/core/model"
)

// 凭据环境变量名（不含前缀），避免密码出现在命令行历史中
const (
	EnvUser = "USER"
	EnvPass = "PASS"
)

// ScanProbeOptions 对应 scan 命令的参数
type ScanProbeOptions struct {
	Target   string
	Username string
	Password string
	Domain   string
	Wordlist string
	Ports    []int

	Users     string // 用户名字典覆盖
	Passwords string // 密码字典覆盖
	APITest   bool
	Evasion   bool

	InnerWorkers int
	CatalogFile  string

	OutputDir string
	JSON      bool
	CSV       bool
	Verbose   bool

	Continuous bool
	Interval   time.Duration
}

func NewScanProbeOptions() *ScanProbeOptions {
	return &ScanProbeOptions{}
}

// ApplyEnv 命令行未指定凭据时从环境变量读取 (NEOPROBE_USER / NEOPROBE_PASS)
func (o *ScanProbeOptions) ApplyEnv(em *config.EnvManager) {
	if o.Username == "" {
		o.Username = em.GetString(EnvUser, "")
	}
	if o.Password == "" {
		o.Password = em.GetString(EnvPass, "")
	}
}

func (o *ScanProbeOptions) Validate() error {
	if o.Target == "" {
		return fmt.Errorf("target is required")
	}
	if !isValidTarget(o.Target) {
		return fmt.Errorf("invalid target %q: expected an IP address or hostname", o.Target)
	}
	for _, p := range o.Ports {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid port %d", p)
		}
	}
	if o.Domain != "" && strings.ContainsAny(o.Domain, " \t;&|$`'\"") {
		return fmt.Errorf("invalid domain %q", o.Domain)
	}
	for flag, path := range map[string]string{"wordlist": o.Wordlist, "users": o.Users, "passwords": o.Passwords} {
		if path == "" {
			continue
		}
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			return fmt.Errorf("invalid %s file %q", flag, path)
		}
	}
	if o.InnerWorkers < 0 {
		return fmt.Errorf("inner workers cannot be negative")
	}
	if o.Continuous && o.Interval < 0 {
		return fmt.Errorf("interval cannot be negative")
	}
	return nil
}

// PartialCredentials 只提供了用户名或密码之一，此时不会执行需要凭据的检查
func (o *ScanProbeOptions) PartialCredentials() bool {
	return (o.Username == "") != (o.Password == "")
}

func (o *ScanProbeOptions) ToTask() *model.ScanTask {
	task := model.NewScanTask(o.Target)
	task.Username = o.Username
	task.Password = o.Password
	task.Domain = strings.Trim(strings.TrimSpace(o.Domain), ".")
	task.Wordlist = o.Wordlist
	task.Ports = append([]int(nil), o.Ports...)
	task.Users = o.Users
	task.Passwords = o.Passwords
	task.APITest = o.APITest
	task.Evasion = o.Evasion
	return task
}

// ApplyToConfig 用命令行参数覆盖配置文件中的对应项，零值不覆盖
func (o *ScanProbeOptions) ApplyToConfig(cfg *config.Config) {
	if o.InnerWorkers > 0 {
		cfg.Scan.InnerWorkers = o.InnerWorkers
	}
	if o.CatalogFile != "" {
		cfg.Scan.CatalogFile = o.CatalogFile
	}
	if o.OutputDir != "" {
		cfg.Output.Dir = o.OutputDir
	}
	if o.JSON {
		cfg.Output.JSON = true
	}
	if o.CSV {
		cfg.Output.CSV = true
	}
	if o.Continuous {
		cfg.Continuous.Enabled = true
	}
	if o.Interval > 0 {
		cfg.Continuous.Interval = o.Interval
	}
}

// isValidTarget IP 地址或主机名；目标会进入 shell 命令，拒绝其它字符
func isValidTarget(target string) bool {
	if net.ParseIP(target) != nil {
		return true
	}
	if len(target) > 253 {
		return false
	}
	for _, label := range strings.Split(target, ".") {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, c := range label {
			if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
				return false
			}
		}
	}
	return true
}

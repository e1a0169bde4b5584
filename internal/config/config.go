/**
 * 探测器配置管理
 * @date: 2026.03.02
 * @description: 扫描调度、超时、字典、输出与日志配置
 */
package config

import (
	"fmt"
	"time"
)

// Config 探测器配置
type Config struct {
	// 应用配置
	App *AppConfig `yaml:"app" mapstructure:"app"`

	// 日志配置
	Log *LogConfig `yaml:"log" mapstructure:"log"`

	// 扫描调度配置
	Scan *ScanConfig `yaml:"scan" mapstructure:"scan"`

	// 端口发现配置
	Discovery *DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`

	// 字典配置
	Wordlists *WordlistConfig `yaml:"wordlists" mapstructure:"wordlists"`

	// 输出配置
	Output *OutputConfig `yaml:"output" mapstructure:"output"`

	// 持续监控配置
	Continuous *ContinuousConfig `yaml:"continuous" mapstructure:"continuous"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`               // 应用名称
	Environment string `yaml:"environment" mapstructure:"environment"` // 运行环境
	Debug       bool   `yaml:"debug" mapstructure:"debug"`             // 调试模式
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`             // 日志级别 (debug/info/warn/error)
	Format     string `yaml:"format" mapstructure:"format"`           // 日志格式 (json/text)
	Output     string `yaml:"output" mapstructure:"output"`           // 日志输出 (stdout/stderr/file)
	FilePath   string `yaml:"file_path" mapstructure:"file_path"`     // 日志文件路径
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`       // 最大文件大小（MB）
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // 最大备份数
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`         // 最大保留天数
	Compress   bool   `yaml:"compress" mapstructure:"compress"`       // 是否压缩
	Caller     bool   `yaml:"caller" mapstructure:"caller"`           // 是否显示调用者信息
}

// ScanConfig 扫描调度配置
type ScanConfig struct {
	OuterWorkers    int           `yaml:"outer_workers" mapstructure:"outer_workers"`         // 端口级并发数
	InnerWorkers    int           `yaml:"inner_workers" mapstructure:"inner_workers"`         // 单端口内命令并发数
	ProbeTimeout    time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`         // 主探测命令超时
	FallbackTimeout time.Duration `yaml:"fallback_timeout" mapstructure:"fallback_timeout"`   // 兜底命令超时，必须小于主探测超时
	MaxFallbacks    int           `yaml:"max_fallbacks" mapstructure:"max_fallbacks"`         // 兜底命令最大条数
	PortTaskTimeout time.Duration `yaml:"port_task_timeout" mapstructure:"port_task_timeout"` // 单端口任务总时限
	Shell           string        `yaml:"shell" mapstructure:"shell"`                         // 执行命令的 shell
	CatalogFile     string        `yaml:"catalog_file" mapstructure:"catalog_file"`           // 自定义服务目录文件，空则使用内置目录
	APITimeout      time.Duration `yaml:"api_timeout" mapstructure:"api_timeout"`             // API 端点探测命令超时
	EvasionDelayMin time.Duration `yaml:"evasion_delay_min" mapstructure:"evasion_delay_min"` // 规避模式下命令执行前随机延迟下限
	EvasionDelayMax time.Duration `yaml:"evasion_delay_max" mapstructure:"evasion_delay_max"` // 随机延迟上限
}

// DiscoveryConfig 端口发现配置
type DiscoveryConfig struct {
	NmapPath    string        `yaml:"nmap_path" mapstructure:"nmap_path"`       // nmap 可执行文件
	Args        string        `yaml:"args" mapstructure:"args"`                 // nmap 参数
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`           // 发现超时
	EvasionArgs string        `yaml:"evasion_args" mapstructure:"evasion_args"` // 规避模式下的 nmap 参数
}

// WordlistConfig 字典配置
type WordlistConfig struct {
	Dirbuster   string `yaml:"dirbuster" mapstructure:"dirbuster"`     // 目录爆破字典（{wordlist} 默认值）
	Feroxbuster string `yaml:"feroxbuster" mapstructure:"feroxbuster"` // feroxbuster 字典
	SNMP        string `yaml:"snmp" mapstructure:"snmp"`               // SNMP community 字典
	Users       string `yaml:"users" mapstructure:"users"`             // 用户名字典
	Passwords   string `yaml:"passwords" mapstructure:"passwords"`     // 密码字典
	API         string `yaml:"api" mapstructure:"api"`                 // API 路径字典
	Subdomains  string `yaml:"subdomains" mapstructure:"subdomains"`   // 子域名字典
}

// OutputConfig 输出配置
type OutputConfig struct {
	Dir              string `yaml:"dir" mapstructure:"dir"`                             // 输出目录
	JSON             bool   `yaml:"json" mapstructure:"json"`                           // 是否导出 JSON
	CSV              bool   `yaml:"csv" mapstructure:"csv"`                             // 是否导出 CSV
	CleanupThreshold int64  `yaml:"cleanup_threshold" mapstructure:"cleanup_threshold"` // 退出清理阈值（字节），小于该值的输出文件会被删除
}

// ContinuousConfig 持续监控配置
type ContinuousConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`   // 是否启用持续监控
	Interval time.Duration `yaml:"interval" mapstructure:"interval"` // 两轮扫描间隔
}

// DefaultConfig 返回内置默认配置
func DefaultConfig() *Config {
	return &Config{
		App: &AppConfig{
			Name:        "neoprobe",
			Environment: "development",
		},
		Log: &LogConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			FilePath:   "logs/neoprobe.log",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		},
		Scan: &ScanConfig{
			OuterWorkers:    6,
			InnerWorkers:    3,
			ProbeTimeout:    60 * time.Second,
			FallbackTimeout: 15 * time.Second,
			MaxFallbacks:    2,
			PortTaskTimeout: 120 * time.Second,
			Shell:           "sh",
			APITimeout:      10 * time.Second,
			EvasionDelayMin: 500 * time.Millisecond,
			EvasionDelayMax: 3 * time.Second,
		},
		Discovery: &DiscoveryConfig{
			NmapPath:    "nmap",
			Args:        "-T4 --top-ports 1000 -sV",
			EvasionArgs: "-Pn -T1 --top-ports 1000 -sV",
			Timeout:     300 * time.Second,
		},
		Wordlists: &WordlistConfig{
			Dirbuster:   "/usr/share/wordlists/dirbuster/directory-list-2.3-medium.txt",
			Feroxbuster: "/usr/share/seclists/Discovery/Web-Content/raft-medium-directories.txt",
			SNMP:        "/usr/share/seclists/Discovery/SNMP/common-snmp-community-strings.txt",
			Users:       "/usr/share/seclists/Usernames/top-usernames-shortlist.txt",
			Passwords:   "/usr/share/seclists/Passwords/Common-Credentials/top-20-common-SSH-passwords.txt",
			API:         "/usr/share/seclists/Discovery/Web-Content/api/api-endpoints.txt",
			Subdomains:  "/usr/share/seclists/Discovery/DNS/subdomains-top1million-5000.txt",
		},
		Output: &OutputConfig{
			Dir:              ".",
			CleanupThreshold: 1000,
		},
		Continuous: &ContinuousConfig{
			Interval: time.Hour,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Scan == nil {
		return fmt.Errorf("scan config is required")
	}
	if c.Scan.OuterWorkers <= 0 {
		return fmt.Errorf("scan.outer_workers must be positive, got %d", c.Scan.OuterWorkers)
	}
	if c.Scan.InnerWorkers <= 0 {
		return fmt.Errorf("scan.inner_workers must be positive, got %d", c.Scan.InnerWorkers)
	}
	if c.Scan.ProbeTimeout <= 0 {
		return fmt.Errorf("scan.probe_timeout must be positive")
	}
	if c.Scan.FallbackTimeout <= 0 || c.Scan.FallbackTimeout >= c.Scan.ProbeTimeout {
		return fmt.Errorf("scan.fallback_timeout (%s) must be positive and shorter than scan.probe_timeout (%s)",
			c.Scan.FallbackTimeout, c.Scan.ProbeTimeout)
	}
	if c.Scan.MaxFallbacks < 0 {
		return fmt.Errorf("scan.max_fallbacks cannot be negative")
	}
	if c.Scan.PortTaskTimeout <= 0 {
		return fmt.Errorf("scan.port_task_timeout must be positive")
	}
	if c.Scan.Shell == "" {
		return fmt.Errorf("scan.shell is required")
	}
	if c.Scan.APITimeout <= 0 {
		return fmt.Errorf("scan.api_timeout must be positive")
	}
	if c.Scan.EvasionDelayMin < 0 || c.Scan.EvasionDelayMax < c.Scan.EvasionDelayMin {
		return fmt.Errorf("scan.evasion_delay_min (%s) must be non-negative and not above scan.evasion_delay_max (%s)",
			c.Scan.EvasionDelayMin, c.Scan.EvasionDelayMax)
	}
	if c.Discovery != nil && c.Discovery.Timeout <= 0 {
		return fmt.Errorf("discovery.timeout must be positive")
	}
	if c.Continuous != nil && c.Continuous.Enabled && c.Continuous.Interval <= 0 {
		return fmt.Errorf("continuous.interval must be positive when continuous mode is enabled")
	}
	return nil
}

// Clone 深拷贝配置，命令行覆盖只作用于副本
func (c *Config) Clone() *Config {
	cp := &Config{}
	if c.App != nil {
		v := *c.App
		cp.App = &v
	}
	if c.Log != nil {
		v := *c.Log
		cp.Log = &v
	}
	if c.Scan != nil {
		v := *c.Scan
		cp.Scan = &v
	}
	if c.Discovery != nil {
		v := *c.Discovery
		cp.Discovery = &v
	}
	if c.Wordlists != nil {
		v := *c.Wordlists
		cp.Wordlists = &v
	}
	if c.Output != nil {
		v := *c.Output
		cp.Output = &v
	}
	if c.Continuous != nil {
		v := *c.Continuous
		cp.Continuous = &v
	}
	return cp
}

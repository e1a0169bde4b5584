package scan

import (
	"neoprobe/internal/config"
	"neoprobe/internal/core/options"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// ConfigSource 返回根命令加载的配置与配置文件路径
type ConfigSource func() (*config.Config, string)

// NewScanCmd 创建 scan 命令
func NewScanCmd(source ConfigSource) *cobra.Command {
	opts := options.NewScanProbeOptions()

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "对单个目标执行服务探测",
		Long: `发现目标开放端口后，按服务目录为每个端口并发执行检查命令。
未提供完整凭据时只执行枚举类检查。凭据也可以通过环境变量 NEOPROBE_USER / NEOPROBE_PASS 提供。

流程: Discovery -> Port Probes -> Findings -> Risk -> Attack Paths -> Report`,
		Example: `  neoprobe scan -t 10.0.0.5
  neoprobe scan -t dc01.corp.local -u alice -p 'Secret1!' -d corp.local --json
  neoprobe scan -t 10.0.0.5 --ports 22,80,445 -v
  neoprobe scan -t 10.0.0.5 --continuous --interval 30m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ApplyEnv(config.NewEnvManager(config.DefaultEnvPrefix))
			if err := opts.Validate(); err != nil {
				return err
			}
			if opts.PartialCredentials() {
				pterm.Warning.Println("Only one of username/password provided, credentialed checks will be skipped")
			}

			base, path := source()
			cfg := base.Clone()
			opts.ApplyToConfig(cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			return newSession(opts, cfg, path).run()
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Target, "target", "t", "", "扫描目标 (IP 或主机名)")
	flags.StringVarP(&opts.Username, "user", "u", "", "认证用户名")
	flags.StringVarP(&opts.Password, "pass", "p", "", "认证密码")
	flags.StringVarP(&opts.Domain, "domain", "d", "", "域名 (发现阶段提取到的域名优先)")
	flags.StringVarP(&opts.Wordlist, "wordlist", "w", "", "目录爆破字典")
	flags.StringVar(&opts.Users, "users", "", "用户名字典 ({users})")
	flags.StringVar(&opts.Passwords, "passwords", "", "密码字典 ({passwords})")
	flags.IntSliceVar(&opts.Ports, "ports", nil, "指定端口，跳过端口发现 (例: 22,80,445)")
	flags.BoolVar(&opts.APITest, "api-test", false, "在 Web 端口上请求常见 API 与管理端点")
	flags.BoolVar(&opts.Evasion, "evasion", false, "规避模式：慢速端口发现、命令间随机延迟、追加诱饵/分片扫描")
	flags.IntVar(&opts.InnerWorkers, "inner-workers", 0, "单端口内命令并发数 (默认取配置)")
	flags.StringVar(&opts.CatalogFile, "catalog", "", "自定义服务目录文件 (YAML)")
	flags.StringVarP(&opts.OutputDir, "output-dir", "o", "", "导出文件目录")
	flags.BoolVar(&opts.JSON, "json", false, "导出 JSON 报告")
	flags.BoolVar(&opts.CSV, "csv", false, "导出 CSV 报告")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "显示每条命令的输出")
	flags.BoolVar(&opts.Continuous, "continuous", false, "持续监控模式，按间隔重复扫描")
	flags.DurationVar(&opts.Interval, "interval", 0, "持续监控的扫描间隔 (默认取配置)")

	cmd.MarkFlagRequired("target")

	return cmd
}

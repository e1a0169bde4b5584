/*
 * @date: 2026.03.04
 * @description: Cobra Root Command 定义
 */

package main

import (
	"fmt"
	"io"
	"os"

	"neoprobe/cmd/neoprobe/scan"
	"neoprobe/internal/config"
	"neoprobe/internal/pkg/logger"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// 在 PersistentPreRunE 中加载，子命令通过 loadedConfig 读取
	loadedConfig *config.Config
	configPath   string
)

var rootCmd = &cobra.Command{
	Use:   "neoprobe",
	Short: "neoprobe 单目标服务探测与攻击面评估工具",
	Long: `neoprobe 对单个目标进行端口发现，然后按服务目录为每个开放端口并发执行
枚举、认证、提权与漏洞检查命令，汇总发现、风险评分与攻击路径。

示例:
  1.无凭据探测
	neoprobe scan -t 10.0.0.5
  2.带凭据探测并导出
	neoprobe scan -t 10.0.0.5 -u alice -p 'Secret1!' -d corp.local --json --csv
  3.查看服务目录
	neoprobe catalog 445
`,
	SilenceUsage: true,
	// 全局初始化：.env、配置文件、日志
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		initCLILogger(cmd)
		return nil
	},
}

func Execute() {
	// 全局 Panic Recovery
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n[FATAL] neoprobe crashed unexpectedly: %v\n", r)
			os.Exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径 (默认: ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (debug, info, warn, error)")

	rootCmd.AddCommand(scan.NewScanCmd(currentConfig))
	rootCmd.AddCommand(newCatalogCmd())
	rootCmd.AddCommand(versionCmd)
}

// currentConfig 返回已加载的配置与实际使用的配置文件路径
func currentConfig() (*config.Config, string) {
	return loadedConfig, configPath
}

// initConfig 读取 .env、配置文件和环境变量
func initConfig() error {
	if err := config.NewEnvLoader(".env").Load(); err != nil {
		return err
	}

	loader := config.NewConfigLoader(cfgFile, config.DefaultEnvPrefix)
	if err := loader.Viper().BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		return err
	}

	cfg, err := loader.LoadConfig()
	if err != nil {
		return err
	}
	loadedConfig = cfg
	configPath = loader.GetConfigPath()
	return nil
}

// initCLILogger 初始化 CLI 模式下的日志
// 控制台输出默认只保留 fatal，避免与 pterm 输出混杂；写文件时沿用配置文件的级别
func initCLILogger(cmd *cobra.Command) {
	logCfg := *loadedConfig.Log

	flag := cmd.Flags().Lookup("log-level")
	explicit := flag != nil && flag.Changed
	switch {
	case explicit:
		logCfg.Level = flag.Value.String()
	case logCfg.Output != "file":
		logCfg.Level = "fatal"
	}

	switch logCfg.Level {
	case "debug":
		pterm.EnableDebugMessages()
	case "info":
		pterm.DisableDebugMessages()
	case "warn", "error", "fatal":
		pterm.DisableDebugMessages()
		// 只有显式要求安静时才屏蔽过程输出
		if explicit {
			pterm.Info = *pterm.Info.WithWriter(io.Discard)
		}
	}

	loadedConfig.Log = &logCfg

	if _, err := logger.InitLogger(&logCfg); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DefaultEnvPrefix 环境变量前缀
const DefaultEnvPrefix = "NEOPROBE"

// ConfigLoader 配置加载器
type ConfigLoader struct {
	configFile string
	envPrefix  string
	viper      *viper.Viper
}

// NewConfigLoader 创建配置加载器
// configFile 为空时依次搜索 ./configs/config.yaml 与 ./config.yaml
func NewConfigLoader(configFile, envPrefix string) *ConfigLoader {
	if envPrefix == "" {
		envPrefix = DefaultEnvPrefix
	}

	return &ConfigLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
		viper:      viper.New(),
	}
}

// Viper 返回底层 viper 实例，供命令行绑定 flag
func (cl *ConfigLoader) Viper() *viper.Viper {
	return cl.viper
}

// LoadConfig 加载配置
// 优先级: flag > 环境变量 > 配置文件 > 默认值
func (cl *ConfigLoader) LoadConfig() (*Config, error) {
	cl.viper.SetConfigType("yaml")

	// 设置环境变量前缀
	cl.viper.SetEnvPrefix(cl.envPrefix)
	cl.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cl.viper.AutomaticEnv()

	// 设置默认值
	cl.setDefaults()

	// 加载配置文件，文件不存在时使用默认值
	if err := cl.loadConfigFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// 解析配置
	var config Config
	if err := cl.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 验证配置
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// GetConfigPath 返回实际使用的配置文件路径，未使用配置文件时为空
func (cl *ConfigLoader) GetConfigPath() string {
	return cl.viper.ConfigFileUsed()
}

// loadConfigFile 加载配置文件
func (cl *ConfigLoader) loadConfigFile() error {
	if cl.configFile == "" {
		// 尝试从环境变量获取配置文件路径
		cl.configFile = os.Getenv(cl.envPrefix + "_CONFIG_PATH")
	}

	if cl.configFile != "" {
		// 显式指定的配置文件必须存在
		cl.viper.SetConfigFile(cl.configFile)
		return cl.viper.ReadInConfig()
	}

	cl.viper.AddConfigPath("./configs")
	cl.viper.AddConfigPath(".")
	cl.viper.SetConfigName("config")

	if err := cl.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

// setDefaults 设置默认值
func (cl *ConfigLoader) setDefaults() {
	d := DefaultConfig()

	// App默认值
	cl.viper.SetDefault("app.name", d.App.Name)
	cl.viper.SetDefault("app.environment", d.App.Environment)
	cl.viper.SetDefault("app.debug", d.App.Debug)

	// Log默认值
	cl.viper.SetDefault("log.level", d.Log.Level)
	cl.viper.SetDefault("log.format", d.Log.Format)
	cl.viper.SetDefault("log.output", d.Log.Output)
	cl.viper.SetDefault("log.file_path", d.Log.FilePath)
	cl.viper.SetDefault("log.max_size", d.Log.MaxSize)
	cl.viper.SetDefault("log.max_backups", d.Log.MaxBackups)
	cl.viper.SetDefault("log.max_age", d.Log.MaxAge)
	cl.viper.SetDefault("log.compress", d.Log.Compress)
	cl.viper.SetDefault("log.caller", d.Log.Caller)

	// Scan默认值
	cl.viper.SetDefault("scan.outer_workers", d.Scan.OuterWorkers)
	cl.viper.SetDefault("scan.inner_workers", d.Scan.InnerWorkers)
	cl.viper.SetDefault("scan.probe_timeout", d.Scan.ProbeTimeout)
	cl.viper.SetDefault("scan.fallback_timeout", d.Scan.FallbackTimeout)
	cl.viper.SetDefault("scan.max_fallbacks", d.Scan.MaxFallbacks)
	cl.viper.SetDefault("scan.port_task_timeout", d.Scan.PortTaskTimeout)
	cl.viper.SetDefault("scan.shell", d.Scan.Shell)
	cl.viper.SetDefault("scan.catalog_file", d.Scan.CatalogFile)
	cl.viper.SetDefault("scan.api_timeout", d.Scan.APITimeout)
	cl.viper.SetDefault("scan.evasion_delay_min", d.Scan.EvasionDelayMin)
	cl.viper.SetDefault("scan.evasion_delay_max", d.Scan.EvasionDelayMax)

	// Discovery默认值
	cl.viper.SetDefault("discovery.nmap_path", d.Discovery.NmapPath)
	cl.viper.SetDefault("discovery.args", d.Discovery.Args)
	cl.viper.SetDefault("discovery.evasion_args", d.Discovery.EvasionArgs)
	cl.viper.SetDefault("discovery.timeout", d.Discovery.Timeout)

	// Wordlists默认值
	cl.viper.SetDefault("wordlists.dirbuster", d.Wordlists.Dirbuster)
	cl.viper.SetDefault("wordlists.feroxbuster", d.Wordlists.Feroxbuster)
	cl.viper.SetDefault("wordlists.snmp", d.Wordlists.SNMP)
	cl.viper.SetDefault("wordlists.users", d.Wordlists.Users)
	cl.viper.SetDefault("wordlists.passwords", d.Wordlists.Passwords)
	cl.viper.SetDefault("wordlists.api", d.Wordlists.API)
	cl.viper.SetDefault("wordlists.subdomains", d.Wordlists.Subdomains)

	// Output默认值
	cl.viper.SetDefault("output.dir", d.Output.Dir)
	cl.viper.SetDefault("output.json", d.Output.JSON)
	cl.viper.SetDefault("output.csv", d.Output.CSV)
	cl.viper.SetDefault("output.cleanup_threshold", d.Output.CleanupThreshold)

	// Continuous默认值
	cl.viper.SetDefault("continuous.enabled", d.Continuous.Enabled)
	cl.viper.SetDefault("continuous.interval", d.Continuous.Interval)
}

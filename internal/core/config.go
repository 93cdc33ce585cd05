package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/storecrawl/internal/config"
	"github.com/RecoveryAshes/storecrawl/internal/models"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀,例如 STORECRAWL_CRAWL_METHOD
const EnvPrefix = "STORECRAWL"

// Config 应用程序配置
type Config struct {
	Crawl   models.CrawlConfig `mapstructure:"crawl"`
	Input   InputConfig        `mapstructure:"input"`
	Output  OutputConfig       `mapstructure:"output"`
	Logging LoggingConfig      `mapstructure:"logging"`
	Headers map[string]string  `mapstructure:"headers"`
	Server  ServerConfig       `mapstructure:"server"`

	// 实际读取的配置文件,未找到时为空
	File string `mapstructure:"-"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// InputConfig 输入配置
type InputConfig struct {
	File string `mapstructure:"file"` // URL列表文件,为空或不存在时生成测试URL
}

// OutputConfig 输出配置
type OutputConfig struct {
	File   string `mapstructure:"file"`   // 结果CSV
	Report bool   `mapstructure:"report"` // 是否写 <base>_report.json
}

// ServerConfig 表单前端配置
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoadConfig 加载配置文件
// 优先级: 命令行(由调用方合并) > 环境变量 > 配置文件 > 默认值
func LoadConfig(configPath string) (*Config, error) {
	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &models.ConfigError{FilePath: ".env", Cause: err}
	}

	v := viper.New()

	if configPath != "" {
		if err := config.ValidateFileSize(configPath); err != nil {
			return nil, err
		}
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".storecrawl"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: fmt.Errorf("读取配置文件失败: %w", err)}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	return &cfg, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	d := models.DefaultCrawlConfig()

	v.SetDefault("crawl.method", d.Method)
	v.SetDefault("crawl.headless", d.Headless)
	v.SetDefault("crawl.driver_path", d.DriverPath)
	v.SetDefault("crawl.base_url", d.BaseURL)
	v.SetDefault("crawl.locale_path", d.LocalePath)
	v.SetDefault("crawl.count", d.Count)
	v.SetDefault("crawl.min_delay", d.MinDelay)
	v.SetDefault("crawl.max_delay", d.MaxDelay)
	v.SetDefault("crawl.forbidden_min_delay", d.ForbiddenMinDelay)
	v.SetDefault("crawl.forbidden_max_delay", d.ForbiddenMaxDelay)
	v.SetDefault("crawl.timeout", d.Timeout)
	v.SetDefault("crawl.max_retries", d.MaxRetries)
	v.SetDefault("crawl.flush_every", d.FlushEvery)
	v.SetDefault("crawl.impersonate_tls", d.ImpersonateTLS)
	v.SetDefault("crawl.min_free_memory_mb", d.MinFreeMemoryMB)

	v.SetDefault("input.file", "")

	v.SetDefault("output.file", "asics_results.csv")
	v.SetDefault("output.report", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	v.SetDefault("headers", map[string]string{})

	v.SetDefault("server.addr", "127.0.0.1:8765")
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Crawl.Validate(); err != nil {
		return err
	}
	if err := models.ValidateURL(c.Crawl.BaseURL); err != nil {
		return fmt.Errorf("base_url无效: %w", err)
	}
	if strings.TrimSpace(c.Output.File) == "" {
		return fmt.Errorf("输出文件不能为空")
	}
	return nil
}

// GetCrawlConfig 从配置中提取抓取配置
func (c *Config) GetCrawlConfig() models.CrawlConfig {
	return c.Crawl
}

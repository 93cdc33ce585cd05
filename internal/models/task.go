package models

import (
	"fmt"
	"strings"
	"time"
)

// FetchMethod 抓取方式
type FetchMethod string

const (
	MethodHTTP    FetchMethod = "http"    // 直接HTTP请求
	MethodBrowser FetchMethod = "browser" // 浏览器渲染
)

// ParseMethod 解析抓取方式,兼容旧名称 requests / selenium
func ParseMethod(s string) (FetchMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "http", "requests", "direct":
		return MethodHTTP, nil
	case "browser", "selenium", "rod":
		return MethodBrowser, nil
	default:
		return "", fmt.Errorf("未知的抓取方式: %q (可选 http|browser)", s)
	}
}

// CrawlConfig 抓取配置
type CrawlConfig struct {
	Method            string  `mapstructure:"method" json:"method"`                           // http|browser (默认:http)
	Headless          bool    `mapstructure:"headless" json:"headless"`                       // 浏览器无头模式 (默认:true)
	DriverPath        string  `mapstructure:"driver_path" json:"driver_path"`                 // 浏览器可执行文件路径,为空则自动下载/查找
	BaseURL           string  `mapstructure:"base_url" json:"base_url"`                       // 站点根地址
	LocalePath        string  `mapstructure:"locale_path" json:"locale_path"`                 // 区域路径前缀 (默认:/jp/ja-jp)
	Count             int     `mapstructure:"count" json:"count"`                             // 生成URL数量 (默认:100)
	MinDelay          float64 `mapstructure:"min_delay" json:"min_delay"`                     // 每次尝试前最小等待(秒)
	MaxDelay          float64 `mapstructure:"max_delay" json:"max_delay"`                     // 每次尝试前最大等待(秒)
	ForbiddenMinDelay float64 `mapstructure:"forbidden_min_delay" json:"forbidden_min_delay"` // 403后额外最小等待(秒)
	ForbiddenMaxDelay float64 `mapstructure:"forbidden_max_delay" json:"forbidden_max_delay"` // 403后额外最大等待(秒)
	Timeout           int     `mapstructure:"timeout" json:"timeout"`                         // 单次请求超时(秒)
	MaxRetries        int     `mapstructure:"max_retries" json:"max_retries"`                 // 每个URL最多尝试次数
	FlushEvery        int     `mapstructure:"flush_every" json:"flush_every"`                 // 每N条记录写一次CSV
	ImpersonateTLS    bool    `mapstructure:"impersonate_tls" json:"impersonate_tls"`         // HTTP方式模拟Chrome TLS指纹
	MinFreeMemoryMB   int     `mapstructure:"min_free_memory_mb" json:"min_free_memory_mb"`   // 启动浏览器所需最小可用内存
}

// DefaultCrawlConfig 默认抓取配置
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		Method:            string(MethodHTTP),
		Headless:          true,
		BaseURL:           "https://www.asics.com",
		LocalePath:        "/jp/ja-jp",
		Count:             100,
		MinDelay:          2.0,
		MaxDelay:          5.0,
		ForbiddenMinDelay: 5.0,
		ForbiddenMaxDelay: 10.0,
		Timeout:           30,
		MaxRetries:        3,
		FlushEvery:        10,
		ImpersonateTLS:    true,
		MinFreeMemoryMB:   512,
	}
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if _, err := ParseMethod(c.Method); err != nil {
		return err
	}
	if c.MinDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("等待时间不能为负数")
	}
	if c.MinDelay > c.MaxDelay {
		return fmt.Errorf("最小等待时间(%.1f)不能大于最大等待时间(%.1f)", c.MinDelay, c.MaxDelay)
	}
	if c.ForbiddenMinDelay < 0 || c.ForbiddenMinDelay > c.ForbiddenMaxDelay {
		return fmt.Errorf("403等待区间无效: %.1f-%.1f", c.ForbiddenMinDelay, c.ForbiddenMaxDelay)
	}
	if c.Timeout < 1 || c.Timeout > 300 {
		return fmt.Errorf("超时时间必须在1-300秒之间")
	}
	if c.MaxRetries < 1 || c.MaxRetries > 20 {
		return fmt.Errorf("重试次数必须在1-20之间")
	}
	if c.FlushEvery < 1 {
		return fmt.Errorf("flush_every必须大于0")
	}
	if c.Count < 0 {
		return fmt.Errorf("URL数量不能为负数")
	}
	return nil
}

// FetchMethod 返回解析后的抓取方式,无效时回退为HTTP
func (c *CrawlConfig) FetchMethod() FetchMethod {
	m, err := ParseMethod(c.Method)
	if err != nil {
		return MethodHTTP
	}
	return m
}

// TimeoutDuration 单次请求超时
func (c *CrawlConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// DelayWindow 常规等待区间
func (c *CrawlConfig) DelayWindow() (time.Duration, time.Duration) {
	return seconds(c.MinDelay), seconds(c.MaxDelay)
}

// ForbiddenDelayWindow 403后的额外等待区间
func (c *CrawlConfig) ForbiddenDelayWindow() (time.Duration, time.Duration) {
	return seconds(c.ForbiddenMinDelay), seconds(c.ForbiddenMaxDelay)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

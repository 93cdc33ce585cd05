package crawlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/RecoveryAshes/storecrawl/internal/models"
	"github.com/RecoveryAshes/storecrawl/internal/utils"
)

// Page 一次成功抓取得到的页面
type Page struct {
	URL        string
	FinalURL   string // 跟随重定向后的地址
	StatusCode int    // 浏览器方式拿不到状态码时为0
	HTML       string
	Title      string // 浏览器方式为 document.title,HTTP方式为空
}

// PageFetcher 页面抓取器
type PageFetcher interface {
	// Name 抓取器名称 (http|browser)
	Name() string

	// Fetch 抓取单个页面,失败时返回 *models.FetchError
	Fetch(ctx context.Context, url string) (*Page, error)

	// Close 释放会话资源,可重复调用
	Close() error
}

// 测试中替换
var (
	launchBrowser = func(cfg models.CrawlConfig, headers http.Header) (PageFetcher, error) {
		return NewBrowserFetcher(cfg, headers)
	}
	newDirect = func(cfg models.CrawlConfig, headers http.Header) (PageFetcher, error) {
		return NewDirectFetcher(cfg, headers)
	}
	browserPreflight = func(cfg models.CrawlConfig) error {
		return NewResourceMonitor(cfg.MinFreeMemoryMB).CheckBrowser()
	}
)

// NewPageFetcher 按配置创建抓取器
// 浏览器方式启动失败时回退到HTTP方式,fellBack返回true
func NewPageFetcher(cfg models.CrawlConfig, headers http.Header) (fetcher PageFetcher, fellBack bool, err error) {
	if cfg.FetchMethod() == models.MethodBrowser {
		if err := browserPreflight(cfg); err != nil {
			utils.Warnf("⚠️  浏览器资源预检未通过,改用HTTP方式: %v", err)
			fellBack = true
		} else if bf, err := launchBrowser(cfg, headers); err != nil {
			utils.Warnf("⚠️  浏览器启动失败,改用HTTP方式: %v", err)
			fellBack = true
		} else {
			utils.Info("🌐 使用浏览器方式抓取")
			return bf, false, nil
		}
	}

	df, err := newDirect(cfg, headers)
	if err != nil {
		return nil, fellBack, fmt.Errorf("创建HTTP抓取器失败: %w", err)
	}
	utils.Info("📡 使用HTTP方式抓取")
	return df, fellBack, nil
}

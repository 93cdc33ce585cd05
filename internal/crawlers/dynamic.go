package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/RecoveryAshes/storecrawl/internal/models"
	"github.com/RecoveryAshes/storecrawl/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// ErrBrowserClosed 浏览器已关闭
var ErrBrowserClosed = errors.New("浏览器已关闭")

// 浏览器自行管理,不通过CDP覆盖的头部
var browserManagedHeaders = map[string]bool{
	"User-Agent":      true,
	"Accept-Encoding": true,
}

// BrowserFetcher 浏览器抓取器(使用Rod)
// 一次运行只启动一个浏览器和一个标签页
type BrowserFetcher struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	timeout  time.Duration
	closed   bool
}

// NewBrowserFetcher 启动浏览器并打开标签页
func NewBrowserFetcher(cfg models.CrawlConfig, headers http.Header) (*BrowserFetcher, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(true)

	if cfg.DriverPath != "" {
		if _, err := os.Stat(cfg.DriverPath); err == nil {
			l = l.Bin(cfg.DriverPath)
		} else {
			utils.Warnf("浏览器路径不存在,改为自动查找: %s", cfg.DriverPath)
		}
	}

	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("window-size"), "1920,1080")
	l.Set(flags.Flag("lang"), "ja")
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	if ua := headers.Get("User-Agent"); ua != "" {
		l.Set(flags.Flag("user-agent"), ua)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("创建标签页失败: %w", err)
	}

	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		utils.Warnf("注入stealth脚本失败,继续运行: %v", err)
	}

	if extra := extraHeaders(headers); len(extra) > 0 {
		if err := (proto.NetworkEnable{}).Call(page); err != nil {
			utils.Warnf("启用网络域失败: %v", err)
		}
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(extra)}).Call(page); err != nil {
			utils.Warnf("设置请求头失败: %v", err)
		}
	}

	utils.Debugf("浏览器已启动: %s", controlURL)

	return &BrowserFetcher{
		launcher: l,
		browser:  browser,
		page:     page,
		timeout:  cfg.TimeoutDuration(),
	}, nil
}

// Name 实现PageFetcher接口
func (f *BrowserFetcher) Name() string {
	return string(models.MethodBrowser)
}

// Fetch 导航到URL,等待加载和title元素出现后读取页面
func (f *BrowserFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if f.closed {
		return nil, &models.FetchError{Kind: models.ErrorKindDriver, URL: rawURL, Err: ErrBrowserClosed}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	p := f.page.Context(ctx)

	if err := p.Navigate(rawURL); err != nil {
		return nil, classifyBrowserError(rawURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, classifyBrowserError(rawURL, err)
	}
	if _, err := p.Element("title"); err != nil {
		return nil, classifyBrowserError(rawURL, err)
	}

	status := 0
	if res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`); err == nil {
		status = res.Value.Int()
	}
	if status >= 400 {
		return nil, models.NewHTTPStatusError(rawURL, status)
	}

	html, err := p.HTML()
	if err != nil {
		return nil, classifyBrowserError(rawURL, err)
	}

	page := &Page{
		URL:        rawURL,
		FinalURL:   evalString(p, `() => window.location.href`),
		StatusCode: status,
		HTML:       html,
		Title:      strings.TrimSpace(evalString(p, `() => document.title`)),
	}
	if page.FinalURL == "" {
		page.FinalURL = rawURL
	}

	utils.Debugf("浏览器抓取完成 [%s]: 状态码 %d, %d 字节", rawURL, status, len(html))
	return page, nil
}

// Close 关闭浏览器并结束进程
func (f *BrowserFetcher) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	var err error
	if f.browser != nil {
		err = f.browser.Close()
	}
	if f.launcher != nil {
		f.launcher.Kill()
	}
	utils.Debugf("浏览器已关闭")
	return err
}

// classifyBrowserError 把rod错误归类
func classifyBrowserError(rawURL string, err error) *models.FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &models.FetchError{Kind: models.ErrorKindTimeout, URL: rawURL, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &models.FetchError{Kind: models.ErrorKindUnexpected, URL: rawURL, Err: err}
	}

	var navErr *rod.NavigationError
	if errors.As(err, &navErr) {
		reason := navErr.Reason
		switch {
		case strings.Contains(reason, "TIMED_OUT"):
			return &models.FetchError{Kind: models.ErrorKindTimeout, URL: rawURL, Err: err}
		case strings.HasPrefix(reason, "net::"):
			return &models.FetchError{Kind: models.ErrorKindConnection, URL: rawURL, Err: err}
		}
	}

	return &models.FetchError{Kind: models.ErrorKindDriver, URL: rawURL, Err: err}
}

// extraHeaders 需要通过CDP追加的静态头部
func extraHeaders(headers http.Header) map[string]string {
	extra := make(map[string]string, len(headers))
	for name, values := range headers {
		if browserManagedHeaders[http.CanonicalHeaderKey(name)] || len(values) == 0 {
			continue
		}
		extra[name] = values[0]
	}
	return extra
}

// toHeadersMap 转换为 NetworkSetExtraHTTPHeaders 需要的类型
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

func evalString(p *rod.Page, js string) string {
	res, err := p.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

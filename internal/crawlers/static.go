package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/RecoveryAshes/storecrawl/internal/models"
	"github.com/RecoveryAshes/storecrawl/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
	"golang.org/x/net/publicsuffix"
)

// DirectFetcher HTTP抓取器(使用Colly)
// 一次运行共享一个收集器: 连接池、Cookie和请求头在所有URL之间复用
type DirectFetcher struct {
	collector *colly.Collector
	client    *http.Client
	headers   http.Header
}

// NewDirectFetcher 创建HTTP抓取器
func NewDirectFetcher(cfg models.CrawlConfig, headers http.Header) (*DirectFetcher, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("创建Cookie容器失败: %w", err)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if cfg.ImpersonateTLS {
		// utls连接上只能走HTTP/1.1
		transport.DialTLSContext = dialChromeTLS
		transport.ForceAttemptHTTP2 = false
		utils.Debugf("HTTP抓取器: 使用Chrome TLS指纹")
	}

	client := &http.Client{
		Transport: &decodingTransport{base: transport},
		Jar:       jar,
		Timeout:   cfg.TimeoutDuration(),
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(), // 重试需要重复访问同一URL
		colly.IgnoreRobotsTxt(),
		colly.DetectCharset(),
		colly.ParseHTTPErrorResponse(), // 非2xx也进入OnResponse,由我们分类
	)
	c.SetClient(client)
	c.SetCookieJar(jar)
	c.SetRequestTimeout(cfg.TimeoutDuration())
	if ua := headers.Get("User-Agent"); ua != "" {
		c.UserAgent = ua
	}

	utils.Debugf("HTTP抓取器: 超时 %d 秒", cfg.Timeout)

	return &DirectFetcher{
		collector: c,
		client:    client,
		headers:   headers.Clone(),
	}, nil
}

// Name 实现PageFetcher接口
func (f *DirectFetcher) Name() string {
	return string(models.MethodHTTP)
}

// Fetch 抓取单个页面
func (f *DirectFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.ClassifyError(rawURL, err)
	}

	// Clone 共享HTTP后端和Cookie,但回调只属于本次请求
	c := f.collector.Clone()

	var (
		page      *Page
		statusErr error
	)

	c.OnRequest(func(r *colly.Request) {
		for name, values := range f.headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
	})

	c.OnResponse(func(r *colly.Response) {
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			statusErr = models.NewHTTPStatusError(rawURL, r.StatusCode)
			return
		}
		page = &Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			HTML:       string(r.Body),
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(rawURL)
	}()

	var visitErr error
	select {
	case <-ctx.Done():
		return nil, models.ClassifyError(rawURL, ctx.Err())
	case visitErr = <-done:
	}

	switch {
	case visitErr != nil:
		return nil, models.ClassifyError(rawURL, visitErr)
	case statusErr != nil:
		return nil, statusErr
	case page == nil:
		return nil, &models.FetchError{Kind: models.ErrorKindUnexpected, URL: rawURL, Err: fmt.Errorf("没有收到响应")}
	}

	utils.Debugf("HTTP抓取完成 [%s]: 状态码 %d, %d 字节", rawURL, page.StatusCode, len(page.HTML))
	return page, nil
}

// Close 关闭空闲连接
func (f *DirectFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// decodingTransport 解压响应体
// 请求头里手动声明了 Accept-Encoding,标准库不会再自动解压
type decodingTransport struct {
	base http.RoundTripper
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	encoding := resp.Header.Get("Content-Encoding")
	if encoding == "" || resp.Uncompressed {
		return resp, nil
	}

	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	body, err := decompressResponse(encoding, raw)
	if err != nil {
		// 解压失败时保留原始内容
		utils.Warnf("解压响应失败 [%s] (编码=%s): %v", req.URL, encoding, err)
		body = raw
	} else {
		resp.Header.Del("Content-Encoding")
		resp.Header.Del("Content-Length")
		resp.Uncompressed = true
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))
	return resp, nil
}

// decompressResponse 根据Content-Encoding解压响应
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip", "x-gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()
		return io.ReadAll(reader)

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()
		return io.ReadAll(reader)

	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(body)))

	case "", "identity":
		return body, nil

	default:
		return nil, fmt.Errorf("不支持的压缩格式: %s", contentEncoding)
	}
}

package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/RecoveryAshes/storecrawl/internal/crawlers"
	"github.com/RecoveryAshes/storecrawl/internal/models"
)

const (
	productPage  = `<html><head><title>GEL-KAYANO 30 | アシックス</title></head><body><span class="price">¥19,800</span></body></html>`
	emptyPage    = `<html><head><title>Some page</title></head><body></body></html>`
	notFoundPage = `<html><head><title>ページが見つかりません</title></head><body><span class="price">-</span></body></html>`
)

// step 假抓取器的一次响应
type step struct {
	html  string
	err   error
	panic string
}

// fakeFetcher 按URL返回预设响应序列,序列用完后重复最后一项
type fakeFetcher struct {
	mu     sync.Mutex
	steps  map[string][]step
	calls  map[string]int
	order  []string
	closed int
	hook   func(url string)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		steps: make(map[string][]step),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) on(url string, steps ...step) *fakeFetcher {
	f.steps[url] = steps
	return f
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*crawlers.Page, error) {
	f.mu.Lock()
	n := f.calls[url]
	f.calls[url]++
	f.order = append(f.order, url)
	steps := f.steps[url]
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	if err := ctx.Err(); err != nil {
		return nil, models.ClassifyError(url, err)
	}
	if len(steps) == 0 {
		return &crawlers.Page{URL: url, HTML: productPage}, nil
	}
	if n >= len(steps) {
		n = len(steps) - 1
	}
	s := steps[n]
	if s.panic != "" {
		panic(s.panic)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &crawlers.Page{URL: url, HTML: s.html}, nil
}

func (f *fakeFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// recordingSleep 记录所有等待时长,不真正等待
type recordingSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleep) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

func testCrawlConfig() models.CrawlConfig {
	cfg := models.DefaultCrawlConfig()
	cfg.BaseURL = "https://www.asics.com"
	cfg.LocalePath = "/jp/ja-jp"
	return cfg
}

func testPolicy(cfg models.CrawlConfig) (*Policy, *recordingSleep) {
	rs := &recordingSleep{}
	p := NewPolicy(cfg)
	p.Sleep = rs.sleep
	p.Rand = rand.New(rand.NewSource(1))
	return p, rs
}

func timeoutErr(url string) error {
	return &models.FetchError{Kind: models.ErrorKindTimeout, URL: url, Err: context.DeadlineExceeded}
}

func connErr(url string) error {
	return models.ClassifyError(url, &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})
}

func statusErr(url string, code int) error {
	return models.NewHTTPStatusError(url, code)
}

func driverErr(url, msg string) error {
	return &models.FetchError{Kind: models.ErrorKindDriver, URL: url, Err: errors.New(msg)}
}

func productURL(i int) string {
	return fmt.Sprintf("https://www.asics.com/jp/ja-jp/running/p/1011A%03d-001.html", 100+i)
}

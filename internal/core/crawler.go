package core

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/storecrawl/internal/crawlers"
	"github.com/RecoveryAshes/storecrawl/internal/models"
	"github.com/RecoveryAshes/storecrawl/internal/utils"
)

// Crawler 单个URL的抓取流程
// 执行流程:
//  1. 补全URL并从路径解析分类、商品编号、颜色
//  2. 按重试策略调用抓取器
//  3. 提取标题、价格、库存并判定状态
type Crawler struct {
	fetcher crawlers.PageFetcher
	parser  *crawlers.URLAttributeParser
	policy  *Policy
	baseURL string

	now func() time.Time
}

// NewCrawler 创建单URL抓取流程
func NewCrawler(fetcher crawlers.PageFetcher, cfg models.CrawlConfig, policy *Policy) *Crawler {
	if policy == nil {
		policy = NewPolicy(cfg)
	}
	return &Crawler{
		fetcher: fetcher,
		parser:  crawlers.NewURLAttributeParser(cfg.LocalePath),
		policy:  policy,
		baseURL: cfg.BaseURL,
		now:     time.Now,
	}
}

// CrawlURL 抓取单个URL,总是返回一条完整记录
func (c *Crawler) CrawlURL(ctx context.Context, rawURL string) *models.Record {
	target := models.NormalizeURL(rawURL, c.baseURL)
	rec := models.NewRecord(target)

	if attrs, ok := c.parser.Parse(target); ok {
		rec.Category = attrs.Category
		rec.ProductID = attrs.ProductID
		rec.Color = attrs.Color
	}

	c.policy.Run(ctx, rec, func(ctx context.Context) AttemptResult {
		return c.attempt(ctx, rec)
	})

	rec.Timestamp = c.now()
	return rec
}

// attempt 单次尝试,抓取器内部的panic也在这里兜住
func (c *Crawler) attempt(ctx context.Context, rec *models.Record) (res AttemptResult) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("抓取时发生panic [%s]: %v", rec.URL, r)
			res = AttemptResult{
				Outcome: OutcomeRetryable,
				Kind:    models.ErrorKindUnexpected,
				Err:     fmt.Errorf("panic: %v", r),
			}
		}
	}()

	page, err := c.fetcher.Fetch(ctx, rec.URL)
	if err != nil {
		utils.Debugf("抓取失败 [%s] 第%d次: %v", rec.URL, rec.Attempts, err)
		return ResultFromError(rec.URL, err)
	}

	classify(rec, page)
	return AttemptResult{Outcome: OutcomeSuccess}
}

// classify 根据页面内容判定状态
// 不存在页面优先于没有商品信息
func classify(rec *models.Record, page *crawlers.Page) {
	info := crawlers.ExtractProduct(page.HTML)
	if page.Title != "" {
		info.Title = page.Title
	}

	rec.Status = models.StatusSuccess
	rec.Title = info.Title
	rec.Price = info.Price
	rec.Availability = info.Availability

	if crawlers.IsNotFoundTitle(info.Title) {
		rec.Status = models.StatusNotFound
		rec.Title = "page not found"
	} else if !info.HasProductInfo() {
		rec.Status = models.StatusNoProductInfo
		rec.Title = "product info not found"
	}
}

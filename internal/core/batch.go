package core

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/storecrawl/internal/crawlers"
	"github.com/RecoveryAshes/storecrawl/internal/models"
	"github.com/RecoveryAshes/storecrawl/internal/utils"
)

// ProgressFunc 每完成一个URL回调一次
type ProgressFunc func(done, total int, rec *models.Record)

// BatchOptions 批量抓取选项
type BatchOptions struct {
	OutputFile  string       // 结果CSV路径,为空则不落盘
	WriteReport bool         // 是否写JSON运行报告
	FellBack    bool         // 浏览器方式是否已回退为HTTP
	Policy      *Policy      // 为空时按配置创建
	Progress    ProgressFunc // 可为空
	Stop        func() bool  // 返回true时在下一个URL之前停止
}

// BatchCrawler 批量抓取编排器
// URL严格按输入顺序逐个处理,结果表由编排器独占
type BatchCrawler struct {
	config  models.CrawlConfig
	fetcher crawlers.PageFetcher
	crawler *Crawler
	writer  *utils.ResultWriter
	opts    BatchOptions
}

// BatchSummary 批量抓取摘要
type BatchSummary struct {
	Table   *models.ResultTable
	Report  *models.RunReport
	Stopped bool
}

// NewBatchCrawler 创建批量抓取编排器,fetcher 在 CrawlBatch 结束时关闭
func NewBatchCrawler(config models.CrawlConfig, fetcher crawlers.PageFetcher, opts BatchOptions) *BatchCrawler {
	bc := &BatchCrawler{
		config:  config,
		fetcher: fetcher,
		crawler: NewCrawler(fetcher, config, opts.Policy),
		opts:    opts,
	}
	if opts.OutputFile != "" {
		bc.writer = utils.NewResultWriter(opts.OutputFile)
	}
	return bc
}

// CrawlBatch 批量抓取URL列表
// 每 flush_every 条记录覆盖写一次CSV,结束时再写一次;
// 中途写入失败只记日志,最后一次写入失败时返回错误
func (bc *BatchCrawler) CrawlBatch(ctx context.Context, urls []string) (summary *BatchSummary, err error) {
	defer func() {
		if cerr := bc.fetcher.Close(); cerr != nil {
			utils.Warnf("关闭抓取器失败: %v", cerr)
		}
	}()

	utils.Infof("🚀 开始批量抓取: %d个URL (方式: %s)", len(urls), bc.fetcher.Name())

	report := models.NewRunReport(bc.config.Method, time.Now())
	report.Fetcher = bc.fetcher.Name()
	report.FellBack = bc.opts.FellBack

	summary = &BatchSummary{
		Table:  models.NewResultTable(),
		Report: report,
	}

	flushEvery := bc.config.FlushEvery
	if flushEvery < 1 {
		flushEvery = 1
	}

	for i, target := range urls {
		if bc.stopRequested(ctx) {
			summary.Stopped = true
			utils.Warnf("⏹️  已停止,剩余 %d 个URL未处理", len(urls)-i)
			break
		}

		utils.Debugf("[%d/%d] %s", i+1, len(urls), target)
		rec := bc.crawler.CrawlURL(ctx, target)
		summary.Table.Append(rec)

		utils.LogRecord(rec)

		if bc.writer != nil && summary.Table.Len()%flushEvery == 0 {
			if ferr := bc.writer.Flush(summary.Table); ferr != nil {
				utils.Errorf("写入中间结果失败: %v", ferr)
			}
		}

		if bc.opts.Progress != nil {
			bc.opts.Progress(i+1, len(urls), rec)
		}
	}

	report.Stopped = summary.Stopped
	report.OutputFile = bc.opts.OutputFile
	report.Finish(summary.Table, time.Now())

	if bc.writer != nil {
		if ferr := bc.writer.Flush(summary.Table); ferr != nil {
			err = fmt.Errorf("写入结果失败: %w", ferr)
		} else {
			utils.Infof("💾 结果已保存: %s", bc.writer.Path())
		}

		if bc.opts.WriteReport {
			reportPath := utils.ReportPath(bc.opts.OutputFile)
			if rerr := utils.SaveRunReport(reportPath, report); rerr != nil {
				utils.Warnf("保存运行报告失败: %v", rerr)
			}
		}
	}

	printSummary(report)
	return summary, err
}

// stopRequested 协作式停止,或上下文已取消
func (bc *BatchCrawler) stopRequested(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return bc.opts.Stop != nil && bc.opts.Stop()
}

// printSummary 打印抓取摘要
func printSummary(report *models.RunReport) {
	utils.Info("==================================================")
	utils.Info("📊 抓取结果摘要")
	utils.Info("==================================================")
	utils.Infof("总URL数: %d", report.Total)
	for _, status := range models.AllStatuses {
		count := report.StatusCounts[status]
		if count == 0 && status != models.StatusSuccess {
			continue
		}
		utils.Infof("  %-24s %d (%.2f%%)", status, count, percent(count, report.Total))
	}
	utils.Infof("⏱️  总耗时: %.2f秒", report.Duration)
	if report.Stopped {
		utils.Warn("⚠️  运行被中途停止,结果不完整")
	}
	utils.Info("==================================================")
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

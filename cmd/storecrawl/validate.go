package main

import (
	"fmt"

	"github.com/RecoveryAshes/storecrawl/internal/core"
	"github.com/RecoveryAshes/storecrawl/internal/models"
	"github.com/spf13/cobra"
)

// ValidateFlags 验证命令行标志
// 只检查用户显式给出的数值,组合关系由 Config.Validate 检查
func ValidateFlags(method string, minDelay, maxDelay float64, timeout, retries, count int) error {
	if method != "" {
		if _, err := models.ParseMethod(method); err != nil {
			return err
		}
	}

	if minDelay < 0 || maxDelay < 0 {
		return fmt.Errorf("等待时间不能为负数: min=%.1f max=%.1f", minDelay, maxDelay)
	}

	if timeout < 1 || timeout > 300 {
		return fmt.Errorf("超时时间必须在1-300秒之间,当前值: %d", timeout)
	}

	if retries < 1 || retries > 20 {
		return fmt.Errorf("重试次数必须在1-20之间,当前值: %d", retries)
	}

	if count < 0 {
		return fmt.Errorf("生成URL数量不能为负数,当前值: %d", count)
	}

	return nil
}

// applyFlags 命令行参数覆盖配置文件,只覆盖显式指定的标志
func applyFlags(cmd *cobra.Command, cfg *core.Config) {
	flags := cmd.Flags()
	crawl := &cfg.Crawl

	if flags.Changed("method") {
		crawl.Method = method
	}
	if flags.Changed("headless") {
		crawl.Headless = headless
	}
	if flags.Changed("base-url") {
		crawl.BaseURL = baseURL
	}
	if flags.Changed("driver") {
		crawl.DriverPath = driverPath
	}
	if flags.Changed("count") {
		crawl.Count = count
	}
	if flags.Changed("min-delay") {
		crawl.MinDelay = minDelay
	}
	if flags.Changed("max-delay") {
		crawl.MaxDelay = maxDelay
	}
	if flags.Changed("timeout") {
		crawl.Timeout = timeout
	}
	if flags.Changed("retries") {
		crawl.MaxRetries = retries
	}
	if flags.Changed("input") {
		cfg.Input.File = inputFile
	}
	if flags.Changed("output") {
		cfg.Output.File = outputFile
	}
	if flags.Changed("no-report") {
		cfg.Output.Report = !noReport
	}
}

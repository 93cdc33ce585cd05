package main

import (
	"testing"

	"github.com/RecoveryAshes/storecrawl/internal/core"
	"github.com/RecoveryAshes/storecrawl/internal/models"
	"github.com/spf13/cobra"
)

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		minDelay float64
		maxDelay float64
		timeout  int
		retries  int
		count    int
		wantErr  bool
	}{
		{"默认值", "http", 2, 5, 30, 3, 100, false},
		{"浏览器", "browser", 0, 0, 1, 1, 0, false},
		{"未指定方式", "", 2, 5, 30, 3, 100, false},
		{"未知方式", "curl", 2, 5, 30, 3, 100, true},
		{"负等待", "http", -1, 5, 30, 3, 100, true},
		{"超时为0", "http", 2, 5, 0, 3, 100, true},
		{"超时过大", "http", 2, 5, 301, 3, 100, true},
		{"重试为0", "http", 2, 5, 30, 0, 100, true},
		{"重试过多", "http", 2, 5, 30, 21, 100, true},
		{"负数量", "http", 2, 5, 30, 3, -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFlags(tt.method, tt.minDelay, tt.maxDelay, tt.timeout, tt.retries, tt.count)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVarP(&method, "method", "m", "http", "")
	cmd.Flags().IntVarP(&count, "count", "n", 100, "")
	cmd.Flags().Float64Var(&minDelay, "min-delay", 2.0, "")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "asics_results.csv", "")
	cmd.Flags().BoolVar(&noReport, "no-report", false, "")
	return cmd
}

func TestApplyFlags_OnlyChanged(t *testing.T) {
	cfg := &core.Config{
		Crawl:  models.DefaultCrawlConfig(),
		Output: core.OutputConfig{File: "from-config.csv", Report: true},
	}
	cfg.Crawl.Method = "browser"
	cfg.Crawl.Count = 7

	cmd := newFlagCommand()
	if err := cmd.ParseFlags([]string{"-n", "20", "--min-delay", "0.5"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	applyFlags(cmd, cfg)

	if cfg.Crawl.Count != 20 {
		t.Errorf("Count = %d, want 20", cfg.Crawl.Count)
	}
	if cfg.Crawl.MinDelay != 0.5 {
		t.Errorf("MinDelay = %v, want 0.5", cfg.Crawl.MinDelay)
	}
	// 未指定的标志不覆盖配置文件
	if cfg.Crawl.Method != "browser" {
		t.Errorf("Method = %q, want browser", cfg.Crawl.Method)
	}
	if cfg.Output.File != "from-config.csv" {
		t.Errorf("Output.File = %q, want from-config.csv", cfg.Output.File)
	}
	if !cfg.Output.Report {
		t.Error("Output.Report 不应被修改")
	}
}

func TestApplyFlags_NoReport(t *testing.T) {
	cfg := &core.Config{Crawl: models.DefaultCrawlConfig(), Output: core.OutputConfig{Report: true}}

	cmd := newFlagCommand()
	if err := cmd.ParseFlags([]string{"--no-report", "-o", "x.csv", "-m", "browser"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	applyFlags(cmd, cfg)

	if cfg.Output.Report {
		t.Error("Output.Report 应为false")
	}
	if cfg.Output.File != "x.csv" {
		t.Errorf("Output.File = %q, want x.csv", cfg.Output.File)
	}
	if cfg.Crawl.Method != "browser" {
		t.Errorf("Method = %q, want browser", cfg.Crawl.Method)
	}
}

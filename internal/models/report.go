package models

import (
	"time"

	"github.com/google/uuid"
)

// RunReport 一次运行的JSON报告
type RunReport struct {
	RunID      string    `json:"run_id"`
	Method     string    `json:"method"`  // 请求的抓取方式
	Fetcher    string    `json:"fetcher"` // 实际使用的抓取器
	FellBack   bool      `json:"fell_back"`
	Stopped    bool      `json:"stopped"` // 被用户中途停止
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Duration   float64   `json:"duration"` // 秒
	OutputFile string    `json:"output_file"`

	Total        int            `json:"total"`
	StatusCounts map[Status]int `json:"status_counts"`
	SuccessRate  float64        `json:"success_rate"`

	URLs []URLResult `json:"urls"`
}

// URLResult 报告中的单个URL条目
type URLResult struct {
	URL      string `json:"url"`
	Status   Status `json:"status"`
	Attempts int    `json:"attempts"`
}

// NewRunReport 创建运行报告并分配运行ID
func NewRunReport(method string, start time.Time) *RunReport {
	return &RunReport{
		RunID:        uuid.New().String(),
		Method:       method,
		StartTime:    start,
		StatusCounts: make(map[Status]int),
	}
}

// Finish 根据结果表填充统计信息
func (r *RunReport) Finish(table *ResultTable, end time.Time) {
	r.EndTime = end
	r.Duration = end.Sub(r.StartTime).Seconds()
	r.Total = table.Len()
	r.StatusCounts = table.CountByStatus()
	r.URLs = make([]URLResult, 0, table.Len())
	for _, rec := range table.Records() {
		r.URLs = append(r.URLs, URLResult{URL: rec.URL, Status: rec.Status, Attempts: rec.Attempts})
	}
	if r.Total > 0 {
		r.SuccessRate = float64(r.StatusCounts[StatusSuccess]) / float64(r.Total)
	}
}

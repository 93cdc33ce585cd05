package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RecoveryAshes/storecrawl/internal/crawlers"
	"github.com/RecoveryAshes/storecrawl/internal/models"
	"github.com/RecoveryAshes/storecrawl/internal/utils"
	"github.com/google/uuid"
)

// JobState 后台任务状态
type JobState string

const (
	JobIdle     JobState = "idle"
	JobRunning  JobState = "running"
	JobFinished JobState = "finished"
	JobFailed   JobState = "failed"
)

// FetcherFactory 创建抓取器,返回是否已从浏览器回退为HTTP
type FetcherFactory func(cfg models.CrawlConfig, headers http.Header) (crawlers.PageFetcher, bool, error)

// JobConfig 后台任务参数
type JobConfig struct {
	Crawl    models.CrawlConfig
	Output   OutputConfig
	URLs     []string
	Headers  http.Header
	Policy   *Policy        // 为空时按 Crawl 创建
	Progress ProgressFunc   // 可为空,在后台goroutine中调用
	Fetcher  FetcherFactory // 为空时使用 crawlers.NewPageFetcher
}

// JobStatus 任务状态快照
type JobStatus struct {
	ID        string            `json:"id"`
	State     JobState          `json:"state"`
	Processed int               `json:"processed"`
	Total     int               `json:"total"`
	Stopping  bool              `json:"stopping"`
	StartedAt time.Time         `json:"started_at"`
	Report    *models.RunReport `json:"report,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Job 在后台goroutine中运行一次批量抓取
// 完成或失败通过 Done() 通知一次
type Job struct {
	id     string
	config JobConfig

	mu        sync.Mutex
	state     JobState
	processed int
	startedAt time.Time
	summary   *BatchSummary
	err       error

	stop   atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJob 创建任务,调用 Start 后开始运行
func NewJob(config JobConfig) *Job {
	return &Job{
		id:     uuid.New().String(),
		config: config,
		state:  JobIdle,
		done:   make(chan struct{}),
	}
}

// ID 任务ID
func (j *Job) ID() string { return j.id }

// Start 启动后台运行,只能调用一次
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.state != JobIdle {
		j.mu.Unlock()
		return fmt.Errorf("任务已启动: %s", j.id)
	}
	ctx, j.cancel = context.WithCancel(ctx)
	j.state = JobRunning
	j.startedAt = time.Now()
	j.mu.Unlock()

	go j.run(ctx)
	return nil
}

func (j *Job) run(ctx context.Context) {
	var (
		summary *BatchSummary
		err     error
	)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("任务异常退出: %v", r)
		}
		j.finish(summary, err)
	}()

	factory := j.config.Fetcher
	if factory == nil {
		factory = crawlers.NewPageFetcher
	}
	fetcher, fellBack, err := factory(j.config.Crawl, j.config.Headers)
	if err != nil {
		return
	}

	bc := NewBatchCrawler(j.config.Crawl, fetcher, BatchOptions{
		OutputFile:  j.config.Output.File,
		WriteReport: j.config.Output.Report,
		FellBack:    fellBack,
		Policy:      j.config.Policy,
		Stop:        j.stop.Load,
		Progress:    j.onProgress,
	})
	summary, err = bc.CrawlBatch(ctx, j.config.URLs)
}

func (j *Job) onProgress(done, total int, rec *models.Record) {
	j.mu.Lock()
	j.processed = done
	j.mu.Unlock()

	if j.config.Progress != nil {
		j.config.Progress(done, total, rec)
	}
}

func (j *Job) finish(summary *BatchSummary, err error) {
	j.mu.Lock()
	j.summary = summary
	j.err = err
	if err != nil {
		j.state = JobFailed
		utils.Errorf("❌ 任务失败 [%s]: %v", j.id, err)
	} else {
		j.state = JobFinished
	}
	cancel := j.cancel
	j.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	close(j.done)
}

// Stop 请求协作式停止,当前URL处理完后生效
func (j *Job) Stop() {
	if !j.stop.Swap(true) {
		utils.Warn("⏹️  收到停止请求,当前URL完成后停止")
	}
}

// Cancel 立即取消,正在进行的请求会被中断
func (j *Job) Cancel() {
	j.Stop()
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done 任务结束时关闭
func (j *Job) Done() <-chan struct{} { return j.done }

// Err 任务结束后的错误
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Summary 任务结束后的摘要,运行中返回nil
func (j *Job) Summary() *BatchSummary {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.summary
}

// Running 是否仍在运行
func (j *Job) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state == JobRunning
}

// Status 返回状态快照
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()

	st := JobStatus{
		ID:        j.id,
		State:     j.state,
		Processed: j.processed,
		Total:     len(j.config.URLs),
		Stopping:  j.stop.Load(),
		StartedAt: j.startedAt,
	}
	if j.summary != nil {
		st.Report = j.summary.Report
	}
	if j.err != nil {
		st.Error = j.err.Error()
	}
	return st
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/RecoveryAshes/storecrawl/internal/core"
	"github.com/RecoveryAshes/storecrawl/internal/models"
	"github.com/RecoveryAshes/storecrawl/internal/utils"
)

// Handlers 表单前端的HTTP处理器
// 同一时间只允许一个运行
type Handlers struct {
	config  core.Config
	headers http.Header
	logs    *utils.LogBuffer
	fetcher core.FetcherFactory // 为空时使用默认抓取器
	ctx     context.Context

	mu  sync.Mutex
	job *core.Job
}

// NewHandlers 创建处理器
func NewHandlers(config core.Config, headers http.Header, logs *utils.LogBuffer) *Handlers {
	return &Handlers{
		config:  config,
		headers: headers,
		logs:    logs,
		ctx:     context.Background(),
	}
}

// RunRequest 启动运行的参数,未提供的字段沿用配置文件的值
type RunRequest struct {
	Method     string  `json:"method"`
	MinDelay   float64 `json:"min_delay"`
	MaxDelay   float64 `json:"max_delay"`
	Timeout    int     `json:"timeout"`
	MaxRetries int     `json:"max_retries"`
	Count      int     `json:"count"`
	InputFile  string  `json:"input_file"`
	OutputFile string  `json:"output_file"`
}

// RunResponse 运行状态
type RunResponse struct {
	core.JobStatus
	Logs []string `json:"logs,omitempty"`
}

func (h *Handlers) defaultRequest() RunRequest {
	c := h.config.Crawl
	return RunRequest{
		Method:     c.Method,
		MinDelay:   c.MinDelay,
		MaxDelay:   c.MaxDelay,
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
		Count:      c.Count,
		InputFile:  h.config.Input.File,
		OutputFile: h.config.Output.File,
	}
}

// StartRun POST /api/runs
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	req := h.defaultRequest()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}

	crawl := h.config.Crawl
	crawl.Method = req.Method
	crawl.MinDelay = req.MinDelay
	crawl.MaxDelay = req.MaxDelay
	crawl.Timeout = req.Timeout
	crawl.MaxRetries = req.MaxRetries
	crawl.Count = req.Count
	if err := crawl.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.OutputFile) == "" {
		h.respondError(w, http.StatusBadRequest, "输出文件不能为空")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.job != nil && h.job.Running() {
		h.respondError(w, http.StatusConflict, "已有运行中的任务")
		return
	}

	urls := core.ResolveURLs(req.InputFile, crawl)
	if len(urls) == 0 {
		h.respondError(w, http.StatusBadRequest, "没有需要抓取的URL")
		return
	}

	output := h.config.Output
	output.File = req.OutputFile

	job := core.NewJob(core.JobConfig{
		Crawl:   crawl,
		Output:  output,
		URLs:    urls,
		Headers: h.headers,
		Fetcher: h.fetcher,
	})
	// 运行不跟随请求的生命周期
	if err := job.Start(h.ctx); err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.job = job

	utils.Infof("🚀 表单启动运行 [%s]: %d个URL", job.ID(), job.Status().Total)
	h.respondJSON(w, http.StatusAccepted, RunResponse{JobStatus: job.Status()})
}

// CurrentRun GET /api/runs/current
func (h *Handlers) CurrentRun(w http.ResponseWriter, r *http.Request) {
	resp := RunResponse{JobStatus: core.JobStatus{State: core.JobIdle}}
	if job := h.currentJob(); job != nil {
		resp.JobStatus = job.Status()
	}
	if h.logs != nil {
		resp.Logs = h.logs.Lines()
	}
	h.respondJSON(w, http.StatusOK, resp)
}

// StopRun POST /api/runs/current/stop
func (h *Handlers) StopRun(w http.ResponseWriter, r *http.Request) {
	job := h.currentJob()
	if job == nil || !job.Running() {
		h.respondError(w, http.StatusConflict, "没有运行中的任务")
		return
	}
	job.Stop()
	h.respondJSON(w, http.StatusAccepted, RunResponse{JobStatus: job.Status()})
}

// Health GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Index GET /
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		RunRequest
		Methods []string
	}{
		RunRequest: h.defaultRequest(),
		Methods:    []string{string(models.MethodHTTP), string(models.MethodBrowser)},
	}
	if err := indexTemplate.Execute(w, data); err != nil {
		utils.Errorf("渲染页面失败: %v", err)
	}
}

// Shutdown 取消正在进行的运行并等待其结束
func (h *Handlers) Shutdown() {
	job := h.currentJob()
	if job == nil || !job.Running() {
		return
	}
	job.Cancel()
	<-job.Done()
}

func (h *Handlers) currentJob() *core.Job {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.job
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		utils.Errorf("响应编码失败: %v", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

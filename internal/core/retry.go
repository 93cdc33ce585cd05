package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/RecoveryAshes/storecrawl/internal/models"
)

// Outcome 单次尝试的结果类别
type Outcome int

const (
	OutcomeSuccess   Outcome = iota // 得到页面并完成分类
	OutcomeRetryable                // 可重试的失败
	OutcomeTerminal                 // 不再重试 (404、取消)
)

// AttemptResult 一次尝试的结果
type AttemptResult struct {
	Outcome Outcome
	Kind    models.ErrorKind
	Err     error
}

// Policy 重试与等待策略
// Sleep 和 Rand 可在测试中替换
type Policy struct {
	MaxRetries         int
	MinDelay, MaxDelay time.Duration
	ForbiddenMin       time.Duration
	ForbiddenMax       time.Duration

	Sleep func(ctx context.Context, d time.Duration) error
	Rand  *rand.Rand
}

// NewPolicy 按抓取配置创建策略
func NewPolicy(cfg models.CrawlConfig) *Policy {
	minDelay, maxDelay := cfg.DelayWindow()
	forbiddenMin, forbiddenMax := cfg.ForbiddenDelayWindow()
	return &Policy{
		MaxRetries:   cfg.MaxRetries,
		MinDelay:     minDelay,
		MaxDelay:     maxDelay,
		ForbiddenMin: forbiddenMin,
		ForbiddenMax: forbiddenMax,
		Sleep:        sleepContext,
		Rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Attempt 执行一次抓取并更新记录,返回本次结果
type Attempt func(ctx context.Context) AttemptResult

// Run 对一条记录执行最多 MaxRetries 次尝试
// 每次尝试前等待 [MinDelay, MaxDelay] 内的随机时间;
// 失败时按错误类别写入状态和标题
func (p *Policy) Run(ctx context.Context, rec *models.Record, attempt Attempt) {
	maxRetries := p.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}

	for n := 1; n <= maxRetries; n++ {
		if err := p.sleep(ctx, p.jitter(p.MinDelay, p.MaxDelay)); err != nil {
			markCancelled(rec, err)
			return
		}

		rec.Attempts = n
		res := attempt(ctx)

		switch res.Outcome {
		case OutcomeSuccess:
			return
		case OutcomeTerminal:
			if res.Kind == models.ErrorKindHTTPStatus && statusCodeOf(res.Err) == http.StatusNotFound {
				rec.Status = models.StatusNotFound
				rec.Title = "page not found (404)"
			} else {
				markCancelled(rec, res.Err)
			}
			return
		}

		if ctx.Err() != nil {
			markCancelled(rec, ctx.Err())
			return
		}

		if applyFailure(rec, res, n, maxRetries) && n < maxRetries {
			if err := p.sleep(ctx, p.jitter(p.ForbiddenMin, p.ForbiddenMax)); err != nil {
				markCancelled(rec, err)
				return
			}
		}
	}
}

// ResultFromError 把抓取错误转换为尝试结果
// 404 和上下文取消不再重试
func ResultFromError(rawURL string, err error) AttemptResult {
	if err == nil {
		return AttemptResult{Outcome: OutcomeSuccess}
	}
	fe := models.ClassifyError(rawURL, err)
	res := AttemptResult{Outcome: OutcomeRetryable, Kind: fe.Kind, Err: fe}
	if fe.Kind == models.ErrorKindHTTPStatus && fe.StatusCode == http.StatusNotFound {
		res.Outcome = OutcomeTerminal
	}
	if errors.Is(err, context.Canceled) {
		res.Outcome = OutcomeTerminal
	}
	return res
}

// applyFailure 把可重试失败写入记录,返回是否为403
func applyFailure(rec *models.Record, res AttemptResult, n, maxRetries int) (forbidden bool) {
	switch res.Kind {
	case models.ErrorKindTimeout:
		rec.Status = models.StatusTimeoutRetry
		rec.Title = fmt.Sprintf("timeout - retry %d/%d", n, maxRetries)
	case models.ErrorKindConnection:
		rec.Status = models.StatusConnectionErrorRetry
		rec.Title = fmt.Sprintf("connection error - retry %d/%d", n, maxRetries)
	case models.ErrorKindHTTPStatus:
		code := statusCodeOf(res.Err)
		if code == http.StatusForbidden {
			rec.Status = models.StatusForbidden
			rec.Title = "access denied (403)"
			return true
		}
		rec.Status = models.StatusHTTPErrorRetry
		rec.Title = fmt.Sprintf("HTTP error: %d - retry %d/%d", code, n, maxRetries)
	case models.ErrorKindDriver:
		rec.Status = models.StatusUnexpectedError
		rec.Title = fmt.Sprintf("browser error: %s - retry %d/%d", causeMessage(res.Err), n, maxRetries)
	default:
		rec.Status = models.StatusUnexpectedError
		rec.Title = fmt.Sprintf("unexpected error: %s - retry %d/%d", causeMessage(res.Err), n, maxRetries)
	}
	return false
}

func markCancelled(rec *models.Record, err error) {
	rec.Status = models.StatusUnexpectedError
	rec.Title = "unexpected error: " + causeMessage(err)
}

func statusCodeOf(err error) int {
	if fe := models.ClassifyError("", err); fe != nil {
		return fe.StatusCode
	}
	return 0
}

// causeMessage 去掉FetchError外壳,只保留底层原因
func causeMessage(err error) string {
	if err == nil {
		return "unknown"
	}
	if fe := models.ClassifyError("", err); fe != nil && fe.Err != nil {
		return fe.Err.Error()
	}
	return err.Error()
}

func (p *Policy) jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	if p.Rand == nil {
		return lo + time.Duration(rand.Int63n(int64(hi-lo)+1))
	}
	return lo + time.Duration(p.Rand.Int63n(int64(hi-lo)+1))
}

func (p *Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep == nil {
		return sleepContext(ctx, d)
	}
	return p.Sleep(ctx, d)
}

// sleepContext 可被取消的等待
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package core

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/RecoveryAshes/storecrawl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCrawler(t *testing.T, f *fakeFetcher) (*Crawler, *recordingSleep) {
	t.Helper()
	cfg := testCrawlConfig()
	policy, rs := testPolicy(cfg)
	c := NewCrawler(f, cfg, policy)
	c.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local) }
	return c, rs
}

func TestCrawlURL_RetryOutcomes(t *testing.T) {
	u := productURL(1)

	tests := []struct {
		name         string
		steps        []step
		wantStatus   models.Status
		wantTitle    string
		wantAttempts int
	}{
		{
			name:         "首次成功",
			steps:        []step{{html: productPage}},
			wantStatus:   models.StatusSuccess,
			wantTitle:    "GEL-KAYANO 30 | アシックス",
			wantAttempts: 1,
		},
		{
			name:         "超时后成功",
			steps:        []step{{err: timeoutErr(u)}, {html: productPage}},
			wantStatus:   models.StatusSuccess,
			wantTitle:    "GEL-KAYANO 30 | アシックス",
			wantAttempts: 2,
		},
		{
			name:         "超时耗尽",
			steps:        []step{{err: timeoutErr(u)}},
			wantStatus:   models.StatusTimeoutRetry,
			wantTitle:    "timeout - retry 3/3",
			wantAttempts: 3,
		},
		{
			name:         "连接错误耗尽",
			steps:        []step{{err: connErr(u)}},
			wantStatus:   models.StatusConnectionErrorRetry,
			wantTitle:    "connection error - retry 3/3",
			wantAttempts: 3,
		},
		{
			name:         "404不重试",
			steps:        []step{{err: statusErr(u, http.StatusNotFound)}},
			wantStatus:   models.StatusNotFound,
			wantTitle:    "page not found (404)",
			wantAttempts: 1,
		},
		{
			name:         "其他状态码",
			steps:        []step{{err: statusErr(u, http.StatusServiceUnavailable)}},
			wantStatus:   models.StatusHTTPErrorRetry,
			wantTitle:    "HTTP error: 503 - retry 3/3",
			wantAttempts: 3,
		},
		{
			name:         "浏览器错误",
			steps:        []step{{err: driverErr(u, "target closed")}},
			wantStatus:   models.StatusUnexpectedError,
			wantTitle:    "browser error: target closed - retry 3/3",
			wantAttempts: 3,
		},
		{
			name:         "panic被恢复",
			steps:        []step{{panic: "kaboom"}},
			wantStatus:   models.StatusUnexpectedError,
			wantTitle:    "unexpected error: panic: kaboom - retry 3/3",
			wantAttempts: 3,
		},
		{
			name:         "panic后成功",
			steps:        []step{{panic: "kaboom"}, {html: productPage}},
			wantStatus:   models.StatusSuccess,
			wantTitle:    "GEL-KAYANO 30 | アシックス",
			wantAttempts: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFetcher().on(u, tt.steps...)
			c, _ := newTestCrawler(t, f)

			rec := c.CrawlURL(context.Background(), u)

			assert.Equal(t, tt.wantStatus, rec.Status)
			assert.Equal(t, tt.wantTitle, rec.Title)
			assert.Equal(t, tt.wantAttempts, rec.Attempts)
			assert.Equal(t, tt.wantAttempts, f.callCount(u))
			assert.Equal(t, "2024-05-01 09:30:00", rec.Row()[8])
		})
	}
}

func TestCrawlURL_Forbidden(t *testing.T) {
	u := productURL(2)
	f := newFakeFetcher().on(u, step{err: statusErr(u, http.StatusForbidden)})
	c, rs := newTestCrawler(t, f)

	rec := c.CrawlURL(context.Background(), u)

	assert.Equal(t, models.StatusForbidden, rec.Status)
	assert.Equal(t, "access denied (403)", rec.Title)
	assert.Equal(t, 3, f.callCount(u))

	// 每次尝试前等待一次,前两次403后各额外等待一次,最后一次不再等待
	waits := rs.all()
	require.Len(t, waits, 5)
	for i, d := range waits {
		if i%2 == 0 {
			assert.GreaterOrEqual(t, d, 2*time.Second)
			assert.LessOrEqual(t, d, 5*time.Second)
		} else {
			assert.GreaterOrEqual(t, d, 5*time.Second)
			assert.LessOrEqual(t, d, 10*time.Second)
		}
	}
}

func TestCrawlURL_ForbiddenThenSuccess(t *testing.T) {
	u := productURL(3)
	f := newFakeFetcher().on(u, step{err: statusErr(u, http.StatusForbidden)}, step{html: productPage})
	c, rs := newTestCrawler(t, f)

	rec := c.CrawlURL(context.Background(), u)

	assert.Equal(t, models.StatusSuccess, rec.Status)
	assert.Equal(t, "¥19,800", rec.Price)
	assert.Len(t, rs.all(), 3)
}

func TestCrawlURL_Classification(t *testing.T) {
	tests := []struct {
		name       string
		html       string
		wantStatus models.Status
		wantTitle  string
	}{
		{"商品页", productPage, models.StatusSuccess, "GEL-KAYANO 30 | アシックス"},
		{"没有价格和库存", emptyPage, models.StatusNoProductInfo, "product info not found"},
		{"标题表示不存在", notFoundPage, models.StatusNotFound, "page not found"},
		{"不存在且无商品信息", `<title>404</title>`, models.StatusNotFound, "page not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := productURL(4)
			c, _ := newTestCrawler(t, newFakeFetcher().on(u, step{html: tt.html}))

			rec := c.CrawlURL(context.Background(), u)
			assert.Equal(t, tt.wantStatus, rec.Status)
			assert.Equal(t, tt.wantTitle, rec.Title)
			assert.Equal(t, 1, rec.Attempts)
		})
	}
}

func TestCrawlURL_Attributes(t *testing.T) {
	f := newFakeFetcher()
	c, _ := newTestCrawler(t, f)

	rec := c.CrawlURL(context.Background(), "/jp/ja-jp/tennis/products/1041A456-750.html")

	assert.Equal(t, "https://www.asics.com/jp/ja-jp/tennis/products/1041A456-750.html", rec.URL)
	assert.Equal(t, "tennis", rec.Category)
	assert.Equal(t, "1041A456", rec.ProductID)
	assert.Equal(t, "750", rec.Color)

	rec = c.CrawlURL(context.Background(), "https://www.asics.com/jp/ja-jp/")
	assert.Empty(t, rec.Category)
	assert.Empty(t, rec.ProductID)
	assert.Empty(t, rec.Color)
}

func TestCrawlURL_Cancelled(t *testing.T) {
	u := productURL(5)
	f := newFakeFetcher()
	c, _ := newTestCrawler(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := c.CrawlURL(ctx, u)
	assert.Equal(t, models.StatusUnexpectedError, rec.Status)
	assert.Contains(t, rec.Title, "context canceled")
	assert.Equal(t, 0, f.callCount(u))
	assert.False(t, rec.Timestamp.IsZero())
}

func TestCrawlURL_CancelledDuringFetch(t *testing.T) {
	u := productURL(6)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFakeFetcher()
	f.hook = func(string) { cancel() }
	c, _ := newTestCrawler(t, f)

	rec := c.CrawlURL(ctx, u)
	assert.Equal(t, models.StatusUnexpectedError, rec.Status)
	assert.Equal(t, 1, f.callCount(u), "取消后不再重试")
}

func TestResultFromError(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, ResultFromError("u", nil).Outcome)
	assert.Equal(t, OutcomeTerminal, ResultFromError("u", statusErr("u", 404)).Outcome)
	assert.Equal(t, OutcomeRetryable, ResultFromError("u", statusErr("u", 403)).Outcome)
	assert.Equal(t, OutcomeTerminal, ResultFromError("u", context.Canceled).Outcome)

	res := ResultFromError("u", context.DeadlineExceeded)
	assert.Equal(t, OutcomeRetryable, res.Outcome)
	assert.Equal(t, models.ErrorKindTimeout, res.Kind)
}

func TestPolicy_Jitter(t *testing.T) {
	p, _ := testPolicy(testCrawlConfig())
	for i := 0; i < 100; i++ {
		d := p.jitter(2*time.Second, 5*time.Second)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
	}
	assert.Equal(t, time.Second, p.jitter(time.Second, time.Second))
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

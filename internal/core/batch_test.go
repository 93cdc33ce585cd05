package core

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/storecrawl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readResultCSV(t *testing.T, path string) [][]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "\ufeff"), "CSV应带BOM")

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\ufeff"))).ReadAll()
	require.NoError(t, err)
	return rows
}

func newTestBatch(t *testing.T, f *fakeFetcher, opts BatchOptions) *BatchCrawler {
	t.Helper()
	cfg := testCrawlConfig()
	if opts.Policy == nil {
		opts.Policy, _ = testPolicy(cfg)
	}
	return NewBatchCrawler(cfg, f, opts)
}

func TestCrawlBatch_OrderAndOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.csv")
	urls := []string{productURL(1), productURL(2), productURL(3)}

	f := newFakeFetcher().
		on(urls[1], step{err: statusErr(urls[1], http.StatusNotFound)}).
		on(urls[2], step{html: emptyPage})

	var progress []int
	bc := newTestBatch(t, f, BatchOptions{
		OutputFile:  out,
		WriteReport: true,
		Progress: func(done, total int, rec *models.Record) {
			assert.Equal(t, 3, total)
			progress = append(progress, done)
		},
	})

	summary, err := bc.CrawlBatch(context.Background(), urls)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, progress)
	assert.Equal(t, urls, f.order)
	assert.Equal(t, 1, f.closed, "结束时关闭抓取器")
	assert.False(t, summary.Stopped)

	rows := readResultCSV(t, out)
	require.Len(t, rows, 4)
	assert.Equal(t, models.CSVHeader, rows[0])
	assert.Equal(t, urls[0], rows[1][0])
	assert.Equal(t, "success", rows[1][1])
	assert.Equal(t, "not-found", rows[2][1])
	assert.Equal(t, "no-product-info", rows[3][1])
	assert.Equal(t, "running", rows[1][7])

	data, err := os.ReadFile(filepath.Join(filepath.Dir(out), "results_report.json"))
	require.NoError(t, err)
	var report models.RunReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, "fake", report.Fetcher)
	assert.Equal(t, 1, report.StatusCounts[models.StatusSuccess])
	assert.InDelta(t, 1.0/3.0, report.SuccessRate, 0.001)
	assert.NotEmpty(t, report.RunID)
}

func TestCrawlBatch_PeriodicFlush(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.csv")
	urls := make([]string, 12)
	for i := range urls {
		urls[i] = productURL(i)
	}

	f := newFakeFetcher()
	checked := false
	f.hook = func(url string) {
		// 第11个URL开始时,前10条已写入
		if url == urls[10] {
			rows := readResultCSV(t, out)
			assert.Len(t, rows, 11)
			checked = true
		}
	}

	bc := newTestBatch(t, f, BatchOptions{OutputFile: out})
	_, err := bc.CrawlBatch(context.Background(), urls)
	require.NoError(t, err)
	assert.True(t, checked)

	assert.Len(t, readResultCSV(t, out), 13)
	_, err = os.Stat(filepath.Join(filepath.Dir(out), "results_report.json"))
	assert.True(t, os.IsNotExist(err), "未开启报告")
}

func TestCrawlBatch_CooperativeStop(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.csv")
	urls := []string{productURL(1), productURL(2), productURL(3), productURL(4)}

	f := newFakeFetcher()
	stop := false
	f.hook = func(url string) {
		if url == urls[1] {
			stop = true
		}
	}

	bc := newTestBatch(t, f, BatchOptions{
		OutputFile: out,
		Stop:       func() bool { return stop },
	})
	summary, err := bc.CrawlBatch(context.Background(), urls)
	require.NoError(t, err)

	assert.True(t, summary.Stopped)
	assert.Equal(t, 2, summary.Table.Len(), "当前URL处理完后停止")
	assert.True(t, summary.Report.Stopped)
	assert.Len(t, readResultCSV(t, out), 3)
	assert.Equal(t, 1, f.closed)
}

func TestCrawlBatch_HardCancel(t *testing.T) {
	urls := []string{productURL(1), productURL(2), productURL(3)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFakeFetcher()
	f.hook = func(url string) {
		if url == urls[0] {
			cancel()
		}
	}

	bc := newTestBatch(t, f, BatchOptions{})
	summary, err := bc.CrawlBatch(ctx, urls)
	require.NoError(t, err)

	require.Equal(t, 1, summary.Table.Len())
	assert.Equal(t, models.StatusUnexpectedError, summary.Table.Records()[0].Status)
	assert.True(t, summary.Stopped)
	assert.Equal(t, 1, f.closed)
}

func TestCrawlBatch_ClosesFetcherOnPanic(t *testing.T) {
	f := newFakeFetcher()
	bc := newTestBatch(t, f, BatchOptions{
		Progress: func(int, int, *models.Record) { panic("progress failed") },
	})

	assert.Panics(t, func() {
		_, _ = bc.CrawlBatch(context.Background(), []string{productURL(1)})
	})
	assert.Equal(t, 1, f.closed)
}

func TestCrawlBatch_FinalFlushError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	out := filepath.Join(blocker, "results.csv")

	bc := newTestBatch(t, newFakeFetcher(), BatchOptions{OutputFile: out})
	summary, err := bc.CrawlBatch(context.Background(), []string{productURL(1)})

	assert.Error(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Table.Len())
}

func TestCrawlBatch_Empty(t *testing.T) {
	out := filepath.Join(t.TempDir(), "results.csv")
	bc := newTestBatch(t, newFakeFetcher(), BatchOptions{OutputFile: out})

	summary, err := bc.CrawlBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Table.Len())
	assert.Equal(t, [][]string{models.CSVHeader}, readResultCSV(t, out))
}

func TestCrawlBatch_FromInputFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "urls.txt")
	content := "https://www.asics.com/jp/ja-jp/running/p/1011A100-200.html\n" +
		"# comment\n" +
		"\n" +
		"jp/ja-jp/tennis/p/1041A999-100.html\n"
	require.NoError(t, os.WriteFile(input, []byte(content), 0644))

	cfg := testCrawlConfig()
	urls := ResolveURLs(input, cfg)
	require.Len(t, urls, 2)

	out := filepath.Join(dir, "results.csv")
	f := newFakeFetcher()
	summary, err := newTestBatch(t, f, BatchOptions{OutputFile: out}).CrawlBatch(context.Background(), urls)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Table.Len())

	resolved := "https://www.asics.com/jp/ja-jp/tennis/p/1041A999-100.html"
	assert.Equal(t, []string{urls[0], resolved}, f.order)

	rows := readResultCSV(t, out)
	require.Len(t, rows, 3)
	assert.Equal(t, urls[0], rows[1][0])
	assert.Equal(t, resolved, rows[2][0])
	assert.Equal(t, "1041A999", rows[2][3])
	assert.Equal(t, "100", rows[2][6])
	assert.Equal(t, "tennis", rows[2][7])
}

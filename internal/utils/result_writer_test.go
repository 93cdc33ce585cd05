package utils

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/storecrawl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readCSV(t *testing.T, path string) (bom bool, rows [][]string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	bom = bytes.HasPrefix(data, []byte("\xef\xbb\xbf"))
	rows, err = csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))).ReadAll()
	require.NoError(t, err)
	return bom, rows
}

func TestResultWriter_Flush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "results.csv")
	w := NewResultWriter(path)
	table := models.NewResultTable()

	rec := models.NewRecord("https://www.asics.com/jp/ja-jp/running/p/1011A123-001.html")
	rec.Status = models.StatusSuccess
	rec.Title = "GEL-KAYANO 30, ランニングシューズ"
	rec.Price = "¥19,800"
	rec.Availability = "in-stock"
	rec.ProductID = "1011A123"
	rec.Color = "001"
	rec.Category = "running"
	rec.Timestamp = time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	table.Append(rec)

	require.NoError(t, w.Flush(table))

	bom, rows := readCSV(t, path)
	assert.True(t, bom, "应写入UTF-8 BOM")
	require.Len(t, rows, 2)
	assert.Equal(t, models.CSVHeader, rows[0])
	assert.Equal(t, "GEL-KAYANO 30, ランニングシューズ", rows[1][2])
	assert.Equal(t, "2024-01-02 03:04:05", rows[1][8])
}

func TestResultWriter_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	w := NewResultWriter(path)
	table := models.NewResultTable()

	table.Append(models.NewRecord("u1"))
	require.NoError(t, w.Flush(table))
	table.Append(models.NewRecord("u2"))
	require.NoError(t, w.Flush(table))

	_, rows := readCSV(t, path)
	require.Len(t, rows, 3, "每次写入都是完整快照,不应重复追加")
	assert.Equal(t, "u1", rows[1][0])
	assert.Equal(t, "u2", rows[2][0])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "不应残留临时文件")
}

func TestResultWriter_EmptyTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, NewResultWriter(path).Flush(models.NewResultTable()))

	_, rows := readCSV(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, models.CSVHeader, rows[0])
}

func TestReportPath(t *testing.T) {
	assert.Equal(t, "out/asics_results_report.json", ReportPath("out/asics_results.csv"))
	assert.Equal(t, "results_report.json", ReportPath("results"))
}

func TestSaveRunReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r", "report.json")
	report := models.NewRunReport("http", time.Now())
	report.Finish(models.NewResultTable(), time.Now())

	require.NoError(t, SaveRunReport(path, report))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), report.RunID)
}

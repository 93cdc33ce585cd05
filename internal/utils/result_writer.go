package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/storecrawl/internal/models"
)

// ResultWriter 把结果表写成CSV文件
// 每次Flush都完整重写文件,文件内容始终是某一时刻结果表的完整快照
type ResultWriter struct {
	path string
}

// NewResultWriter 创建CSV写入器
func NewResultWriter(path string) *ResultWriter {
	return &ResultWriter{path: path}
}

// Path 输出文件路径
func (w *ResultWriter) Path() string {
	return w.path
}

// Flush 写入表头和全部记录
// 先写临时文件再改名,中途失败不会留下半个文件
func (w *ResultWriter) Flush(table *models.ResultTable) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	// UTF-8 BOM,保证表格软件正确识别日文
	if _, err := tmp.WriteString(utf8BOM); err != nil {
		tmp.Close()
		return fmt.Errorf("写入BOM失败: %w", err)
	}

	cw := csv.NewWriter(tmp)
	if err := cw.Write(models.CSVHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("写入表头失败: %w", err)
	}
	for _, rec := range table.Records() {
		if err := cw.Write(rec.Row()); err != nil {
			tmp.Close()
			return fmt.Errorf("写入记录失败 [%s]: %w", rec.URL, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("写入CSV失败: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}

	if err := os.Rename(tmpName, w.path); err != nil {
		return fmt.Errorf("保存结果文件失败: %w", err)
	}

	Debugf("结果已保存: %s (%d 条)", w.path, table.Len())
	return nil
}

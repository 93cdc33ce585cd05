package utils

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/RecoveryAshes/storecrawl/internal/models"
)

const utf8BOM = "\ufeff"

// ReadURLsFromFile 从文件中读取URL列表
// 每个非空且不以 # 开头的行都是一个URL,按原顺序返回,不丢弃任何行;
// 相对路径由抓取时的 NormalizeURL 补全。文件中没有URL时返回空列表
func ReadURLsFromFile(filepath string) ([]string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("打开URL文件失败: %w", err)
	}
	defer file.Close()

	urls := make([]string, 0)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if lineNum == 1 {
			line = strings.TrimPrefix(line, utf8BOM)
		}
		line = strings.TrimSpace(line)

		// 跳过空行和注释行
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.Contains(line, "://") {
			if err := models.ValidateURL(line); err != nil {
				Warnf("URL可能无效 (行 %d): %s - %v", lineNum, line, err)
			}
		}

		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取URL文件失败: %w", err)
	}

	Infof("从文件加载了 %d 个URL", len(urls))
	return urls, nil
}

// WriteURLsToFile 把URL列表写入文件,每行一个
func WriteURLsToFile(path string, urls []string) error {
	var sb strings.Builder
	for _, u := range urls {
		sb.WriteString(u)
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("写入URL文件失败: %w", err)
	}
	return nil
}

package core

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/RecoveryAshes/storecrawl/internal/models"
	"github.com/RecoveryAshes/storecrawl/internal/utils"
)

var (
	// ProductCategories 生成测试URL使用的分类
	ProductCategories = []string{
		"running", "training", "tennis", "sportsstyle",
		"volleyball", "track-and-field", "walking",
		"basketball", "football", "golf",
	}

	// ProductIDPrefixes 商品编号前缀
	ProductIDPrefixes = []string{
		"1011A", "1011B", "1012A", "1012B", "1013A",
		"1071A", "1071B", "1072A", "1072B", "1073A",
		"1081A", "1081B", "1082A", "1082B", "1083A",
		"1091A", "1091B", "1092A", "1092B", "1093A",
	}

	productURLTemplates = []string{
		"%s%s/%s/p/%s-%s.html",
		"%s%s/%s/products/%s-%s.html",
		"%s%s/sale/%s/p/%s-%s.html",
	}
)

// GenerateURLs 生成count个测试用商品URL
// 没有真实URL列表时使用,rng为空则按当前时间取种子
func GenerateURLs(baseURL, localePath string, count int, rng *rand.Rand) []string {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	base := strings.TrimRight(baseURL, "/")
	locale := "/" + strings.Trim(localePath, "/")
	if locale == "/" {
		locale = ""
	}

	urls := make([]string, 0, count)
	for i := 0; i < count; i++ {
		category := ProductCategories[rng.Intn(len(ProductCategories))]
		productID := fmt.Sprintf("%s%d", ProductIDPrefixes[rng.Intn(len(ProductIDPrefixes))], 100+rng.Intn(900))
		color := fmt.Sprintf("%d", 100+rng.Intn(900))
		tmpl := productURLTemplates[rng.Intn(len(productURLTemplates))]
		urls = append(urls, fmt.Sprintf(tmpl, base, locale, category, productID, color))
	}
	return urls
}

// ResolveURLs 确定本次运行的URL列表
// 未指定输入文件或文件不存在时按配置生成测试URL;
// 文件存在但没有URL时返回空列表,读取失败时也返回空列表
func ResolveURLs(inputFile string, cfg models.CrawlConfig) []string {
	if inputFile == "" {
		utils.Info("未指定输入文件,生成测试URL")
		return GenerateURLs(cfg.BaseURL, cfg.LocalePath, cfg.Count, nil)
	}

	urls, err := utils.ReadURLsFromFile(inputFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		utils.Warnf("⚠️  输入文件不存在,改为生成测试URL: %s", inputFile)
		return GenerateURLs(cfg.BaseURL, cfg.LocalePath, cfg.Count, nil)
	case err != nil:
		utils.Errorf("读取输入文件失败: %v", err)
		return nil
	}
	return urls
}

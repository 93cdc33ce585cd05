package core

import (
	"net/http"
	"strings"

	"github.com/RecoveryAshes/storecrawl/internal/models"
	"github.com/RecoveryAshes/storecrawl/internal/utils"
)

const (
	// DefaultUserAgent 默认User-Agent (桌面版Chrome)
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"

	// DefaultAcceptLanguage 默认语言偏好,日语优先
	DefaultAcceptLanguage = "ja,en-US;q=0.9,en;q=0.8"
)

// HeaderManager 管理抓取会话使用的静态请求头
// 合并顺序: 默认 < 配置文件 headers < 命令行 -H
// 实现 models.HeaderProvider 接口
type HeaderManager struct {
	defaults http.Header
	config   http.Header
	cli      http.Header

	validator *utils.HeaderValidator
	redactor  *utils.HeaderRedactor
}

// NewHeaderManager 创建头部管理器
// 参数:
//   - referer: 默认Referer,一般为 站点根地址+区域路径+"/"
//   - configHeaders: 配置文件中的 headers 映射
//   - cliHeaders: 命令行传入的 "Name: Value" 列表
func NewHeaderManager(referer string, configHeaders map[string]string, cliHeaders []string) (*HeaderManager, error) {
	hm := &HeaderManager{
		defaults:  getDefaultHeaders(referer),
		config:    make(http.Header),
		cli:       make(http.Header),
		validator: utils.NewHeaderValidator(),
		redactor:  utils.NewHeaderRedactor(),
	}

	for name, value := range configHeaders {
		hm.config.Set(name, value)
	}

	if len(cliHeaders) > 0 {
		parsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		hm.cli = parsed
	}

	return hm, nil
}

// DefaultReferer 由站点根地址和区域路径拼出默认Referer
func DefaultReferer(baseURL, localePath string) string {
	locale := strings.Trim(localePath, "/")
	base := strings.TrimRight(baseURL, "/")
	if locale == "" {
		return base + "/"
	}
	return base + "/" + locale + "/"
}

func getDefaultHeaders(referer string) http.Header {
	h := http.Header{
		"User-Agent":      []string{DefaultUserAgent},
		"Accept":          []string{"text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"},
		"Accept-Language": []string{DefaultAcceptLanguage},
		"Accept-Encoding": []string{"gzip, deflate, br"},
		"Cache-Control":   []string{"no-cache"},
		"Pragma":          []string{"no-cache"},
	}
	if referer != "" {
		h.Set("Referer", referer)
	}
	return h
}

// Validate 依次验证默认、配置文件和命令行头部
func (hm *HeaderManager) Validate() error {
	if err := hm.validator.Validate(hm.defaults); err != nil {
		utils.Errorf("默认头部验证失败: %v", err)
		return err
	}
	if err := hm.validator.Validate(hm.config); err != nil {
		utils.Errorf("配置文件头部验证失败: %v", err)
		return err
	}
	if err := hm.validator.Validate(hm.cli); err != nil {
		utils.Errorf("命令行头部验证失败: %v", err)
		return err
	}
	return nil
}

// GetMergedHeaders 按优先级合并头部
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range layer {
			result[name] = values
		}
	}
	return result
}

// GetSafeHeaders 返回脱敏后的头部,用于日志
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}

// GetHeaders 实现 HeaderProvider 接口
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	if err := hm.Validate(); err != nil {
		return nil, err
	}
	merged := hm.GetMergedHeaders()
	utils.Debugf("请求头: %s", hm.redactor.RedactToString(merged))
	return merged, nil
}

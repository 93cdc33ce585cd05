package crawlers

import (
	"regexp"
	"strings"
)

// DefaultLocalePath 默认区域路径
const DefaultLocalePath = "/jp/ja-jp"

// ProductURL 从商品URL中解析出的属性
type ProductURL struct {
	Category  string
	ProductID string
	Color     string
}

// URLAttributeParser 商品URL属性解析器
// 支持三种路径: {locale}/{分类}/p/{编号}-{颜色}.html,
// {locale}/{分类}/products/{编号}-{颜色}.html, {locale}/sale/{分类}/p/{编号}-{颜色}.html
type URLAttributeParser struct {
	patterns []*regexp.Regexp
}

// NewURLAttributeParser 按区域路径创建解析器
func NewURLAttributeParser(localePath string) *URLAttributeParser {
	locale := strings.TrimRight(localePath, "/")
	if locale == "" {
		locale = DefaultLocalePath
	}
	if !strings.HasPrefix(locale, "/") {
		locale = "/" + locale
	}
	prefix := regexp.QuoteMeta(locale)
	const tail = `([A-Z0-9]+)-([0-9]{3})\.html`

	return &URLAttributeParser{
		patterns: []*regexp.Regexp{
			regexp.MustCompile(prefix + `/([^/]+)/p/` + tail),
			regexp.MustCompile(prefix + `/([^/]+)/products/` + tail),
			regexp.MustCompile(prefix + `/sale/([^/]+)/p/` + tail),
		},
	}
}

// Parse 解析URL,都不匹配时返回false,属性保持为空
func (p *URLAttributeParser) Parse(rawURL string) (ProductURL, bool) {
	for _, re := range p.patterns {
		if m := re.FindStringSubmatch(rawURL); m != nil {
			return ProductURL{Category: m[1], ProductID: m[2], Color: m[3]}, true
		}
	}
	return ProductURL{}, false
}

package crawlers

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TitleNotFound 页面没有title时的占位标题
const TitleNotFound = "title not found"

var (
	// PriceSelectors 价格选择器,按顺序尝试
	PriceSelectors = []string{
		".product-price",
		".price",
		`[data-test-id="product-price"]`,
	}

	// AvailabilitySelectors 库存选择器,按顺序尝试
	AvailabilitySelectors = []string{
		".stock-status",
		".availability",
		`[data-test-id="availability"]`,
	}

	// 不存在页面的标题特征,占位标题 TitleNotFound 除外
	notFoundMarkers = []string{"404", "not found", "ページが見つかりません"}

	availabilityValues = map[string]string{
		"instock":             "in-stock",
		"outofstock":          "out-of-stock",
		"limitedavailability": "limited-availability",
	}

	// 文本中任意位置的schema.org库存URI
	schemaAvailability = regexp.MustCompile(`(?i)(?:https?://)?(?:schema\.org/|schema:)(InStock|OutOfStock|LimitedAvailability)\b`)
)

// ProductInfo 提取结果,找不到的字段为空
type ProductInfo struct {
	Title        string
	Price        string
	Availability string
}

// HasProductInfo 价格和库存至少有一个
func (p ProductInfo) HasProductInfo() bool {
	return p.Price != "" || p.Availability != ""
}

// ExtractProduct 从HTML中提取商品信息,不返回错误
func ExtractProduct(html string) ProductInfo {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ProductInfo{Title: TitleNotFound}
	}

	info := ProductInfo{
		Title:        strings.TrimSpace(doc.Find("title").First().Text()),
		Price:        firstText(doc, PriceSelectors),
		Availability: firstText(doc, AvailabilitySelectors),
	}
	if info.Title == "" {
		info.Title = TitleNotFound
	}

	if info.Price == "" || info.Availability == "" {
		price, availability := extractJSONLD(doc)
		if info.Price == "" {
			info.Price = price
		}
		if info.Availability == "" {
			info.Availability = availability
		}
	}

	info.Availability = NormalizeAvailability(info.Availability)
	return info
}

// IsNotFoundTitle 标题是否表示页面不存在
func IsNotFoundTitle(title string) bool {
	if title == TitleNotFound {
		return false
	}
	lower := strings.ToLower(title)
	for _, marker := range notFoundMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// NormalizeAvailability 把文本中的schema.org库存URI替换为简短值,其他内容原样保留
func NormalizeAvailability(v string) string {
	return schemaAvailability.ReplaceAllStringFunc(strings.TrimSpace(v), func(uri string) string {
		m := schemaAvailability.FindStringSubmatch(uri)
		return availabilityValues[strings.ToLower(m[1])]
	})
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = strings.TrimSpace(s.Text())
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// extractJSONLD 在所有ld+json块中查找第一个Product,解析失败的块直接跳过
func extractJSONLD(doc *goquery.Document) (price, availability string) {
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data interface{}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		product := findProduct(data)
		if product == nil {
			return true
		}
		price, availability = offerFields(product["offers"])
		return false
	})
	return price, availability
}

// findProduct 支持单个对象、数组和 @graph
func findProduct(data interface{}) map[string]interface{} {
	switch v := data.(type) {
	case []interface{}:
		for _, item := range v {
			if p := findProduct(item); p != nil {
				return p
			}
		}
	case map[string]interface{}:
		if isProductType(v["@type"]) {
			return v
		}
		if graph, ok := v["@graph"]; ok {
			return findProduct(graph)
		}
	}
	return nil
}

func isProductType(t interface{}) bool {
	switch v := t.(type) {
	case string:
		return v == "Product"
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "Product" {
				return true
			}
		}
	}
	return false
}

// offerFields offers可以是对象或数组,数组取第一个
func offerFields(offers interface{}) (price, availability string) {
	if list, ok := offers.([]interface{}); ok {
		if len(list) == 0 {
			return "", ""
		}
		offers = list[0]
	}
	offer, ok := offers.(map[string]interface{})
	if !ok {
		return "", ""
	}

	price = scalarString(offer["price"])
	if price == "" {
		price = scalarString(offer["lowPrice"])
	}
	availability = scalarString(offer["availability"])
	return price, availability
}

func scalarString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

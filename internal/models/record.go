package models

import "time"

// Status 单个URL的最终结果状态
type Status string

const (
	StatusSuccess              Status = "success"                // 提取成功
	StatusTimeoutRetry         Status = "timeout-retry"          // 超时(重试耗尽)
	StatusConnectionErrorRetry Status = "connection-error-retry" // 连接错误(重试耗尽)
	StatusHTTPErrorRetry       Status = "http-error-retry"       // 其他HTTP错误(重试耗尽)
	StatusForbidden            Status = "forbidden"              // 403
	StatusNotFound             Status = "not-found"              // 404或页面标题判定不存在
	StatusNoProductInfo        Status = "no-product-info"        // 页面无价格也无库存信息
	StatusUnexpectedError      Status = "unexpected-error"       // 其他错误
)

// AllStatuses 按报告顺序排列的全部状态
var AllStatuses = []Status{
	StatusSuccess,
	StatusTimeoutRetry,
	StatusConnectionErrorRetry,
	StatusHTTPErrorRetry,
	StatusForbidden,
	StatusNotFound,
	StatusNoProductInfo,
	StatusUnexpectedError,
}

// TimestampLayout 记录完成时间的输出格式
const TimestampLayout = "2006-01-02 15:04:05"

// CSVHeader 结果表的列顺序
var CSVHeader = []string{
	"url", "status", "title", "product_id", "price",
	"availability", "color", "category", "timestamp",
}

// Record 单个URL的抓取结果
type Record struct {
	URL          string    `json:"url"`
	Status       Status    `json:"status"`
	Title        string    `json:"title"`
	ProductID    string    `json:"product_id"`
	Price        string    `json:"price"`
	Availability string    `json:"availability"`
	Color        string    `json:"color"`
	Category     string    `json:"category"`
	Timestamp    time.Time `json:"timestamp"`
	Attempts     int       `json:"attempts"`
}

// NewRecord 创建初始记录,状态默认为 unexpected-error,
// 只有某次尝试明确给出结果后才会被覆盖
func NewRecord(url string) *Record {
	return &Record{
		URL:    url,
		Status: StatusUnexpectedError,
	}
}

// Row 按CSVHeader顺序返回一行
func (r *Record) Row() []string {
	ts := ""
	if !r.Timestamp.IsZero() {
		ts = r.Timestamp.Format(TimestampLayout)
	}
	return []string{
		r.URL,
		string(r.Status),
		r.Title,
		r.ProductID,
		r.Price,
		r.Availability,
		r.Color,
		r.Category,
		ts,
	}
}

// ResultTable 按输入顺序追加的结果表
// 由运行编排器独占,不支持并发访问
type ResultTable struct {
	records []*Record
}

// NewResultTable 创建空结果表
func NewResultTable() *ResultTable {
	return &ResultTable{records: make([]*Record, 0)}
}

// Append 追加一条已完成的记录
func (t *ResultTable) Append(r *Record) {
	t.records = append(t.records, r)
}

// Records 返回全部记录
func (t *ResultTable) Records() []*Record {
	return t.records
}

// Len 记录数
func (t *ResultTable) Len() int {
	return len(t.records)
}

// CountByStatus 按状态统计记录数
func (t *ResultTable) CountByStatus() map[Status]int {
	counts := make(map[Status]int, len(AllStatuses))
	for _, r := range t.records {
		counts[r.Status]++
	}
	return counts
}

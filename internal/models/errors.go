package models

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

// ErrorKind 抓取失败的分类
type ErrorKind string

const (
	ErrorKindTimeout    ErrorKind = "timeout"     // 请求或页面加载超时
	ErrorKindConnection ErrorKind = "connection"  // DNS、拒绝连接、连接重置等
	ErrorKindHTTPStatus ErrorKind = "http_status" // 服务器返回非2xx状态码
	ErrorKindDriver     ErrorKind = "driver"      // 浏览器驱动异常
	ErrorKindUnexpected ErrorKind = "unexpected"  // 其他
)

// FetchError 抓取错误
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int // 仅 ErrorKindHTTPStatus 时有效
	Err        error
}

// Error 实现error接口
func (e *FetchError) Error() string {
	if e.Kind == ErrorKindHTTPStatus {
		return fmt.Sprintf("抓取失败 [%s]: HTTP %d", e.URL, e.StatusCode)
	}
	if e.Err == nil {
		return fmt.Sprintf("抓取失败 [%s]: %s", e.URL, e.Kind)
	}
	return fmt.Sprintf("抓取失败 [%s] (%s): %v", e.URL, e.Kind, e.Err)
}

// Unwrap 支持errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewHTTPStatusError 创建状态码错误
func NewHTTPStatusError(rawURL string, statusCode int) *FetchError {
	return &FetchError{Kind: ErrorKindHTTPStatus, URL: rawURL, StatusCode: statusCode}
}

// ClassifyError 把底层错误归类为FetchError
// 已经是FetchError的直接返回
func ClassifyError(rawURL string, err error) *FetchError {
	if err == nil {
		return nil
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}

	if errors.Is(err, context.Canceled) {
		return &FetchError{Kind: ErrorKindUnexpected, URL: rawURL, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: ErrorKindTimeout, URL: rawURL, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: ErrorKindTimeout, URL: rawURL, Err: err}
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	var urlErr *url.Error
	switch {
	case errors.As(err, &dnsErr),
		errors.As(err, &opErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET):
		return &FetchError{Kind: ErrorKindConnection, URL: rawURL, Err: err}
	case errors.As(err, &urlErr):
		return &FetchError{Kind: ErrorKindConnection, URL: rawURL, Err: err}
	}

	return &FetchError{Kind: ErrorKindUnexpected, URL: rawURL, Err: err}
}

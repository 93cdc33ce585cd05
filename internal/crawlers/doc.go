// Package crawlers 提供商品页的抓取与解析
//
// # 概述
//
// 每次运行只选择一种抓取方式,整个运行期间复用同一个会话:
// HTTP方式复用同一个Colly收集器(连接池和Cookie),浏览器方式复用同一个浏览器标签页。
//
// # 核心组件
//
// ## PageFetcher
//
// 抓取器接口,由 NewPageFetcher 按配置创建。
// 请求浏览器方式但浏览器无法启动(或内存不足)时,永久回退到HTTP方式。
//
//	fetcher, fellBack, err := NewPageFetcher(cfg, headers)
//	if err != nil { /* 处理错误 */ }
//	defer fetcher.Close()
//
//	page, err := fetcher.Fetch(ctx, "https://www.asics.com/jp/ja-jp/running/p/1011A123-001.html")
//
// 抓取失败统一返回 *models.FetchError,按 Kind 区分超时、连接错误、状态码错误和驱动错误。
//
// ## DirectFetcher
//
// 基于Colly的HTTP抓取器。可选使用utls模拟Chrome的TLS指纹,
// 自行解压 gzip/deflate/br 响应,Cookie按公共后缀列表隔离。
//
// ## BrowserFetcher
//
// 基于go-rod的浏览器抓取器。注入stealth脚本,通过CDP设置静态请求头,
// 从 performance 导航记录中读取HTTP状态码。
//
// ## ExtractProduct
//
// 从HTML中提取标题、价格和库存状态。先按CSS选择器顺序查找,
// 再回退到 application/ld+json 中的 Product 数据。不会失败,找不到的字段为空。
//
// ## URLAttributeParser
//
// 从商品URL中解析分类、商品编号和颜色编号。
package crawlers

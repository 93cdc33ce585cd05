package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/RecoveryAshes/storecrawl/internal/core"
	"github.com/RecoveryAshes/storecrawl/internal/models"
	"github.com/RecoveryAshes/storecrawl/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string
	validateConfig bool

	// 抓取参数
	method     string
	headless   bool
	inputFile  string
	outputFile string
	count      int
	baseURL    string
	driverPath string
	minDelay   float64
	maxDelay   float64
	timeout    int
	retries    int
	noReport   bool
)

var (
	// appConfig 在 PersistentPreRunE 中加载
	appConfig *core.Config
	// logBuffer 表单页面展示的最近日志
	logBuffer = utils.NewLogBuffer(200)
)

var rootCmd = &cobra.Command{
	Use:   "storecrawl",
	Short: "ASICS商品页面抓取工具",
	Long: `storecrawl - ASICS 商品页面批量抓取工具

逐个访问商品URL,提取标题、价格和库存状态,结果写入CSV:
  • HTTP直连 或 无头浏览器 两种抓取方式
  • 每次尝试前随机等待,403后额外退避
  • 超时、连接错误和HTTP错误自动重试
  • 每10条记录保存一次中间结果
  • Ctrl+C 一次停止,两次立即中断

使用示例:
  # 读取URL列表抓取
  storecrawl -i urls.txt -o results.csv

  # 生成20个测试URL,用浏览器抓取
  storecrawl -n 20 -m browser

  # 自定义请求头
  storecrawl -i urls.txt -H "Cookie: session=abc"

  # 启动本地表单页面
  storecrawl serve

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		appConfig = config

		// 初始化日志系统
		logConfig := utils.LogConfig{
			Level:      config.Logging.Level,
			LogDir:     config.Logging.LogDir,
			MaxSize:    config.Logging.Rotation.MaxSize,
			MaxBackups: config.Logging.Rotation.MaxBackups,
			MaxAge:     config.Logging.Rotation.MaxAge,
			Compress:   config.Logging.Rotation.Compress,
		}

		// 命令行参数覆盖配置文件
		if logLevel != "" {
			logConfig.Level = logLevel
		} else if verbose {
			logConfig.Level = "debug"
		}

		if cmd == serveCmd {
			logConfig.Extra = append(logConfig.Extra, logBuffer)
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if config.File != "" {
			utils.Debugf("使用配置文件: %s", config.File)
		}
		return nil
	},
	RunE: runCrawl,
}

func runCrawl(cmd *cobra.Command, args []string) error {
	applyFlags(cmd, appConfig)

	crawl := appConfig.Crawl
	if err := ValidateFlags(crawl.Method, crawl.MinDelay, crawl.MaxDelay, crawl.Timeout, crawl.MaxRetries, crawl.Count); err != nil {
		return err
	}
	if err := appConfig.Validate(); err != nil {
		return err
	}

	// 创建HTTP头部管理器
	headerManager, err := core.NewHeaderManager(core.DefaultReferer(crawl.BaseURL, crawl.LocalePath), appConfig.Headers, headers)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}

	// 如果用户请求验证配置
	if validateConfig {
		return printValidatedConfig(headerManager)
	}

	requestHeaders, err := headerManager.GetHeaders()
	if err != nil {
		return err
	}

	urls := core.ResolveURLs(appConfig.Input.File, crawl)
	if len(urls) == 0 {
		utils.Warn("没有需要抓取的URL")
		return nil
	}

	utils.Infof("抓取方式: %s | 等待: %.1f-%.1f秒 | 超时: %d秒 | 重试: %d次",
		crawl.Method, crawl.MinDelay, crawl.MaxDelay, crawl.Timeout, crawl.MaxRetries)
	utils.Infof("结果文件: %s", appConfig.Output.File)

	bar := utils.NewProgressBar(len(urls), "抓取中")
	job := core.NewJob(core.JobConfig{
		Crawl:   crawl,
		Output:  appConfig.Output,
		URLs:    urls,
		Headers: requestHeaders,
		Progress: func(done, total int, rec *models.Record) {
			_ = bar.Set(done)
		},
	})

	if err := job.Start(cmd.Context()); err != nil {
		return err
	}

	// 第一次Ctrl+C在当前URL结束后停止,第二次立即中断
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		interrupts := 0
		for {
			select {
			case sig := <-sigChan:
				interrupts++
				if interrupts == 1 {
					utils.Warnf("\n收到中断信号: %v, 当前URL完成后停止 (再按一次立即中断)", sig)
					job.Stop()
					continue
				}
				utils.Warn("\n再次收到中断信号,立即中断")
				job.Cancel()
				return
			case <-job.Done():
				return
			}
		}
	}()

	<-job.Done()
	_ = bar.Finish()

	if err := job.Err(); err != nil {
		return err
	}

	utils.Info("✨ 抓取任务完成!")
	return nil
}

// printValidatedConfig 验证并显示生效的配置(请求头脱敏)
func printValidatedConfig(headerManager *core.HeaderManager) error {
	utils.Info("🔍 验证配置...")
	if err := headerManager.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	if appConfig.File != "" {
		utils.Infof("配置文件: %s", appConfig.File)
	} else {
		utils.Info("配置文件: (未找到,使用默认值)")
	}

	crawl := appConfig.Crawl
	utils.Infof("抓取方式: %s (无头: %v)", crawl.Method, crawl.Headless)
	utils.Infof("站点: %s%s", crawl.BaseURL, crawl.LocalePath)
	utils.Infof("等待: %.1f-%.1f秒, 403退避: %.1f-%.1f秒",
		crawl.MinDelay, crawl.MaxDelay, crawl.ForbiddenMinDelay, crawl.ForbiddenMaxDelay)
	utils.Infof("超时: %d秒, 重试: %d次, 每%d条保存", crawl.Timeout, crawl.MaxRetries, crawl.FlushEvery)

	safeHeaders := headerManager.GetSafeHeaders()
	names := make([]string, 0, len(safeHeaders))
	for name := range safeHeaders {
		names = append(names, name)
	}
	sort.Strings(names)

	utils.Info("✅ 配置验证通过!")
	utils.Infof("当前有效的HTTP头部 (%d个):", len(names))
	for _, name := range names {
		utils.Infof("  %s: %s", name, safeHeaders[name])
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("storecrawl %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式 (等同 --log-level debug)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")

	// 抓取参数
	rootCmd.Flags().BoolVar(&validateConfig, "validate-config", false, "验证配置并显示生效的请求头")
	rootCmd.Flags().StringVarP(&method, "method", "m", "http", "抓取方式 (http|browser)")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "浏览器无头模式")
	rootCmd.Flags().StringVarP(&inputFile, "input", "i", "", "URL列表文件 (不存在时生成测试URL)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "asics_results.csv", "结果CSV文件")
	rootCmd.Flags().IntVarP(&count, "count", "n", 100, "生成测试URL的数量")
	rootCmd.Flags().StringVar(&baseURL, "base-url", "https://www.asics.com", "站点根地址")
	rootCmd.Flags().StringVar(&driverPath, "driver", "", "浏览器可执行文件路径 (为空则自动查找)")
	rootCmd.Flags().Float64Var(&minDelay, "min-delay", 2.0, "每次尝试前最小等待(秒)")
	rootCmd.Flags().Float64Var(&maxDelay, "max-delay", 5.0, "每次尝试前最大等待(秒)")
	rootCmd.Flags().IntVar(&timeout, "timeout", 30, "单次请求超时(秒)")
	rootCmd.Flags().IntVar(&retries, "retries", 3, "每个URL最多尝试次数")
	rootCmd.Flags().BoolVar(&noReport, "no-report", false, "不生成JSON运行报告")

	// 添加子命令
	rootCmd.AddCommand(versionCmd, generateCmd, initCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
